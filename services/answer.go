package services

import (
	"context"
	"fmt"
	"strings"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

const answerPromptTemplate = `Answer the question using only the context below.
If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`

// AnswerResponse carries a synthesized answer together with the retrieval
// result it was grounded on. Degraded is set when completion was unavailable
// and only the sources could be returned.
type AnswerResponse struct {
	Answer   string                  `json:"answer,omitempty"`
	Degraded bool                    `json:"degraded,omitempty"`
	Sources  *models.RetrievalResult `json:"sources"`
}

// AnswerService retrieves context for a question and synthesizes an answer
// with the completion capability.
type AnswerService struct {
	engine    *RetrievalEngine
	completer Completer
}

// NewAnswerService wires answer synthesis on top of the retrieval engine.
func NewAnswerService(engine *RetrievalEngine, completer Completer) *AnswerService {
	return &AnswerService{engine: engine, completer: completer}
}

// Answer runs retrieval for the request and completes over the retrieved
// context. Retrieval errors propagate; a completion failure degrades to a
// sources-only response instead of failing the call.
func (s *AnswerService) Answer(ctx context.Context, req RetrievalRequest) (*AnswerResponse, error) {
	result, err := s.engine.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.completer == nil || len(result.Matches) == 0 {
		return &AnswerResponse{Degraded: true, Sources: result}, nil
	}

	var sb strings.Builder
	for i, m := range result.Matches {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, m.ChunkID, m.Text)
	}

	answer, err := s.completer.Complete(ctx, fmt.Sprintf(answerPromptTemplate, sb.String(), req.Query))
	if err != nil {
		logger.Warn("answer synthesis failed, returning sources only", "error", err)
		return &AnswerResponse{Degraded: true, Sources: result}, nil
	}

	return &AnswerResponse{Answer: strings.TrimSpace(answer), Sources: result}, nil
}
