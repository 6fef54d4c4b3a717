package services

import (
	"context"
	"regexp"
	"strings"

	"multimodal-rag-platform/models"
)

var (
	spaceRunRegex   = regexp.MustCompile(`[ \t]+`)
	newlineRunRegex = regexp.MustCompile(`\n{3,}`)
)

// TextNormalizer passes plain text through after whitespace normalization.
// No information is lost beyond collapsed whitespace.
type TextNormalizer struct{}

// NewTextNormalizer creates a text normalizer.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// Normalize returns a single text unit for the document.
func (n *TextNormalizer) Normalize(_ context.Context, doc *models.Document) ([]models.NormalizedUnit, error) {
	text := NormalizeWhitespace(string(doc.Raw))
	if text == "" {
		return nil, newValidationError("document %s has no text content", doc.SourceName)
	}
	return []models.NormalizedUnit{{
		Text:     text,
		Modality: models.ModalityText,
	}}, nil
}

// NormalizeWhitespace canonicalizes line endings, collapses runs of spaces
// and tabs, and caps blank-line runs at one.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRunRegex.ReplaceAllString(text, " ")
	text = newlineRunRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
