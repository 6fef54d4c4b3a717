package services

import (
	"regexp"
	"strings"

	"multimodal-rag-platform/models"
)

// QueryClassifier assigns an intent label to a query using rule-based
// heuristics. The label only picks a default retrieval strategy when the
// caller does not specify one; an explicit strategy always wins.
type QueryClassifier struct {
	factual    []*regexp.Regexp
	crossModal []*regexp.Regexp
	vague      []*regexp.Regexp
}

// NewQueryClassifier compiles the heuristic patterns.
func NewQueryClassifier() *QueryClassifier {
	return &QueryClassifier{
		factual: compileAll(
			`\bwhat is\b`, `\bwho is\b`, `\bwhen did\b`, `\bwhere is\b`,
			`\bhow many\b`, `\bhow much\b`, `\bdefine\b`, `\bexplain\b`,
		),
		crossModal: compileAll(
			`\bimage\b`, `\bimages\b`, `\bpicture\b`, `\bphoto\b`,
			`\bdiagram\b`, `\bfigure\b`, `\bvisual\b`, `\bshown\b`,
		),
		vague: compileAll(
			`\btell me about\b`, `\binformation about\b`, `\banything about\b`,
			`\boverview\b`, `\bsummary\b`, `\brecent\b`, `\brelated to\b`,
			`\bsimilar to\b`,
		),
	}
}

// Classify inspects the query and returns its intent. Unmatched queries
// default to factual; very short ones are treated as exploratory since they
// carry too little signal for precise retrieval.
func (c *QueryClassifier) Classify(query string) models.QueryIntent {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, re := range c.factual {
		if re.MatchString(q) {
			return models.IntentFactual
		}
	}
	for _, re := range c.crossModal {
		if re.MatchString(q) {
			return models.IntentCrossModal
		}
	}
	for _, re := range c.vague {
		if re.MatchString(q) {
			return models.IntentExploratory
		}
	}
	if len(strings.Fields(q)) < 3 {
		return models.IntentExploratory
	}
	return models.IntentFactual
}

// DefaultStrategy maps an intent to the retrieval strategy used when the
// caller omits one: precise intents get plain semantic search, vague ones get
// query expansion for recall, and modality-referencing ones get the hybrid
// blend so exact terms like captions and labels still match.
func (c *QueryClassifier) DefaultStrategy(intent models.QueryIntent) models.RetrievalStrategy {
	switch intent {
	case models.IntentExploratory:
		return models.StrategyExpanded
	case models.IntentCrossModal:
		return models.StrategyHybrid
	default:
		return models.StrategySemantic
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}
