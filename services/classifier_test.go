package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"multimodal-rag-platform/models"
)

func TestClassifyFactual(t *testing.T) {
	c := NewQueryClassifier()

	for _, q := range []string{
		"What is the capital of France?",
		"how many pages does the report have",
		"Define retrieval augmented generation",
		"who is the author of this paper",
	} {
		assert.Equal(t, models.IntentFactual, c.Classify(q), "query %q", q)
	}
}

func TestClassifyCrossModal(t *testing.T) {
	c := NewQueryClassifier()

	for _, q := range []string{
		"find the diagram of the network topology",
		"description of the picture on page three",
		"the results shown in figure 2",
	} {
		assert.Equal(t, models.IntentCrossModal, c.Classify(q), "query %q", q)
	}
}

func TestClassifyExploratory(t *testing.T) {
	c := NewQueryClassifier()

	for _, q := range []string{
		"tell me about the architecture",
		"give me an overview please",
		"recent developments regarding deployment",
		"kubernetes", // too short to carry precise intent
	} {
		assert.Equal(t, models.IntentExploratory, c.Classify(q), "query %q", q)
	}
}

func TestClassifyFactualMarkersWinOverModalityTerms(t *testing.T) {
	c := NewQueryClassifier()

	// Factual patterns are matched before modality terms.
	assert.Equal(t, models.IntentFactual, c.Classify("what is shown in the image"))
}

func TestClassifyDefaultsToFactual(t *testing.T) {
	c := NewQueryClassifier()

	assert.Equal(t, models.IntentFactual, c.Classify("compare quarterly revenue between the two divisions"))
}

func TestDefaultStrategyMapping(t *testing.T) {
	c := NewQueryClassifier()

	assert.Equal(t, models.StrategySemantic, c.DefaultStrategy(models.IntentFactual))
	assert.Equal(t, models.StrategyExpanded, c.DefaultStrategy(models.IntentExploratory))
	assert.Equal(t, models.StrategyHybrid, c.DefaultStrategy(models.IntentCrossModal))
}
