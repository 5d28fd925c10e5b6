package extraction

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseText_JoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("{\"retailer\":"), genai.Text(" \"Amazon\"}")}}},
		},
	}

	got, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"retailer": "Amazon"}`, got)
}

func TestResponseText_SafetyBlockedCandidate(t *testing.T) {
	// A blocked candidate carries a finish reason but no Content at all.
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{FinishReason: genai.FinishReasonSafety},
		},
	}

	assert.NotPanics(t, func() {
		_, err := responseText(resp)
		assert.Error(t, err)
	})
}

func TestResponseText_NoCandidates(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{}},
		},
	})
	assert.Error(t, err)
}
