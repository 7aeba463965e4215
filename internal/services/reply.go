package services

import (
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// FallbackReply is stored and returned when the model response has no usable text.
const FallbackReply = "No response"

// Reply is either model text or the fallback placeholder.
type Reply struct {
	Text     string
	Fallback bool
}

func fallback() Reply {
	return Reply{Text: FallbackReply, Fallback: true}
}

// ParseReply takes the first candidate and joins the text of its parts.
// No response, no candidates, a candidate without content, or content
// without any text part all give the fallback.
func ParseReply(resp *genai.GenerateContentResponse) Reply {
	if resp == nil || len(resp.Candidates) == 0 {
		return fallback()
	}

	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return fallback()
	}

	var text strings.Builder
	found := false
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
			found = true
		}
	}
	if !found {
		return fallback()
	}

	return Reply{Text: text.String()}
}
