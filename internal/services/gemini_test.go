package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type fakeModel struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
	block chan struct{}
}

func (m *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.parts = parts
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.resp, m.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(s)}}, FinishReason: genai.FinishReasonStop},
	}}
}

func TestGeminiComplete_SendsPromptAsSingleTextPart(t *testing.T) {
	model := &fakeModel{resp: textResponse("pong")}
	svc := newGeminiService(model, 1)

	reply, err := svc.Complete(context.Background(), "User: ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "pong" || reply.Fallback {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(model.parts) != 1 || model.parts[0] != genai.Text("User: ping") {
		t.Fatalf("expected prompt as one text part, got %#v", model.parts)
	}
}

func TestGeminiComplete_EmptyResponseIsFallback(t *testing.T) {
	svc := newGeminiService(&fakeModel{resp: &genai.GenerateContentResponse{}}, 1)

	reply, err := svc.Complete(context.Background(), "User: hi")
	if err != nil {
		t.Fatalf("fallback must not be an error: %v", err)
	}
	if !reply.Fallback || reply.Text != FallbackReply {
		t.Fatalf("expected fallback, got %+v", reply)
	}
}

func TestGeminiComplete_WrapsAPIError(t *testing.T) {
	apiErr := errors.New("quota exceeded")
	svc := newGeminiService(&fakeModel{err: apiErr}, 1)

	_, err := svc.Complete(context.Background(), "User: hi")
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}

func TestGeminiComplete_ReleasesSlot(t *testing.T) {
	svc := newGeminiService(&fakeModel{err: errors.New("boom")}, 1)

	for i := 0; i < 3; i++ {
		svc.Complete(context.Background(), "x")
	}
	if len(svc.rateChan) != 1 {
		t.Fatalf("expected slot returned after each call, have %d", len(svc.rateChan))
	}
}

func TestGeminiComplete_SlotWaitTimesOut(t *testing.T) {
	model := &fakeModel{resp: textResponse("ok"), block: make(chan struct{})}
	svc := newGeminiService(model, 1)
	svc.slotWait = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		svc.Complete(context.Background(), "first")
		close(done)
	}()

	// Wait until the first call holds the only slot.
	for len(svc.rateChan) != 0 {
		time.Sleep(time.Millisecond)
	}

	_, err := svc.Complete(context.Background(), "second")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}

	close(model.block)
	<-done
}

// newRESTGemini points a real genai client at a server answering every
// generateContent call with body.
func newRESTGemini(t *testing.T, body string) *GeminiService {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	svc, err := NewGeminiService("test-key", "gemini-pro", GeminiOptions{ConcurrentReqs: 1}, option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewGeminiService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestGeminiComplete_SDKResponses(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantText     string
		wantFallback bool
	}{
		{
			name:     "text candidate",
			body:     `{"candidates":[{"content":{"role":"model","parts":[{"text":"I'm fine"}]},"finishReason":"STOP"}]}`,
			wantText: "I'm fine",
		},
		{
			name:         "blocked prompt",
			body:         `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantText:     FallbackReply,
			wantFallback: true,
		},
		{
			name:         "candidate stopped for safety",
			body:         `{"candidates":[{"content":{"role":"model","parts":[{"text":"partial"}]},"finishReason":"SAFETY"}]}`,
			wantText:     FallbackReply,
			wantFallback: true,
		},
		{
			name:         "candidate stopped for recitation",
			body:         `{"candidates":[{"finishReason":"RECITATION"}]}`,
			wantText:     FallbackReply,
			wantFallback: true,
		},
		{
			name:         "no candidates",
			body:         `{}`,
			wantText:     FallbackReply,
			wantFallback: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newRESTGemini(t, tc.body)

			reply, err := svc.Complete(context.Background(), "User: how are you")
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if reply.Text != tc.wantText || reply.Fallback != tc.wantFallback {
				t.Fatalf("expected {%q %v}, got {%q %v}", tc.wantText, tc.wantFallback, reply.Text, reply.Fallback)
			}
		})
	}
}

func TestGeminiComplete_CallTimeout(t *testing.T) {
	model := &fakeModel{resp: textResponse("late"), block: make(chan struct{})}
	defer close(model.block)

	svc := newGeminiService(model, 1)
	svc.timeout = 20 * time.Millisecond

	_, err := svc.Complete(context.Background(), "User: hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
