package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// generativeModel is the subset of *genai.GenerativeModel the service calls.
type generativeModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiService is built once at startup and shared by every request.
// It holds no per-request state.
type GeminiService struct {
	client    *genai.Client
	model     generativeModel
	modelName string
	rateChan  chan struct{} // Token bucket
	slotWait  time.Duration
	timeout   time.Duration
}

// GeminiOptions bounds how long one completion may take. SlotWait is the
// longest wait for a free concurrency slot, Timeout the longest model call.
type GeminiOptions struct {
	ConcurrentReqs int
	SlotWait       time.Duration
	Timeout        time.Duration
}

func NewGeminiService(apiKey, modelName string, opts GeminiOptions, clientOpts ...option.ClientOption) (*GeminiService, error) {
	ctx := context.Background()
	clientOpts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, clientOpts...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	s := newGeminiService(model, opts.ConcurrentReqs)
	s.client = client
	s.modelName = modelName
	if opts.SlotWait > 0 {
		s.slotWait = opts.SlotWait
	}
	if opts.Timeout > 0 {
		s.timeout = opts.Timeout
	}
	return s, nil
}

func newGeminiService(model generativeModel, concurrentReqs int) *GeminiService {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		model:    model,
		rateChan: rateChan,
		slotWait: 30 * time.Second,
		timeout:  time.Minute,
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.slotWait):
		return &RateLimitError{Message: "Too many requests to the model, please retry shortly"}
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Complete sends prompt as a single text part and parses the first candidate.
// A structurally unusable response is not an error; it yields a fallback Reply.
// So does a blocked prompt or a candidate stopped for safety or recitation,
// which the SDK reports as *genai.BlockedError.
func (s *GeminiService) Complete(ctx context.Context, prompt string) (Reply, error) {
	if err := s.acquireRate(ctx); err != nil {
		return Reply{}, err
	}
	defer s.releaseRate()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		log.Printf("WARNING: Gemini %s response blocked: %v", s.modelName, blocked)
		return fallback(), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("Gemini API error: %w", err)
	}

	if resp != nil {
		for i, cand := range resp.Candidates {
			if cand != nil && cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
				log.Printf("WARNING: Gemini %s candidate %d stopped due to %s", s.modelName, i, cand.FinishReason)
			}
		}
	}

	return ParseReply(resp), nil
}
