package testutil

import (
	"context"
	"sync"

	"github.com/phambaophuc/upcycle-vision/internal/models"
)

// CannedAnalysis is long enough to pass the minimum-length check.
const CannedAnalysis = `1. **Object Identification**: A wooden dining chair with a slatted back.
2. **Material Analysis**: Solid oak with a lacquer finish.
3. **Condition Assessment**: Used, light scratches on the seat.
4. **Size Estimation**: Medium.
5. **Style/Design**: Rustic farmhouse.
6. **Potential Value**: Common.
7. **Creative Potential**: Sturdy frame that can be repainted or turned into a planter.`

// StubProvider records every call and answers through the configured funcs.
// A nil AnalyzeFunc returns CannedAnalysis; a nil CompleteFunc returns an
// empty reply.
type StubProvider struct {
	AnalyzeFunc  func(ctx context.Context, req models.AnalysisRequest) (string, error)
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	ModelName    string

	mu       sync.Mutex
	requests []models.AnalysisRequest
	prompts  []string
}

func (s *StubProvider) AnalyzeImage(ctx context.Context, req models.AnalysisRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.AnalyzeFunc == nil {
		return CannedAnalysis, nil
	}
	return s.AnalyzeFunc(ctx, req)
}

func (s *StubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.CompleteFunc == nil {
		return "", nil
	}
	return s.CompleteFunc(ctx, prompt)
}

func (s *StubProvider) Model() string {
	if s.ModelName == "" {
		return "stub-vision"
	}
	return s.ModelName
}

// Requests returns the image requests seen so far.
func (s *StubProvider) Requests() []models.AnalysisRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AnalysisRequest(nil), s.requests...)
}

func (s *StubProvider) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// BlockUntilDone waits for the call's context to end, like a provider that
// never answers.
func BlockUntilDone(ctx context.Context, _ models.AnalysisRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
