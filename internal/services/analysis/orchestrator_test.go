package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/vision"
	"github.com/phambaophuc/upcycle-vision/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		ProviderTimeout:        time.Second,
		MaxAttempts:            1,
		RetryBackoff:           time.Millisecond,
		Concurrency:            4,
		RecommendationsEnabled: true,
	}
}

func input(index int, name string, data []byte) models.ImageInput {
	return models.ImageInput{Index: index, Data: data, MIMEType: "image/jpeg", Filename: name}
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]models.Analysis
	err   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]models.Analysis)}
}

func (c *memoryCache) Get(_ context.Context, digest string) (*models.Analysis, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	a, ok := c.items[digest]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *memoryCache) Set(_ context.Context, digest string, a *models.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[digest] = *a
	return c.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AnalysisEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.AnalysisEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestAnalyzeOne_CannedSuccess(t *testing.T) {
	stub := &testutil.StubProvider{}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "chair.jpg", []byte("jpeg-bytes")))

	require.True(t, result.Succeeded())
	assert.Equal(t, testutil.CannedAnalysis, result.Analysis.Text)
	assert.Equal(t, "chair.jpg", result.Filename)
	assert.Equal(t, CategoryFurniture, result.Analysis.Category)
	assert.Equal(t, 90, result.Analysis.Confidence)
	assert.Equal(t, "stub-vision", result.Analysis.Model)
	assert.Equal(t, "Solid oak with a lacquer finish.", result.Analysis.Sections.Materials)
	assert.NotEmpty(t, result.Analysis.ID)

	require.Len(t, stub.Requests(), 1)
	assert.Equal(t, AnalysisPrompt, stub.Requests()[0].Instruction())
	assert.Equal(t, []byte("jpeg-bytes"), stub.Requests()[0].Image())

	require.Len(t, stub.Prompts(), 1)
	assert.Contains(t, stub.Prompts()[0], testutil.CannedAnalysis)
	// empty recommendations reply falls back to extracted defaults
	assert.Len(t, result.Analysis.Recommendations.MarketplaceSuggestions, 6)
	assert.NotEmpty(t, result.Analysis.Recommendations.DIYIdeas)
}

func TestAnalyzeOne_UsesProviderRecommendations(t *testing.T) {
	stub := &testutil.StubProvider{
		CompleteFunc: func(context.Context, string) (string, error) {
			return "### DIY Creative Ideas\n1. Turn the chair into a porch planter\n2. Build a plant stand", nil
		},
	}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "chair.jpg", []byte("x")))

	require.True(t, result.Succeeded())
	recs := result.Analysis.Recommendations
	assert.Equal(t, []string{"Turn the chair into a porch planter", "Build a plant stand"}, recs.DIYIdeas)
	assert.Len(t, recs.Tutorials, 6, "missing sections are filled from defaults")
}

func TestAnalyzeOne_RecommendationsFailureIsNotFatal(t *testing.T) {
	stub := &testutil.StubProvider{
		CompleteFunc: func(context.Context, string) (string, error) {
			return "", &vision.Error{Kind: models.KindProvider, StatusCode: 500}
		},
	}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "chair.jpg", []byte("x")))

	require.True(t, result.Succeeded())
	assert.False(t, result.Analysis.Recommendations.IsEmpty())
}

func TestAnalyzeOne_RecommendationsDisabled(t *testing.T) {
	stub := &testutil.StubProvider{}
	cfg := testConfig()
	cfg.RecommendationsEnabled = false
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "chair.jpg", []byte("x")))

	require.True(t, result.Succeeded())
	assert.Empty(t, stub.Prompts())
	assert.False(t, result.Analysis.Recommendations.IsEmpty())
}

func TestAnalyzeOne_Timeout(t *testing.T) {
	stub := &testutil.StubProvider{AnalyzeFunc: testutil.BlockUntilDone}
	cfg := testConfig()
	cfg.ProviderTimeout = 50 * time.Millisecond
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	done := make(chan models.AnalysisResult, 1)
	go func() { done <- o.AnalyzeOne(context.Background(), input(0, "slow.jpg", []byte("x"))) }()

	select {
	case result := <-done:
		require.NotNil(t, result.Error)
		assert.Equal(t, models.StatusFailure, result.Status)
		assert.Equal(t, models.KindTimeout, result.Error.Kind)
		assert.Nil(t, result.Analysis)
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not complete")
	}
}

func TestAnalyzeOne_ShortResponseIsMalformed(t *testing.T) {
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(context.Context, models.AnalysisRequest) (string, error) { return "A chair.", nil },
	}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindMalformedResponse, result.Error.Kind)
}

func TestAnalyzeOne_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(context.Context, models.AnalysisRequest) (string, error) {
			if calls.Add(1) < 3 {
				return "", &vision.Error{Kind: models.KindProvider, StatusCode: 503, Message: "overloaded"}
			}
			return testutil.CannedAnalysis, nil
		},
	}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	assert.True(t, result.Succeeded())
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeOne_GivesUpAfterMaxAttempts(t *testing.T) {
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(context.Context, models.AnalysisRequest) (string, error) {
			return "", &vision.Error{Kind: models.KindNetwork, Message: "connection refused"}
		},
	}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindNetwork, result.Error.Kind)
	assert.Equal(t, "connection refused", result.Error.Message)
	assert.Len(t, stub.Requests(), 3)
}

func TestAnalyzeOne_DoesNotRetryClientErrors(t *testing.T) {
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(context.Context, models.AnalysisRequest) (string, error) {
			return "", &vision.Error{Kind: models.KindProvider, StatusCode: 400, Message: "bad image"}
		},
	}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindProvider, result.Error.Kind)
	assert.Len(t, stub.Requests(), 1)
}

func TestAnalyzeOne_CacheHit(t *testing.T) {
	stub := &testutil.StubProvider{}
	cache := newMemoryCache()
	o := NewOrchestrator(stub, testConfig(), zap.NewNop(), WithCache(cache))

	first := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("same")))
	second := o.AnalyzeOne(context.Background(), input(3, "b.jpg", []byte("same")))

	require.True(t, first.Succeeded())
	require.True(t, second.Succeeded())
	assert.False(t, first.Analysis.Cached)
	assert.True(t, second.Analysis.Cached)
	assert.Equal(t, 3, second.Index)
	assert.Equal(t, "b.jpg", second.Filename)
	assert.Equal(t, first.Analysis.Text, second.Analysis.Text)
	assert.Len(t, stub.Requests(), 1)
}

func TestAnalyzeOne_CacheErrorFallsThrough(t *testing.T) {
	stub := &testutil.StubProvider{}
	cache := newMemoryCache()
	cache.err = errors.New("redis down")
	o := NewOrchestrator(stub, testConfig(), zap.NewNop(), WithCache(cache))

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	assert.True(t, result.Succeeded())
	assert.Len(t, stub.Requests(), 1)
}

func TestAnalyzeOne_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker gone")}
	stub := &testutil.StubProvider{}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop(), WithPublisher(pub))

	result := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	assert.True(t, result.Succeeded(), "publish errors do not fail the analysis")
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.StatusSuccess, pub.events[0].Status)
	assert.Equal(t, result.Analysis.ID, pub.events[0].AnalysisID)
	assert.NotEqual(t, result.Analysis.ID, pub.events[0].ID)
	assert.Equal(t, CategoryFurniture, pub.events[0].Category)
}

func TestAnalyzeOne_CacheHitEventsHaveDistinctIDs(t *testing.T) {
	pub := &recordingPublisher{}
	stub := &testutil.StubProvider{}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop(), WithCache(newMemoryCache()), WithPublisher(pub))

	first := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))
	second := o.AnalyzeOne(context.Background(), input(0, "a.jpg", []byte("x")))

	require.True(t, second.Analysis.Cached)
	require.Len(t, pub.events, 2)
	assert.NotEqual(t, pub.events[0].ID, pub.events[1].ID)
	assert.Equal(t, first.Analysis.ID, pub.events[0].AnalysisID)
	assert.Equal(t, first.Analysis.ID, pub.events[1].AnalysisID)
}

func TestAnalyzeBatch_OrderAndIsolation(t *testing.T) {
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(_ context.Context, req models.AnalysisRequest) (string, error) {
			if req.Filename() == "bad.jpg" {
				return "", &vision.Error{Kind: models.KindProvider, StatusCode: 400, Message: "rejected"}
			}
			// finish out of order
			time.Sleep(time.Duration(5-req.Index()) * 5 * time.Millisecond)
			return testutil.CannedAnalysis + " #" + req.Filename(), nil
		},
	}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	names := []string{"a.jpg", "b.jpg", "bad.jpg", "c.jpg", "d.jpg"}
	accepted := &models.AcceptedBatch{Total: len(names)}
	for i, n := range names {
		accepted.Inputs = append(accepted.Inputs, input(i, n, []byte(n)))
	}

	batch, err := o.AnalyzeBatch(context.Background(), accepted)
	require.NoError(t, err)

	require.Len(t, batch.Results, len(names))
	for i, r := range batch.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, names[i], r.Filename)
		if names[i] == "bad.jpg" {
			require.NotNil(t, r.Error)
			assert.Equal(t, models.KindProvider, r.Error.Kind)
			continue
		}
		require.True(t, r.Succeeded())
		assert.True(t, strings.HasSuffix(r.Analysis.Text, "#"+names[i]))
	}
	assert.Equal(t, 4, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
}

func TestAnalyzeBatch_MergesValidationFailures(t *testing.T) {
	stub := &testutil.StubProvider{}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	accepted := &models.AcceptedBatch{
		Total:    2,
		Inputs:   []models.ImageInput{input(1, "chair.jpg", []byte("ok"))},
		Failures: []models.AnalysisResult{models.NewFailure(0, "broken.jpg", models.KindValidation, "invalid image")},
	}

	batch, err := o.AnalyzeBatch(context.Background(), accepted)
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, models.KindValidation, batch.Results[0].Error.Kind)
	assert.True(t, batch.Results[1].Succeeded())
	assert.Len(t, stub.Requests(), 1, "invalid entries never reach the provider")
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	o := NewOrchestrator(&testutil.StubProvider{}, testConfig(), zap.NewNop())

	batch, err := o.AnalyzeBatch(context.Background(), &models.AcceptedBatch{})
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.NotNil(t, batch.Results)
	assert.Equal(t, 0, batch.Total)
}

func TestAnalyzeBatch_BoundedConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	stub := &testutil.StubProvider{
		AnalyzeFunc: func(context.Context, models.AnalysisRequest) (string, error) {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return testutil.CannedAnalysis, nil
		},
	}
	cfg := testConfig()
	cfg.Concurrency = 2
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	accepted := &models.AcceptedBatch{Total: 6}
	for i := 0; i < 6; i++ {
		accepted.Inputs = append(accepted.Inputs, input(i, "", []byte{byte(i)}))
	}

	_, err := o.AnalyzeBatch(context.Background(), accepted)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAnalyzeBatch_ParentCancelled(t *testing.T) {
	stub := &testutil.StubProvider{AnalyzeFunc: testutil.BlockUntilDone}
	o := NewOrchestrator(stub, testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	accepted := &models.AcceptedBatch{Total: 2, Inputs: []models.ImageInput{input(0, "", []byte("a")), input(1, "", []byte("b"))}}
	batch, err := o.AnalyzeBatch(ctx, accepted)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, batch)
}

// Default timings scaled down 1000x: 60s per call, 3 attempts, 500ms backoff,
// 4 at a time, 10 images and a 4m request deadline.
func TestAnalyzeBatch_DeadlineYieldsTimeoutPerImage(t *testing.T) {
	cfg := testConfig()
	cfg.ProviderTimeout = 60 * time.Millisecond
	cfg.MaxAttempts = 3
	cfg.RetryBackoff = 500 * time.Microsecond
	cfg.Concurrency = 4
	cfg.DeadlineReserve = 40 * time.Millisecond

	stub := &testutil.StubProvider{AnalyzeFunc: testutil.BlockUntilDone}
	o := NewOrchestrator(stub, cfg, zap.NewNop())

	accepted := &models.AcceptedBatch{Total: 10}
	for i := 0; i < 10; i++ {
		accepted.Inputs = append(accepted.Inputs, input(i, fmt.Sprintf("%d.jpg", i), []byte{byte(i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 240*time.Millisecond)
	defer cancel()

	batch, err := o.AnalyzeBatch(ctx, accepted)
	require.NoError(t, err)
	require.Len(t, batch.Results, 10)
	assert.Equal(t, 10, batch.Failed)
	for i, r := range batch.Results {
		assert.Equal(t, i, r.Index)
		require.NotNil(t, r.Error)
		assert.Equal(t, models.KindTimeout, r.Error.Kind)
	}
	assert.NoError(t, ctx.Err(), "results arrive before the caller's deadline")
}

func TestAnalyzeBatch_RejectsBadIndices(t *testing.T) {
	o := NewOrchestrator(&testutil.StubProvider{}, testConfig(), zap.NewNop())

	_, err := o.AnalyzeBatch(context.Background(), &models.AcceptedBatch{
		Total:  1,
		Inputs: []models.ImageInput{input(4, "", []byte("a"))},
	})
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	a := Digest("gpt-4o", []byte("img"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest("gpt-4o", []byte("img")))
	assert.NotEqual(t, a, Digest("gpt-4o-mini", []byte("img")))
	assert.NotEqual(t, a, Digest("gpt-4o", []byte("img2")))
}

func TestNewEvent_Failure(t *testing.T) {
	event := NewEvent(models.NewFailure(2, "x.png", models.KindTimeout, "slow"), "gpt-4o", 1500*time.Millisecond)

	assert.Equal(t, models.StatusFailure, event.Status)
	assert.Equal(t, models.KindTimeout, event.ErrorKind)
	assert.Equal(t, int64(1500), event.DurationMS)
	assert.Equal(t, "x.png", event.Filename)
	assert.NotEmpty(t, event.ID)
}
