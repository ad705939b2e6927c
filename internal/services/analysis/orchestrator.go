package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/metrics"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/vision"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MinResponseLength is the shortest reply treated as a real analysis.
const MinResponseLength = 50

const publishTimeout = 5 * time.Second

// Provider is the outbound vision model.
type Provider interface {
	AnalyzeImage(ctx context.Context, req models.AnalysisRequest) (string, error)
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Cache stores successful analyses by image digest.
type Cache interface {
	Get(ctx context.Context, digest string) (*models.Analysis, bool, error)
	Set(ctx context.Context, digest string, analysis *models.Analysis) error
}

type Publisher interface {
	Publish(ctx context.Context, event models.AnalysisEvent) error
}

type Orchestrator struct {
	provider  Provider
	cache     Cache
	publisher Publisher
	cfg       config.AnalysisConfig
	logger    *zap.Logger
}

type Option func(*Orchestrator)

func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func NewOrchestrator(provider Provider, cfg config.AnalysisConfig, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	o := &Orchestrator{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AnalyzeBatch analyzes every accepted input concurrently and merges the
// validation failures back at their original positions. If ctx ends first
// no partial result is returned.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, accepted *models.AcceptedBatch) (*models.BatchResult, error) {
	metrics.BatchSize.Observe(float64(accepted.Total))

	results := make([]models.AnalysisResult, accepted.Total)
	filled := make([]bool, accepted.Total)

	for _, f := range accepted.Failures {
		if f.Index < 0 || f.Index >= accepted.Total {
			return nil, fmt.Errorf("validation failure index %d out of range [0,%d)", f.Index, accepted.Total)
		}
		results[f.Index] = f
		filled[f.Index] = true
	}
	for _, in := range accepted.Inputs {
		if in.Index < 0 || in.Index >= accepted.Total || filled[in.Index] {
			return nil, fmt.Errorf("input index %d out of range or duplicated", in.Index)
		}
		filled[in.Index] = true
	}

	workCtx, cancel := o.workContext(ctx)
	defer cancel()

	// Tasks never return an error, so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	for _, input := range accepted.Inputs {
		input := input
		if workCtx.Err() != nil {
			results[input.Index] = o.expired(input)
			continue
		}
		g.Go(func() error {
			results[input.Index] = o.AnalyzeOne(workCtx, input)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, ok := range filled {
		if !ok {
			results[i] = models.NewFailure(i, "", models.KindValidation, "missing file")
		}
	}

	batch := models.NewBatchResult(results)
	o.logger.Info("Batch analyzed",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return batch, nil
}

// workContext ends DeadlineReserve before ctx's deadline so images still in
// flight turn into Timeout results while the caller is still waiting.
func (o *Orchestrator) workContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}

	reserve := o.cfg.DeadlineReserve
	if remaining := time.Until(deadline); reserve <= 0 || reserve >= remaining {
		reserve = remaining / 10
	}
	return context.WithDeadline(ctx, deadline.Add(-reserve))
}

// expired is the result for an input whose turn came after the batch
// deadline.
func (o *Orchestrator) expired(input models.ImageInput) models.AnalysisResult {
	result := models.NewFailure(input.Index, input.Filename, models.KindTimeout, "request deadline reached before analysis started")
	o.finish(context.Background(), result, time.Now())
	return result
}

// AnalyzeOne never returns an error; failures are carried in the result.
func (o *Orchestrator) AnalyzeOne(ctx context.Context, input models.ImageInput) models.AnalysisResult {
	start := time.Now()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	digest := Digest(o.provider.Model(), input.Data)

	if cached := o.lookup(ctx, digest); cached != nil {
		cached.ImageInfo = input.Info
		cached.Cached = true
		result := models.NewSuccess(input.Index, input.Filename, cached)
		o.finish(ctx, result, start)
		return result
	}

	req := models.NewAnalysisRequest(input, AnalysisPrompt)
	text, err := o.analyzeWithRetry(ctx, req)
	if err != nil {
		kind := vision.KindOf(err)
		o.logger.Warn("Image analysis failed",
			zap.Int("index", input.Index),
			zap.String("filename", input.Filename),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		result := models.NewFailure(input.Index, input.Filename, kind, failureMessage(err))
		o.finish(ctx, result, start)
		return result
	}

	analysis := o.buildAnalysis(ctx, text, input)
	o.store(ctx, digest, analysis)

	result := models.NewSuccess(input.Index, input.Filename, analysis)
	o.finish(ctx, result, start)
	return result
}

func (o *Orchestrator) buildAnalysis(ctx context.Context, text string, input models.ImageInput) *models.Analysis {
	return &models.Analysis{
		ID:              uuid.New().String(),
		Text:            text,
		Sections:        ParseSections(text),
		Recommendations: o.recommend(ctx, text),
		Category:        Categorize(text),
		Confidence:      Confidence(text),
		Model:           o.provider.Model(),
		ImageInfo:       input.Info,
		AnalyzedAt:      time.Now().UTC(),
	}
}

// recommend asks the provider for recommendations and fills any list it
// left empty from the analysis text. Its failure never fails the analysis.
func (o *Orchestrator) recommend(ctx context.Context, text string) models.Recommendations {
	fallback := ExtractRecommendations(text)
	if !o.cfg.RecommendationsEnabled {
		return fallback
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	reply, err := o.provider.Complete(callCtx, RecommendationsPrompt(text))
	if err != nil {
		o.logger.Warn("Recommendations call failed, using extracted defaults", zap.Error(err))
		metrics.ProviderAttemptsTotal.WithLabelValues("recommendations_" + string(vision.KindOf(err))).Inc()
		return fallback
	}
	metrics.ProviderAttemptsTotal.WithLabelValues("recommendations_success").Inc()

	return mergeRecommendations(ParseRecommendations(reply), fallback)
}

func (o *Orchestrator) analyzeWithRetry(ctx context.Context, req models.AnalysisRequest) (string, error) {
	backoff := o.cfg.RetryBackoff

	for attempt := 1; ; attempt++ {
		text, err := o.attempt(ctx, req)
		if err == nil {
			metrics.ProviderAttemptsTotal.WithLabelValues("success").Inc()
			return text, nil
		}

		verr := vision.ClassifyTransport(err)
		metrics.ProviderAttemptsTotal.WithLabelValues(string(verr.Kind)).Inc()

		if attempt >= o.cfg.MaxAttempts || !verr.Retryable() || ctx.Err() != nil {
			return "", verr
		}

		o.logger.Info("Retrying provider call",
			zap.Int("index", req.Index()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("kind", string(verr.Kind)),
		)
		metrics.ProviderRetriesTotal.Inc()

		if err := sleep(ctx, backoff); err != nil {
			return "", vision.ClassifyTransport(err)
		}
		backoff *= 2
	}
}

// attempt is one provider call bounded by the per-call timeout.
func (o *Orchestrator) attempt(ctx context.Context, req models.AnalysisRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	text, err := o.provider.AnalyzeImage(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &vision.Error{Kind: models.KindTimeout, Message: "provider did not respond in time", Err: err}
		}
		return "", err
	}

	if len(strings.TrimSpace(text)) < MinResponseLength {
		return "", &vision.Error{
			Kind:    models.KindMalformedResponse,
			Message: fmt.Sprintf("response too short (%d characters)", len(strings.TrimSpace(text))),
		}
	}

	return text, nil
}

func (o *Orchestrator) lookup(ctx context.Context, digest string) *models.Analysis {
	if o.cache == nil {
		return nil
	}

	analysis, ok, err := o.cache.Get(ctx, digest)
	switch {
	case err != nil:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("Cache lookup failed", zap.String("digest", digest), zap.Error(err))
		return nil
	case !ok:
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	default:
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		o.logger.Info("Cache hit", zap.String("digest", digest))
		return analysis
	}
}

func (o *Orchestrator) store(ctx context.Context, digest string, analysis *models.Analysis) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, digest, analysis); err != nil {
		o.logger.Warn("Failed to cache analysis", zap.String("digest", digest), zap.Error(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, result models.AnalysisResult, start time.Time) {
	elapsed := time.Since(start)
	label := models.StatusSuccess
	if result.Error != nil {
		label = string(result.Error.Kind)
	}
	metrics.AnalysesTotal.WithLabelValues(label).Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues(label).Observe(elapsed.Seconds())

	if o.publisher == nil {
		return
	}

	// Timed out results are still published.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := NewEvent(result, o.provider.Model(), elapsed)
	if err := o.publisher.Publish(pubCtx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		o.logger.Warn("Failed to publish analysis event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("success").Inc()
}

// NewEvent summarizes a result for subscribers.
func NewEvent(result models.AnalysisResult, model string, elapsed time.Duration) models.AnalysisEvent {
	event := models.AnalysisEvent{
		ID:         uuid.New().String(),
		Filename:   result.Filename,
		Status:     result.Status,
		Model:      model,
		DurationMS: elapsed.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}
	if result.Analysis != nil {
		event.AnalysisID = result.Analysis.ID
		event.Category = result.Analysis.Category
		event.Confidence = result.Analysis.Confidence
		event.Cached = result.Analysis.Cached
	}
	if result.Error != nil {
		event.ErrorKind = result.Error.Kind
	}
	return event
}

// Digest keys the cache by model, prompt version and prepared bytes.
func Digest(model string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(PromptVersion))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func failureMessage(err error) string {
	var verr *vision.Error
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	return err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
