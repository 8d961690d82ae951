package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	mixedCaseAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	lowerAddress     = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
)

type fakeExtractor struct {
	calls   atomic.Int32
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, address string) (FeatureVector, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return FeatureVector{FeatureEthBalance: 1, FeatureHighRiskInteractionCount: 3}, nil
}

type fakeScorer struct {
	score float64
	err   error
}

func (f fakeScorer) Predict(features FeatureVector) (float64, []FeatureImportance, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.score, []FeatureImportance{{Feature: FeatureHighRiskInteractionCount, Importance: 1}}, nil
}

type fakePredictor struct {
	err error
}

func (f fakePredictor) Predict(features FeatureVector) (*ClusterResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ClusterResult{Cluster: 1, Name: "Small Retail User", CentroidDistances: []float64{2, 0.5}}, nil
}

type fakeModels struct {
	scorer    RiskScorer
	predictor ClusterPredictor
}

func (f fakeModels) RiskScorer() (RiskScorer, error) {
	if f.scorer == nil {
		return nil, ErrModelNotTrained
	}
	return f.scorer, nil
}

func (f fakeModels) ClusterPredictor() (ClusterPredictor, error) {
	if f.predictor == nil {
		return nil, ErrModelNotTrained
	}
	return f.predictor, nil
}

type fakeExplainer struct{}

func (fakeExplainer) Explain(features FeatureVector, score float64) *Explanation {
	return &Explanation{
		Level:            RiskLevelMedium,
		LevelDescription: "Medium risk",
		Summary:          fmt.Sprintf("score %.0f", score),
		Factors:          []RiskFactor{{ID: "high_risk_interactions", RiskContribution: 30}},
		AttentionPoints:  []string{"Interacted with high-risk addresses"},
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	kinds []AnalysisKind
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, analysis *FullAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, analysis.Kind)
	return f.err
}

type fakeNarrator struct {
	calls atomic.Int32
	err   error
}

func (f *fakeNarrator) Narrate(ctx context.Context, analysis *FullAnalysis) (*Narrative, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Narrative{Text: "Moderate risk wallet.", Model: "fake", GeneratedAt: time.Now()}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CacheEntry)}
}

func (c *fakeCache) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.Expired(time.Now()) {
		return nil, ErrCacheMiss
	}
	return e, nil
}

func (c *fakeCache) Set(ctx context.Context, entry *CacheEntry) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key.String()] = entry
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
	return nil
}

func (c *fakeCache) Cleanup(ctx context.Context) error {
	return nil
}

type fixture struct {
	extractor *fakeExtractor
	models    fakeModels
	cache     *fakeCache
	publisher *fakePublisher
	narrator  Narrator
	ttl       time.Duration
}

func newFixture() *fixture {
	return &fixture{
		extractor: &fakeExtractor{},
		models:    fakeModels{scorer: fakeScorer{score: 42}, predictor: fakePredictor{}},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		ttl:       time.Hour,
	}
}

func (f *fixture) service() *AnalysisService {
	return NewAnalysisService(f.extractor, f.models, fakeExplainer{}, f.cache, f.publisher, f.narrator, zap.NewNop(), true, f.ttl)
}

func TestScoreAddress(t *testing.T) {
	f := newFixture()
	report, err := f.service().ScoreAddress(context.Background(), mixedCaseAddress)
	require.NoError(t, err)

	assert.Equal(t, lowerAddress, report.Address)
	assert.Equal(t, KindScore, report.Kind)
	assert.Equal(t, 42.0, report.RiskScore)
	assert.Equal(t, RiskLevelMedium, report.RiskLevel)
	assert.Equal(t, "score 42", report.RiskExplanation)
	assert.Len(t, report.RiskFactors, 1)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 3.0, report.Features[FeatureHighRiskInteractionCount])
	assert.Equal(t, []AnalysisKind{KindScore}, f.publisher.kinds)
}

func TestCacheHitSkipsRecompute(t *testing.T) {
	f := newFixture()
	svc := f.service()

	first, err := svc.ScoreAddress(context.Background(), mixedCaseAddress)
	require.NoError(t, err)
	second, err := svc.ScoreAddress(context.Background(), lowerAddress)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.extractor.calls.Load())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Len(t, f.publisher.kinds, 1, "cached results are not republished")
}

func TestCacheEntriesAreKeyedByKind(t *testing.T) {
	f := newFixture()
	svc := f.service()

	_, err := svc.ScoreAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
	_, err = svc.ProfileAddress(context.Background(), lowerAddress)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.extractor.calls.Load())
	assert.Contains(t, f.cache.entries, CacheKey{Component: ComponentOrchestrator, Address: lowerAddress, Kind: KindScore}.String())
	assert.Contains(t, f.cache.entries, CacheKey{Component: ComponentOrchestrator, Address: lowerAddress, Kind: KindProfile}.String())
}

func TestExpiredEntryRecomputes(t *testing.T) {
	f := newFixture()
	svc := f.service()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	_, err := svc.ScoreAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
	_, err = svc.ScoreAddress(context.Background(), lowerAddress)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.extractor.calls.Load())
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	f := newFixture()
	f.ttl = 0
	svc := f.service()

	for i := 0; i < 3; i++ {
		_, err := svc.ScoreAddress(context.Background(), lowerAddress)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), f.extractor.calls.Load())
	assert.Empty(t, f.cache.entries)
}

func TestConcurrentRequestsShareOneComputation(t *testing.T) {
	f := newFixture()
	f.extractor.started = make(chan struct{})
	f.extractor.release = make(chan struct{})
	svc := f.service()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*RiskReport, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ScoreAddress(context.Background(), lowerAddress)
		}(i)
	}

	<-f.extractor.started
	time.Sleep(50 * time.Millisecond)
	close(f.extractor.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.extractor.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newFixture()
	f.extractor.started = make(chan struct{})
	f.extractor.release = make(chan struct{})
	svc := f.service()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.ScoreAddress(ctxA, lowerAddress)
		errA <- err
	}()
	<-f.extractor.started

	type result struct {
		report *RiskReport
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		report, err := svc.ScoreAddress(context.Background(), lowerAddress)
		resB <- result{report, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(f.extractor.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, lowerAddress, b.report.Address)
	assert.Equal(t, int32(1), f.extractor.calls.Load())
}

func TestSharedComputationIsBounded(t *testing.T) {
	f := newFixture()
	f.extractor.release = make(chan struct{})
	defer close(f.extractor.release)
	svc := f.service()
	svc.SetComputeTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := svc.ScoreAddress(context.Background(), lowerAddress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	var aerr *AnalysisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ComponentFeatureExtractor, aerr.Component)
}

func TestInvalidAddress(t *testing.T) {
	f := newFixture()
	_, err := f.service().AnalyzeAddress(context.Background(), "0x12")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	var aerr *AnalysisError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, ComponentValidator, aerr.Component)
	assert.Equal(t, int32(0), f.extractor.calls.Load())
}

func TestComponentFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		call      func(s *AnalysisService) error
		component string
		target    error
	}{
		{
			name:  "extractor",
			setup: func(f *fixture) { f.extractor.err = fmt.Errorf("%w: rpc down", ErrDataUnavailable) },
			call: func(s *AnalysisService) error {
				_, err := s.ScoreAddress(context.Background(), lowerAddress)
				return err
			},
			component: ComponentFeatureExtractor,
			target:    ErrDataUnavailable,
		},
		{
			name:  "risk model not trained",
			setup: func(f *fixture) { f.models.scorer = nil },
			call: func(s *AnalysisService) error {
				_, err := s.AnalyzeAddress(context.Background(), lowerAddress)
				return err
			},
			component: ComponentRiskModel,
			target:    ErrModelNotTrained,
		},
		{
			name:  "cluster model not trained",
			setup: func(f *fixture) { f.models.predictor = nil },
			call: func(s *AnalysisService) error {
				_, err := s.AnalyzeAddress(context.Background(), lowerAddress)
				return err
			},
			component: ComponentClusterModel,
			target:    ErrModelNotTrained,
		},
		{
			name: "missing features",
			setup: func(f *fixture) {
				f.models.predictor = fakePredictor{err: &MissingFeaturesError{Missing: []string{FeatureTokenCount}}}
			},
			call: func(s *AnalysisService) error {
				_, err := s.ProfileAddress(context.Background(), lowerAddress)
				return err
			},
			component: ComponentClusterModel,
			target:    ErrMissingFeatures,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			err := tt.call(f.service())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var aerr *AnalysisError
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, tt.component, aerr.Component)
			assert.Equal(t, lowerAddress, aerr.Address)
			assert.Empty(t, f.cache.entries, "failures are not cached")
			assert.Empty(t, f.publisher.kinds, "failures are not published")
		})
	}
}

func TestFailureIsNotCached(t *testing.T) {
	f := newFixture()
	f.extractor.err = ErrDataUnavailable
	svc := f.service()

	_, err := svc.ScoreAddress(context.Background(), lowerAddress)
	require.Error(t, err)

	f.extractor.err = nil
	_, err = svc.ScoreAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
}

func TestAnalyzeAddressExtractsOnce(t *testing.T) {
	f := newFixture()
	full, err := f.service().AnalyzeAddress(context.Background(), lowerAddress)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.extractor.calls.Load())
	assert.Equal(t, KindFull, full.Kind)
	require.NotNil(t, full.RiskAnalysis)
	require.NotNil(t, full.UserProfile)
	assert.Equal(t, 42.0, full.RiskAnalysis.RiskScore)
	assert.Equal(t, "Small Retail User", full.UserProfile.ClusterName)
	assert.Nil(t, full.Narrative)
	assert.Equal(t, []AnalysisKind{KindFull}, f.publisher.kinds)
}

func TestPublishFailureDoesNotSurface(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker down")

	_, err := f.service().AnalyzeAddress(context.Background(), lowerAddress)
	assert.NoError(t, err)
}

func TestCacheWriteFailureDoesNotSurface(t *testing.T) {
	f := newFixture()
	f.cache.setErr = errors.New("disk full")

	_, err := f.service().ScoreAddress(context.Background(), lowerAddress)
	assert.NoError(t, err)
}

func TestNarrateWithoutNarrator(t *testing.T) {
	f := newFixture()
	_, err := f.service().NarrateAddress(context.Background(), lowerAddress)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNarratorUnavailable)
	var aerr *AnalysisError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, ComponentNarrator, aerr.Component)
}

func TestNarrateAddress(t *testing.T) {
	f := newFixture()
	narrator := &fakeNarrator{}
	f.narrator = narrator
	svc := f.service()

	narrated, err := svc.NarrateAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
	assert.Equal(t, KindNarrative, narrated.Kind)
	require.NotNil(t, narrated.Narrative)
	assert.Equal(t, "Moderate risk wallet.", narrated.Narrative.Text)
	assert.NotNil(t, narrated.RiskAnalysis)

	_, err = svc.NarrateAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
	assert.Equal(t, int32(1), narrator.calls.Load())

	full, err := svc.AnalyzeAddress(context.Background(), lowerAddress)
	require.NoError(t, err)
	assert.Nil(t, full.Narrative, "the cached full analysis is not mutated")
	assert.NotContains(t, f.publisher.kinds, KindNarrative)
}

func TestNarratorFailure(t *testing.T) {
	f := newFixture()
	f.narrator = &fakeNarrator{err: errors.New("quota exceeded")}

	_, err := f.service().NarrateAddress(context.Background(), lowerAddress)
	require.Error(t, err)
	var aerr *AnalysisError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, ComponentNarrator, aerr.Component)
}
