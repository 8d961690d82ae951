package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/chain-risk/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultComputeTimeout bounds one shared analysis computation
const DefaultComputeTimeout = 30 * time.Second

// AnalysisService is the core service composing feature extraction, risk
// scoring, explanation and profiling for an address
type AnalysisService struct {
	extractor    FeatureExtractor
	models       ModelSource
	explainer    RiskExplainer
	cache        CacheRepository
	publisher    ResultPublisher
	narrator     Narrator
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	timeout      time.Duration
	flights      singleflight.Group
	now          func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	extractor FeatureExtractor,
	models ModelSource,
	explainer RiskExplainer,
	cache CacheRepository,
	publisher ResultPublisher,
	narrator Narrator,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *AnalysisService {
	return &AnalysisService{
		extractor:    extractor,
		models:       models,
		explainer:    explainer,
		cache:        cache,
		publisher:    publisher,
		narrator:     narrator,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil && cacheTTL > 0,
		cacheTTL:     cacheTTL,
		timeout:      DefaultComputeTimeout,
		now:          time.Now,
	}
}

// SetComputeTimeout sets the upper bound on one shared computation.
// Non-positive values keep the current bound.
func (s *AnalysisService) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// ScoreAddress returns the risk score and explanation for an address
func (s *AnalysisService) ScoreAddress(ctx context.Context, address string) (*RiskReport, error) {
	addr, err := s.normalize(address)
	if err != nil {
		return nil, err
	}

	return loadOrCompute(ctx, s, s.key(addr, KindScore), func(ctx context.Context) (*RiskReport, error) {
		features, err := s.extract(ctx, addr)
		if err != nil {
			return nil, err
		}
		report, err := s.score(addr, features)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, &FullAnalysis{
			ID:           report.ID,
			Kind:         KindScore,
			Address:      addr,
			RiskAnalysis: report,
			AnalyzedAt:   report.AnalyzedAt,
		})
		return report, nil
	})
}

// ProfileAddress returns the behavioral cluster for an address
func (s *AnalysisService) ProfileAddress(ctx context.Context, address string) (*ProfileReport, error) {
	addr, err := s.normalize(address)
	if err != nil {
		return nil, err
	}

	return loadOrCompute(ctx, s, s.key(addr, KindProfile), func(ctx context.Context) (*ProfileReport, error) {
		features, err := s.extract(ctx, addr)
		if err != nil {
			return nil, err
		}
		profile, err := s.profile(addr, features)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, &FullAnalysis{
			ID:          profile.ID,
			Kind:        KindProfile,
			Address:     addr,
			UserProfile: profile,
			AnalyzedAt:  profile.AnalyzedAt,
		})
		return profile, nil
	})
}

// AnalyzeAddress scores and profiles an address from a single feature extraction
func (s *AnalysisService) AnalyzeAddress(ctx context.Context, address string) (*FullAnalysis, error) {
	addr, err := s.normalize(address)
	if err != nil {
		return nil, err
	}

	return loadOrCompute(ctx, s, s.key(addr, KindFull), func(ctx context.Context) (*FullAnalysis, error) {
		features, err := s.extract(ctx, addr)
		if err != nil {
			return nil, err
		}
		report, err := s.score(addr, features)
		if err != nil {
			return nil, err
		}
		profile, err := s.profile(addr, features)
		if err != nil {
			return nil, err
		}
		full := &FullAnalysis{
			ID:           uuid.NewString(),
			Kind:         KindFull,
			Address:      addr,
			RiskAnalysis: report,
			UserProfile:  profile,
			AnalyzedAt:   s.now(),
		}
		s.publish(ctx, full)
		return full, nil
	})
}

// NarrateAddress returns a full analysis with an LLM-written narrative attached
func (s *AnalysisService) NarrateAddress(ctx context.Context, address string) (*FullAnalysis, error) {
	addr, err := s.normalize(address)
	if err != nil {
		return nil, err
	}

	if s.narrator == nil {
		err := &AnalysisError{Component: ComponentNarrator, Address: addr, Err: ErrNarratorUnavailable}
		s.recordFailure(KindNarrative, err)
		return nil, err
	}

	full, err := s.AnalyzeAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	return loadOrCompute(ctx, s, s.key(addr, KindNarrative), func(ctx context.Context) (*FullAnalysis, error) {
		narrative, err := s.narrator.Narrate(ctx, full)
		if err != nil {
			return nil, &AnalysisError{Component: ComponentNarrator, Address: addr, Err: err}
		}
		narrated := *full
		narrated.Kind = KindNarrative
		narrated.Narrative = narrative
		return &narrated, nil
	})
}

func (s *AnalysisService) key(addr string, kind AnalysisKind) CacheKey {
	return CacheKey{Component: ComponentOrchestrator, Address: addr, Kind: kind}
}

func (s *AnalysisService) normalize(address string) (string, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		aerr := &AnalysisError{Component: ComponentValidator, Address: address, Err: err}
		s.logger.Warn("Rejected address",
			zap.String("component", aerr.Component),
			zap.String("address", address),
			zap.String("error_kind", ErrorKind(err)))
		return "", aerr
	}
	return addr, nil
}

func (s *AnalysisService) extract(ctx context.Context, addr string) (FeatureVector, error) {
	features, err := s.extractor.Extract(ctx, addr)
	if err != nil {
		return nil, &AnalysisError{Component: ComponentFeatureExtractor, Address: addr, Err: err}
	}
	return features, nil
}

func (s *AnalysisService) score(addr string, features FeatureVector) (*RiskReport, error) {
	scorer, err := s.models.RiskScorer()
	if err != nil {
		return nil, &AnalysisError{Component: ComponentRiskModel, Address: addr, Err: err}
	}
	score, importance, err := scorer.Predict(features)
	if err != nil {
		return nil, &AnalysisError{Component: ComponentRiskModel, Address: addr, Err: err}
	}
	metrics.RiskScores.Observe(score)

	explanation := s.explainer.Explain(features, score)
	return &RiskReport{
		ID:                uuid.NewString(),
		Kind:              KindScore,
		Address:           addr,
		RiskScore:         score,
		RiskLevel:         explanation.Level,
		RiskDescription:   explanation.LevelDescription,
		RiskExplanation:   explanation.Summary,
		RiskFactors:       explanation.Factors,
		AttentionPoints:   explanation.AttentionPoints,
		FeatureImportance: importance,
		Features:          features.Clone(),
		AnalyzedAt:        s.now(),
	}, nil
}

func (s *AnalysisService) profile(addr string, features FeatureVector) (*ProfileReport, error) {
	predictor, err := s.models.ClusterPredictor()
	if err != nil {
		return nil, &AnalysisError{Component: ComponentClusterModel, Address: addr, Err: err}
	}
	cluster, err := predictor.Predict(features)
	if err != nil {
		return nil, &AnalysisError{Component: ComponentClusterModel, Address: addr, Err: err}
	}

	return &ProfileReport{
		ID:                 uuid.NewString(),
		Kind:               KindProfile,
		Address:            addr,
		Cluster:            cluster.Cluster,
		ClusterName:        cluster.Name,
		ClusterDescription: cluster.Description,
		CentroidDistances:  cluster.CentroidDistances,
		Features:           features.Clone(),
		AnalyzedAt:         s.now(),
	}, nil
}

func (s *AnalysisService) publish(ctx context.Context, analysis *FullAnalysis) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, analysis); err != nil {
		metrics.PublishFailuresTotal.Inc()
		s.logger.Warn("Failed to publish analysis result",
			zap.String("address", analysis.Address),
			zap.String("kind", string(analysis.Kind)),
			zap.Error(err))
	}
}

func (s *AnalysisService) recordFailure(kind AnalysisKind, err error) {
	component := ComponentOrchestrator
	address := ""
	var aerr *AnalysisError
	if errors.As(err, &aerr) {
		component = aerr.Component
		address = aerr.Address
	}
	errorKind := ErrorKind(err)

	metrics.AnalysesTotal.WithLabelValues(string(kind), "failed").Inc()
	metrics.AnalysisErrorsTotal.WithLabelValues(component, errorKind).Inc()
	s.logger.Error("Analysis failed",
		zap.String("component", component),
		zap.String("address", address),
		zap.String("kind", string(kind)),
		zap.String("error_kind", errorKind),
		zap.Error(err))
}

// loadOrCompute serves key from the cache, otherwise runs compute at most
// once per key at a time and stores the result with the configured TTL.
// The shared computation is detached from any single caller's cancellation
// and bounded by the service timeout; each caller stops waiting when its own
// ctx ends.
func loadOrCompute[T any](ctx context.Context, s *AnalysisService, key CacheKey, compute func(context.Context) (*T, error)) (*T, error) {
	if cached, ok := lookup[T](ctx, s, key); ok {
		metrics.AnalysesTotal.WithLabelValues(string(key.Kind), "cached").Inc()
		return cached, nil
	}

	ch := s.flights.DoChan(key.String(), func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := time.Now()
		result, err := compute(cctx)
		if err != nil {
			var aerr *AnalysisError
			if !errors.As(err, &aerr) {
				err = &AnalysisError{Component: ComponentOrchestrator, Address: key.Address, Err: err}
			}
			s.recordFailure(key.Kind, err)
			return nil, err
		}
		metrics.AnalysisDuration.WithLabelValues(string(key.Kind)).Observe(time.Since(start).Seconds())
		store(cctx, s, key, result)
		return result, nil
	})

	select {
	case <-ctx.Done():
		metrics.AnalysesTotal.WithLabelValues(string(key.Kind), "abandoned").Inc()
		return nil, &AnalysisError{Component: ComponentOrchestrator, Address: key.Address, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		outcome := "computed"
		if res.Shared {
			outcome = "shared"
		}
		metrics.AnalysesTotal.WithLabelValues(string(key.Kind), outcome).Inc()
		return res.Val.(*T), nil
	}
}

func lookup[T any](ctx context.Context, s *AnalysisService, key CacheKey) (*T, bool) {
	if !s.cacheEnabled {
		return nil, false
	}

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Cache lookup failed", zap.String("cache_key", key.String()), zap.Error(err))
		}
		return nil, false
	}

	var out T
	if err := json.Unmarshal(entry.Payload, &out); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Discarding undecodable cache entry", zap.String("cache_key", key.String()), zap.Error(err))
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	s.logger.Debug("Cache hit", zap.String("cache_key", key.String()))
	return &out, true
}

func store[T any](ctx context.Context, s *AnalysisService, key CacheKey, result *T) {
	if !s.cacheEnabled {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to encode cache entry", zap.String("cache_key", key.String()), zap.Error(err))
		return
	}

	now := s.now()
	entry := &CacheEntry{
		Key:       key,
		Payload:   payload,
		StoredAt:  now,
		ExpiresAt: now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.String("cache_key", key.String()), zap.Error(err))
	}
}
