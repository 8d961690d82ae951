package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrDataUnavailable is returned when upstream chain data cannot be fetched
	ErrDataUnavailable = errors.New("upstream data unavailable")

	// ErrModelNotTrained is returned when a model has not been trained or loaded
	ErrModelNotTrained = errors.New("model not trained")

	// ErrMissingFeatures is matched by MissingFeaturesError
	ErrMissingFeatures = errors.New("missing features")

	// ErrInvalidModelArtifact is returned when a persisted model cannot be decoded
	ErrInvalidModelArtifact = errors.New("invalid model artifact")

	// ErrNarratorUnavailable is returned when no narrator is configured
	ErrNarratorUnavailable = errors.New("narrator unavailable")

	// ErrInvalidAddress is returned for addresses that are not 20-byte hex
	ErrInvalidAddress = errors.New("invalid address")

	// ErrCacheMiss is returned by cache repositories for absent or expired keys
	ErrCacheMiss = errors.New("cache entry not found")
)

// MissingFeaturesError names the columns a feature vector lacks
type MissingFeaturesError struct {
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("missing features: %s", strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrMissingFeatures) match
func (e *MissingFeaturesError) Is(target error) bool {
	return target == ErrMissingFeatures
}

// Pipeline component names used in errors, logs and cache keys
const (
	ComponentValidator        = "address_validator"
	ComponentFeatureExtractor = "feature_extractor"
	ComponentRiskModel        = "risk_model"
	ComponentClusterModel     = "cluster_model"
	ComponentNarrator         = "narrator"
	ComponentOrchestrator     = "orchestrator"
)

// AnalysisError is the single error an analysis request returns
type AnalysisError struct {
	Component string
	Address   string
	Err       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Component, e.Address, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies err for logs and metrics
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrModelNotTrained):
		return "model_not_trained"
	case errors.Is(err, ErrMissingFeatures):
		return "missing_features"
	case errors.Is(err, ErrInvalidModelArtifact):
		return "invalid_model_artifact"
	case errors.Is(err, ErrNarratorUnavailable):
		return "narrator_unavailable"
	default:
		return "internal"
	}
}

// NormalizeAddress validates a hex address and lower-cases it
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
