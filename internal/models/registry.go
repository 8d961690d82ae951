// Package models owns the loaded model handles and their artifacts on disk.
package models

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/metrics"
	"github.com/mikey/chain-risk/internal/models/clustering"
	"github.com/mikey/chain-risk/internal/models/riskscore"
	"go.uber.org/zap"
)

// Artifact base names
const (
	RiskScoreArtifact  = "risk_score_model"
	ClusteringArtifact = "user_clustering_model"
)

// Status reports which models are loaded
type Status struct {
	RiskModel    bool   `json:"risk_model"`
	ClusterModel bool   `json:"cluster_model"`
	RiskError    string `json:"risk_error,omitempty"`
	ClusterError string `json:"cluster_error,omitempty"`
}

// Registry holds the current immutable models. Reads never block; loads
// replace a handle atomically so in-flight requests finish on the old model.
type Registry struct {
	dir     string
	logger  *zap.Logger
	risk    atomic.Pointer[riskscore.Model]
	cluster atomic.Pointer[clustering.Model]
}

// NewRegistry creates a registry reading and writing artifacts under dir
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	return &Registry{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the artifact directory
func (r *Registry) Dir() string {
	return r.dir
}

// LoadAll loads the latest artifact of every model. A model whose artifact
// is missing or invalid stays unavailable without affecting the other.
func (r *Registry) LoadAll() Status {
	var status Status

	if m, err := loadFile(r.latestPath(RiskScoreArtifact), riskscore.Load); err != nil {
		status.RiskError = err.Error()
		r.logLoadFailure(RiskScoreArtifact, err)
	} else {
		r.risk.Store(m)
		r.logger.Info("Loaded model", zap.String("model", RiskScoreArtifact), zap.Time("trained_at", m.TrainedAt()))
	}

	if m, err := loadFile(r.latestPath(ClusteringArtifact), clustering.Load); err != nil {
		status.ClusterError = err.Error()
		r.logLoadFailure(ClusteringArtifact, err)
	} else {
		r.cluster.Store(m)
		r.logger.Info("Loaded model", zap.String("model", ClusteringArtifact), zap.Time("trained_at", m.TrainedAt()))
	}

	status.RiskModel = r.risk.Load() != nil
	status.ClusterModel = r.cluster.Load() != nil
	metrics.SetModelAvailable(RiskScoreArtifact, status.RiskModel)
	metrics.SetModelAvailable(ClusteringArtifact, status.ClusterModel)
	return status
}

// Reload re-reads the latest artifacts. A model that fails to load keeps
// its previous handle, if any.
func (r *Registry) Reload() Status {
	status := r.LoadAll()
	result := "ok"
	if status.RiskError != "" || status.ClusterError != "" {
		result = "partial"
	}
	metrics.ModelReloadsTotal.WithLabelValues(result).Inc()
	return status
}

func (r *Registry) logLoadFailure(name string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Model artifact not found, model unavailable",
			zap.String("model", name),
			zap.String("dir", r.dir))
		return
	}
	r.logger.Error("Failed to load model artifact",
		zap.String("model", name),
		zap.String("error_kind", core.ErrorKind(err)),
		zap.Error(err))
}

// RiskScorer returns the loaded risk model
func (r *Registry) RiskScorer() (core.RiskScorer, error) {
	m := r.risk.Load()
	if m == nil {
		return nil, core.ErrModelNotTrained
	}
	return m, nil
}

// ClusterPredictor returns the loaded clustering model
func (r *Registry) ClusterPredictor() (core.ClusterPredictor, error) {
	m := r.cluster.Load()
	if m == nil {
		return nil, core.ErrModelNotTrained
	}
	return m, nil
}

// Status reports current availability without reloading
func (r *Registry) Status() Status {
	return Status{
		RiskModel:    r.risk.Load() != nil,
		ClusterModel: r.cluster.Load() != nil,
	}
}

// PersistRiskModel writes m as a timestamped artifact, makes it the latest
// and installs it
func (r *Registry) PersistRiskModel(m *riskscore.Model, now time.Time) (string, error) {
	path, err := r.persist(RiskScoreArtifact, m.Save, now)
	if err != nil {
		return "", err
	}
	r.risk.Store(m)
	metrics.SetModelAvailable(RiskScoreArtifact, true)
	return path, nil
}

// PersistClusterModel writes m as a timestamped artifact, makes it the
// latest and installs it
func (r *Registry) PersistClusterModel(m *clustering.Model, now time.Time) (string, error) {
	path, err := r.persist(ClusteringArtifact, m.Save, now)
	if err != nil {
		return "", err
	}
	r.cluster.Store(m)
	metrics.SetModelAvailable(ClusteringArtifact, true)
	return path, nil
}

// PersistModels writes both models and installs them together. Both
// artifacts are fully written before either becomes the latest, so a failed
// save leaves the previous pair in place on disk and in memory.
func (r *Registry) PersistModels(risk *riskscore.Model, cluster *clustering.Model, now time.Time) (riskPath, clusterPath string, err error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create model directory: %w", err)
	}

	var staged []string
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()

	riskTmp, err := stageArtifact(r.latestPath(RiskScoreArtifact), risk.Save)
	if err != nil {
		return "", "", fmt.Errorf("failed to save risk model: %w", err)
	}
	staged = append(staged, riskTmp)
	clusterTmp, err := stageArtifact(r.latestPath(ClusteringArtifact), cluster.Save)
	if err != nil {
		return "", "", fmt.Errorf("failed to save clustering model: %w", err)
	}
	staged = append(staged, clusterTmp)

	riskPath = r.stampedPath(RiskScoreArtifact, now)
	if err := writeAtomic(riskPath, risk.Save); err != nil {
		return "", "", fmt.Errorf("failed to save risk model: %w", err)
	}
	clusterPath = r.stampedPath(ClusteringArtifact, now)
	if err := writeAtomic(clusterPath, cluster.Save); err != nil {
		os.Remove(riskPath)
		return "", "", fmt.Errorf("failed to save clustering model: %w", err)
	}

	if err := os.Rename(riskTmp, r.latestPath(RiskScoreArtifact)); err != nil {
		return "", "", fmt.Errorf("failed to install risk model: %w", err)
	}
	staged = staged[1:]
	if err := os.Rename(clusterTmp, r.latestPath(ClusteringArtifact)); err != nil {
		r.logger.Error("Risk model artifact replaced but clustering artifact was not",
			zap.String("risk_artifact", riskPath),
			zap.Error(err))
		return riskPath, "", fmt.Errorf("installed risk model without clustering model: %w", err)
	}
	staged = nil

	r.risk.Store(risk)
	r.cluster.Store(cluster)
	metrics.SetModelAvailable(RiskScoreArtifact, true)
	metrics.SetModelAvailable(ClusteringArtifact, true)

	r.logger.Info("Saved model artifacts",
		zap.String("risk_artifact", riskPath),
		zap.String("cluster_artifact", clusterPath))
	return riskPath, clusterPath, nil
}

func (r *Registry) persist(name string, save func(io.Writer) error, now time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	stamped := r.stampedPath(name, now)
	if err := writeAtomic(stamped, save); err != nil {
		return "", err
	}
	if err := writeAtomic(r.latestPath(name), save); err != nil {
		return "", err
	}

	r.logger.Info("Saved model artifact",
		zap.String("model", name),
		zap.String("path", stamped))
	return stamped, nil
}

func (r *Registry) stampedPath(name string, now time.Time) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.json", name, now.Format("20060102_150405")))
}

func (r *Registry) latestPath(name string) string {
	return filepath.Join(r.dir, name+"_latest.json")
}
