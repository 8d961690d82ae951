// Package clustering implements the standardized k-means user profiler.
package clustering

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	artifactFormat  = "chain-risk/user-clustering"
	artifactVersion = 1

	// DefaultClusters is the number of behavioral segments
	DefaultClusters = 4
)

// Options control clustering
type Options struct {
	Clusters int
	NInit    int
	MaxIter  int
	Tol      float64
	Seed     int64
	Profiles map[int]Profile
}

// DefaultOptions returns the standard clustering configuration
func DefaultOptions() Options {
	return Options{
		Clusters: DefaultClusters,
		NInit:    10,
		MaxIter:  300,
		Tol:      1e-4,
		Seed:     42,
		Profiles: DefaultProfiles(),
	}
}

// Metrics summarizes a clustering run
type Metrics struct {
	Inertia                float64   `json:"inertia"`
	ClusterSizes           []int     `json:"cluster_sizes"`
	ExplainedVarianceRatio []float64 `json:"explained_variance_ratio"`
	Samples                int       `json:"samples"`
}

// Model is a trained clusterer. It is immutable and safe for concurrent use.
type Model struct {
	columns   []string
	mean      []float64
	scale     []float64
	centroids [][]float64
	profiles  map[int]Profile
	trainedAt time.Time
}

// Train standardizes the clustering columns of table and fits k-means
func Train(table *core.Table, opts Options) (*Model, *Metrics, error) {
	if opts.Clusters < 1 {
		return nil, nil, fmt.Errorf("clusters must be positive, got %d", opts.Clusters)
	}
	if opts.NInit < 1 || opts.MaxIter < 1 {
		return nil, nil, errors.New("n_init and max_iter must be positive")
	}
	if table.Len() < opts.Clusters {
		return nil, nil, fmt.Errorf("need at least %d rows to fit %d clusters, got %d", opts.Clusters, opts.Clusters, table.Len())
	}

	columns := core.ClusteringFeatures()
	x, err := table.Matrix(columns)
	if err != nil {
		return nil, nil, err
	}

	mean, scale := fitScaler(x, len(columns))
	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = standardize(row, mean, scale)
	}

	res := kmeans(z, kmeansConfig{
		k:       opts.Clusters,
		nInit:   opts.NInit,
		maxIter: opts.MaxIter,
		tol:     opts.Tol,
	}, rand.New(rand.NewSource(opts.Seed)))

	sizes := make([]int, opts.Clusters)
	for _, l := range res.labels {
		sizes[l]++
	}

	profiles := opts.Profiles
	if profiles == nil {
		profiles = DefaultProfiles()
	}

	m := &Model{
		columns:   columns,
		mean:      mean,
		scale:     scale,
		centroids: res.centroids,
		profiles:  copyProfiles(profiles),
		trainedAt: time.Now().UTC(),
	}
	metrics := &Metrics{
		Inertia:                res.inertia,
		ClusterSizes:           sizes,
		ExplainedVarianceRatio: explainedVariance(z, 2),
		Samples:                len(z),
	}
	return m, metrics, nil
}

// fitScaler returns per-column population mean and standard deviation.
// Constant columns get scale 1.
func fitScaler(x [][]float64, p int) ([]float64, []float64) {
	mean := make([]float64, p)
	scale := make([]float64, p)
	col := make([]float64, len(x))
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		mean[j] = m
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		scale[j] = sd
	}
	return mean, scale
}

func standardize(row, mean, scale []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - mean[j]) / scale[j]
	}
	return out
}

// explainedVariance returns the variance ratio of the first k principal components
func explainedVariance(z [][]float64, k int) []float64 {
	n := len(z)
	if n < 2 {
		return nil
	}
	p := len(z[0])
	data := mat.NewDense(n, p, nil)
	for i, row := range z {
		data.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil
	}
	vars := pc.VarsTo(nil)

	var total float64
	for _, v := range vars {
		total += v
	}
	out := make([]float64, 0, k)
	for i := 0; i < k && i < len(vars); i++ {
		if total > 0 {
			out = append(out, vars[i]/total)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// Predict assigns features to the nearest centroid using the training-time
// scaler and reports the distance to every centroid
func (m *Model) Predict(features core.FeatureVector) (*core.ClusterResult, error) {
	if m == nil || len(m.centroids) == 0 {
		return nil, core.ErrModelNotTrained
	}

	row, err := features.Row(m.columns)
	if err != nil {
		return nil, err
	}
	z := standardize(row, m.mean, m.scale)

	distances := make([]float64, len(m.centroids))
	cluster := 0
	for c, centroid := range m.centroids {
		distances[c] = floats.Distance(z, centroid, 2)
		if distances[c] < distances[cluster] {
			cluster = c
		}
	}

	profile := profileFor(m.profiles, cluster)
	return &core.ClusterResult{
		Cluster:           cluster,
		Name:              profile.Name,
		Description:       Describe(profile, features),
		CentroidDistances: distances,
	}, nil
}

// Clusters returns the number of centroids
func (m *Model) Clusters() int {
	return len(m.centroids)
}

// TrainedAt returns when the model was fitted
func (m *Model) TrainedAt() time.Time {
	return m.trainedAt
}

func copyProfiles(in map[int]Profile) map[int]Profile {
	out := make(map[int]Profile, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type artifact struct {
	Format    string          `json:"format"`
	Version   int             `json:"version"`
	Columns   []string        `json:"columns"`
	Mean      []float64       `json:"mean"`
	Scale     []float64       `json:"scale"`
	Centroids [][]float64     `json:"centroids"`
	Profiles  map[int]Profile `json:"profiles"`
	TrainedAt time.Time       `json:"trained_at"`
}

// Save writes the model as a JSON artifact
func (m *Model) Save(w io.Writer) error {
	if m == nil || len(m.centroids) == 0 {
		return core.ErrModelNotTrained
	}
	return json.NewEncoder(w).Encode(artifact{
		Format:    artifactFormat,
		Version:   artifactVersion,
		Columns:   m.columns,
		Mean:      m.mean,
		Scale:     m.scale,
		Centroids: m.centroids,
		Profiles:  m.profiles,
		TrainedAt: m.trainedAt,
	})
}

// Load reads a model written by Save
func Load(r io.Reader) (*Model, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidModelArtifact, err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidModelArtifact, err)
	}

	return &Model{
		columns:   a.Columns,
		mean:      a.Mean,
		scale:     a.Scale,
		centroids: a.Centroids,
		profiles:  a.Profiles,
		trainedAt: a.TrainedAt,
	}, nil
}

func (a *artifact) validate() error {
	if a.Format != artifactFormat {
		return fmt.Errorf("unexpected format %q", a.Format)
	}
	if a.Version != artifactVersion {
		return fmt.Errorf("unsupported version %d", a.Version)
	}
	p := len(a.Columns)
	if p == 0 {
		return errors.New("no columns")
	}
	if len(a.Mean) != p || len(a.Scale) != p {
		return errors.New("scaler does not match columns")
	}
	for j, s := range a.Scale {
		if s == 0 {
			return fmt.Errorf("zero scale for column %s", a.Columns[j])
		}
	}
	if len(a.Centroids) == 0 {
		return errors.New("no centroids")
	}
	for c, centroid := range a.Centroids {
		if len(centroid) != p {
			return fmt.Errorf("centroid %d has %d dimensions, want %d", c, len(centroid), p)
		}
	}
	return nil
}
