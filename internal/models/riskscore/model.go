// Package riskscore implements the gradient-boosted risk classifier.
package riskscore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/mikey/chain-risk/internal/core"
)

const (
	artifactFormat  = "chain-risk/risk-score"
	artifactVersion = 1
)

// Params are the boosting hyperparameters
type Params struct {
	NumTrees       int     `json:"num_trees"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Subsample      float64 `json:"subsample"`
	ColSample      float64 `json:"colsample"`
	MinChildWeight float64 `json:"min_child_weight"`
	Lambda         float64 `json:"lambda"`
}

// DefaultParams returns the standard training configuration
func DefaultParams() Params {
	return Params{
		NumTrees:       100,
		MaxDepth:       5,
		LearningRate:   0.1,
		Subsample:      0.8,
		ColSample:      0.8,
		MinChildWeight: 1,
		Lambda:         1,
	}
}

func (p Params) validate() error {
	switch {
	case p.NumTrees < 1:
		return fmt.Errorf("num_trees must be positive, got %d", p.NumTrees)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be positive, got %d", p.MaxDepth)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %v", p.LearningRate)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %v", p.Subsample)
	case p.ColSample <= 0 || p.ColSample > 1:
		return fmt.Errorf("colsample must be in (0, 1], got %v", p.ColSample)
	case p.MinChildWeight < 0 || p.Lambda < 0:
		return fmt.Errorf("min_child_weight and lambda must not be negative")
	}
	return nil
}

// Model is a trained classifier. It is immutable and safe for concurrent use.
type Model struct {
	columns    []string
	params     Params
	baseMargin float64
	trees      []tree
	importance []core.FeatureImportance
	trainedAt  time.Time
}

// Train fits a classifier on every scoring column of table against its
// labels, holding out ceil(testFraction*n) shuffled rows for evaluation
func Train(table *core.Table, testFraction float64, seed int64, params Params) (*Model, *Metrics, error) {
	if err := params.validate(); err != nil {
		return nil, nil, err
	}
	if table.Len() == 0 {
		return nil, nil, errors.New("training table is empty")
	}
	columns := core.ScoringFeatures()

	x, err := table.Matrix(columns)
	if err != nil {
		return nil, nil, err
	}
	y := make([]float64, len(table.Rows))
	for i, row := range table.Rows {
		if row.Label == nil {
			return nil, nil, fmt.Errorf("row %s has no risk_label", row.Address)
		}
		if *row.Label != 0 && *row.Label != 1 {
			return nil, nil, fmt.Errorf("row %s has risk_label %d, want 0 or 1", row.Address, *row.Label)
		}
		y[i] = float64(*row.Label)
	}

	rng := rand.New(rand.NewSource(seed))
	trainIdx, testIdx, err := splitRows(len(y), testFraction, rng)
	if err != nil {
		return nil, nil, err
	}

	xTrain, yTrain := gather(x, y, trainIdx)
	m := fit(xTrain, yTrain, columns, params, rng)

	xTest, yTest := gather(x, y, testIdx)
	probs := make([]float64, len(xTest))
	for i, row := range xTest {
		probs[i] = m.probability(row)
	}
	metrics := Evaluate(yTest, probs)
	metrics.TrainSamples = len(trainIdx)
	metrics.TestSamples = len(testIdx)

	return m, metrics, nil
}

func fit(x [][]float64, y []float64, columns []string, params Params, rng *rand.Rand) *Model {
	n, p := len(x), len(columns)
	margin := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)

	b := &treeBuilder{
		x:      x,
		grad:   grad,
		hess:   hess,
		params: params,
		gains:  make([]float64, p),
	}

	trees := make([]tree, 0, params.NumTrees)
	for t := 0; t < params.NumTrees; t++ {
		for i := range x {
			prob := sigmoid(margin[i])
			grad[i] = prob - y[i]
			hess[i] = math.Max(prob*(1-prob), 1e-16)
		}

		rows := sampleRows(n, params.Subsample, rng)
		b.features = sampleColumns(p, params.ColSample, rng)
		tr := b.build(rows)
		trees = append(trees, tr)

		for i := range x {
			margin[i] += tr.predict(x[i])
		}
	}

	return &Model{
		columns:    append([]string(nil), columns...),
		params:     params,
		trees:      trees,
		importance: normalizeImportance(columns, b.gains),
		trainedAt:  time.Now().UTC(),
	}
}

// normalizeImportance scales total split gain per column to sum 1 and sorts descending
func normalizeImportance(columns []string, gains []float64) []core.FeatureImportance {
	var total float64
	for _, g := range gains {
		total += g
	}

	out := make([]core.FeatureImportance, len(columns))
	for i, col := range columns {
		out[i] = core.FeatureImportance{Feature: col}
		if total > 0 {
			out[i].Importance = gains[i] / total
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

// Predict returns the risk score (positive-class probability x 100) and the
// feature importance list
func (m *Model) Predict(features core.FeatureVector) (float64, []core.FeatureImportance, error) {
	if m == nil || len(m.trees) == 0 {
		return 0, nil, core.ErrModelNotTrained
	}

	row, err := features.Row(m.columns)
	if err != nil {
		return 0, nil, err
	}

	return m.probability(row) * 100, m.FeatureImportance(), nil
}

// FeatureImportance returns a copy of the importance list, highest first
func (m *Model) FeatureImportance() []core.FeatureImportance {
	out := make([]core.FeatureImportance, len(m.importance))
	copy(out, m.importance)
	return out
}

// Columns returns the input columns in model order
func (m *Model) Columns() []string {
	return append([]string(nil), m.columns...)
}

// TrainedAt returns when the model was fitted
func (m *Model) TrainedAt() time.Time {
	return m.trainedAt
}

func (m *Model) probability(row []float64) float64 {
	margin := m.baseMargin
	for i := range m.trees {
		margin += m.trees[i].predict(row)
	}
	return sigmoid(margin)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func splitRows(n int, testFraction float64, rng *rand.Rand) ([]int, []int, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	if n-nTest < 1 {
		return nil, nil, fmt.Errorf("not enough rows to train: %d rows with test fraction %v", n, testFraction)
	}
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

func gather(x [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}

type artifact struct {
	Format     string                   `json:"format"`
	Version    int                      `json:"version"`
	Columns    []string                 `json:"columns"`
	Params     Params                   `json:"params"`
	BaseMargin float64                  `json:"base_margin"`
	Trees      []tree                   `json:"trees"`
	Importance []core.FeatureImportance `json:"feature_importance"`
	TrainedAt  time.Time                `json:"trained_at"`
}

// Save writes the model as a JSON artifact
func (m *Model) Save(w io.Writer) error {
	if m == nil || len(m.trees) == 0 {
		return core.ErrModelNotTrained
	}
	enc := json.NewEncoder(w)
	return enc.Encode(artifact{
		Format:     artifactFormat,
		Version:    artifactVersion,
		Columns:    m.columns,
		Params:     m.params,
		BaseMargin: m.baseMargin,
		Trees:      m.trees,
		Importance: m.importance,
		TrainedAt:  m.trainedAt,
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
		columns:    a.Columns,
		params:     a.Params,
		baseMargin: a.BaseMargin,
		trees:      a.Trees,
		importance: a.Importance,
		trainedAt:  a.TrainedAt,
	}, nil
}

func (a *artifact) validate() error {
	if a.Format != artifactFormat {
		return fmt.Errorf("unexpected format %q", a.Format)
	}
	if a.Version != artifactVersion {
		return fmt.Errorf("unsupported version %d", a.Version)
	}
	if len(a.Columns) == 0 {
		return errors.New("no columns")
	}
	if len(a.Trees) == 0 {
		return errors.New("no trees")
	}
	for ti, t := range a.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(a.Columns) {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child out of range", ti, ni)
			}
		}
	}
	return nil
}
