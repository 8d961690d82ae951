package clustering

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

type kmeansConfig struct {
	k       int
	nInit   int
	maxIter int
	tol     float64
}

type kmeansResult struct {
	centroids [][]float64
	labels    []int
	inertia   float64
}

// kmeans runs nInit seeded k-means++ restarts and keeps the lowest inertia
func kmeans(x [][]float64, cfg kmeansConfig, rng *rand.Rand) kmeansResult {
	var best kmeansResult
	for run := 0; run < cfg.nInit; run++ {
		res := lloyd(x, initPlusPlus(x, cfg.k, rng), cfg)
		if run == 0 || res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

// initPlusPlus picks centroids with probability proportional to squared
// distance from the nearest centroid chosen so far
func initPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(x[rng.Intn(n)]))

	d2 := make([]float64, n)
	for i := range x {
		d2[i] = sqDist(x[i], centroids[0])
	}

	for len(centroids) < k {
		total := floats.Sum(d2)
		next := rng.Intn(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range d2 {
				acc += d
				if acc >= target {
					next = i
					break
				}
			}
		}
		c := clone(x[next])
		centroids = append(centroids, c)
		for i := range x {
			if d := sqDist(x[i], c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

func lloyd(x [][]float64, centroids [][]float64, cfg kmeansConfig) kmeansResult {
	labels := make([]int, len(x))
	dim := len(x[0])

	for iter := 0; iter < cfg.maxIter; iter++ {
		for i := range x {
			labels[i], _ = nearest(x[i], centroids)
		}

		sums := make([][]float64, cfg.k)
		counts := make([]int, cfg.k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, l := range labels {
			floats.Add(sums[l], x[i])
			counts[l]++
		}

		var shift float64
		for c := range centroids {
			var next []float64
			if counts[c] == 0 {
				next = clone(x[farthest(x, labels, centroids)])
			} else {
				next = sums[c]
				floats.Scale(1/float64(counts[c]), next)
			}
			shift += sqDist(centroids[c], next)
			centroids[c] = next
		}
		if shift <= cfg.tol {
			break
		}
	}

	var inertia float64
	for i := range x {
		l, d := nearest(x[i], centroids)
		labels[i] = l
		inertia += d * d
	}
	return kmeansResult{centroids: centroids, labels: labels, inertia: inertia}
}

// nearest returns the closest centroid and its Euclidean distance; the lowest index wins ties
func nearest(row []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(row, centroid, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func farthest(x [][]float64, labels []int, centroids [][]float64) int {
	idx, maxDist := 0, -1.0
	for i := range x {
		if d := sqDist(x[i], centroids[labels[i]]); d > maxDist {
			idx, maxDist = i, d
		}
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
