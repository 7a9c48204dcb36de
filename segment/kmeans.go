package segment

import (
	"errors"
	"math"
	"math/rand"
)

// ============================================================================
// K-MEANS — Lloyd's algorithm with k-means++ seeding
// ============================================================================

type kmeans struct {
	k         int
	maxIter   int
	rng       *rand.Rand
	centroids [][]float64
	inertia   float64
}

func newKMeans(k, maxIter int, seed int64) *kmeans {
	return &kmeans{k: k, maxIter: maxIter, rng: rand.New(rand.NewSource(seed))}
}

// fit clusters X and returns the per-row assignments.
func (m *kmeans) fit(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	n, p := len(X), len(X[0])
	if n < m.k {
		return nil, errors.New("number of data points is less than k")
	}

	m.initCenters(X)
	assign := make([]int, n)

	for it := 0; it < m.maxIter; it++ {
		changed := false
		m.inertia = 0

		for i := 0; i < n; i++ {
			best, bestD := -1, math.MaxFloat64
			for k := 0; k < m.k; k++ {
				d := euclidSquared(X[i], m.centroids[k])
				if d < bestD {
					bestD = d
					best = k
				}
			}
			if assign[i] != best {
				changed = true
			}
			assign[i] = best
			m.inertia += bestD
		}

		sums := make([][]float64, m.k)
		counts := make([]int, m.k)
		for k := 0; k < m.k; k++ {
			sums[k] = make([]float64, p)
		}
		for i := 0; i < n; i++ {
			k := assign[i]
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}
		for k := 0; k < m.k; k++ {
			if counts[k] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				m.centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}

		if !changed {
			break
		}
	}
	return assign, nil
}

// initCenters seeds centroids with k-means++: the first is a random point,
// each later one is drawn proportionally to squared distance from the
// nearest existing center.
func (m *kmeans) initCenters(X [][]float64) {
	n := len(X)
	m.centroids = make([][]float64, m.k)
	m.centroids[0] = append([]float64{}, X[m.rng.Intn(n)]...)

	for k := 1; k < m.k; k++ {
		distSq := make([]float64, n)
		total := 0.0
		for i, x := range X {
			minDist := math.MaxFloat64
			for _, c := range m.centroids[:k] {
				if d := euclidSquared(x, c); d < minDist {
					minDist = d
				}
			}
			distSq[i] = minDist
			total += minDist
		}

		r := m.rng.Float64() * total
		cumulative := 0.0
		chosen := n - 1
		for i, d2 := range distSq {
			cumulative += d2
			if cumulative >= r {
				chosen = i
				break
			}
		}
		m.centroids[k] = append([]float64{}, X[chosen]...)
	}
}

func euclidSquared(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// silhouette computes the mean silhouette coefficient of an assignment.
// Quadratic in rows, acceptable for session-sized uploads.
func silhouette(X [][]float64, assign []int, k int) float64 {
	n := len(X)
	if n == 0 || k < 2 {
		return 0
	}
	counts := make([]int, k)
	for _, a := range assign {
		counts[a]++
	}

	var total float64
	var scored int
	for i := 0; i < n; i++ {
		own := assign[i]
		if counts[own] <= 1 {
			continue
		}
		sums := make([]float64, k)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[assign[j]] += math.Sqrt(euclidSquared(X[i], X[j]))
		}
		a := sums[own] / float64(counts[own]-1)
		b := math.MaxFloat64
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(counts[c]); mean < b {
				b = mean
			}
		}
		if b == math.MaxFloat64 {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
		scored++
	}
	if scored == 0 {
		return 0
	}
	return total / float64(scored)
}
