package churn

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// FEATURE ENCODING — dataset → standardized design matrix
// ============================================================================

// maxLevels caps one-hot expansion of a categorical column. High-cardinality
// text columns (names, IDs, free text) would explode the matrix and carry no
// signal per level.
const maxLevels = 12

// featureSpec is the fitted encoding: which columns feed the model, the
// one-hot levels per categorical, and the scaling statistics. Stored so
// prediction and simulation encode rows exactly as training did.
type featureSpec struct {
	numeric     []string
	categorical []string
	levels      map[string][]string
	names       []string // design-matrix column names
	mean        []float64
	std         []float64
}

// isIDLike excludes identifier columns from the feature set.
func isIDLike(name string, col dataset.Column, rows int) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "id") && (strings.HasSuffix(lower, "id") || strings.HasPrefix(lower, "id")) {
		return true
	}
	if rows > 10 {
		unique := make(map[string]struct{}, rows)
		for _, v := range col.Values {
			unique[v] = struct{}{}
		}
		if len(unique) == rows {
			return true
		}
	}
	return false
}

// fitFeatures selects and fits the encoding against a training dataset.
// labelCol is excluded from the features.
func fitFeatures(ds *dataset.Dataset, labelCol string) *featureSpec {
	spec := &featureSpec{levels: make(map[string][]string)}
	rows := ds.NumRows()

	for _, name := range ds.Columns() {
		if name == labelCol {
			continue
		}
		col, _ := ds.Column(name)
		if isIDLike(name, col, rows) {
			continue
		}
		switch col.Type {
		case dataset.TypeNumeric:
			spec.numeric = append(spec.numeric, name)
		case dataset.TypeText:
			levels := distinctLevels(col)
			if len(levels) >= 2 && len(levels) <= maxLevels {
				spec.categorical = append(spec.categorical, name)
				spec.levels[name] = levels
			}
		}
		// datetime columns are skipped; tenure-style durations arrive numeric
	}

	for _, name := range spec.numeric {
		spec.names = append(spec.names, name)
	}
	for _, name := range spec.categorical {
		for _, lv := range spec.levels[name] {
			spec.names = append(spec.names, name+"="+lv)
		}
	}
	return spec
}

func distinctLevels(col dataset.Column) []string {
	seen := make(map[string]struct{})
	for _, v := range col.Values {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	return levels
}

// encode builds the raw (unscaled) design matrix.
func (s *featureSpec) encode(ds *dataset.Dataset) [][]float64 {
	rows := ds.NumRows()
	X := make([][]float64, rows)
	for i := range X {
		X[i] = make([]float64, len(s.names))
	}

	j := 0
	for _, name := range s.numeric {
		col, _ := ds.Column(name)
		vals, ok := col.Floats()
		// mean-impute unparsable cells
		var sum float64
		var n int
		for i := range vals {
			if ok[i] {
				sum += vals[i]
				n++
			}
		}
		fill := 0.0
		if n > 0 {
			fill = sum / float64(n)
		}
		for i := 0; i < rows; i++ {
			if ok[i] {
				X[i][j] = vals[i]
			} else {
				X[i][j] = fill
			}
		}
		j++
	}
	for _, name := range s.categorical {
		col, _ := ds.Column(name)
		for k, lv := range s.levels[name] {
			for i := 0; i < rows; i++ {
				if i < len(col.Values) && col.Values[i] == lv {
					X[i][j+k] = 1
				}
			}
		}
		j += len(s.levels[name])
	}
	return X
}

// encodeRow encodes a single name→value row for simulation.
func (s *featureSpec) encodeRow(row map[string]string) []float64 {
	x := make([]float64, len(s.names))
	j := 0
	for _, name := range s.numeric {
		if f, ok := parseFloat(row[name]); ok {
			x[j] = f
		} else {
			x[j] = s.mean[j] // unscaled mean would be wrong; mean here is post-fit raw mean
		}
		j++
	}
	for _, name := range s.categorical {
		val := row[name]
		for k, lv := range s.levels[name] {
			if val == lv {
				x[j+k] = 1
			}
		}
		j += len(s.levels[name])
	}
	return x
}

// fitScaling computes per-feature mean/std over the raw matrix and scales it
// in place to zero mean, unit variance (zero-variance columns become zero).
func (s *featureSpec) fitScaling(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	s.mean = make([]float64, cols)
	s.std = make([]float64, cols)
	n := float64(len(X))

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		s.mean[j] = sum / n
		var ss float64
		for i := range X {
			d := X[i][j] - s.mean[j]
			ss += d * d
		}
		s.std[j] = math.Sqrt(ss / n)
	}
	s.scale(X)
}

func (s *featureSpec) scale(X [][]float64) {
	for i := range X {
		for j := range X[i] {
			if s.std[j] != 0 {
				X[i][j] = (X[i][j] - s.mean[j]) / s.std[j]
			} else {
				X[i][j] = 0
			}
		}
	}
}

func (s *featureSpec) scaleRow(x []float64) {
	for j := range x {
		if s.std[j] != 0 {
			x[j] = (x[j] - s.mean[j]) / s.std[j]
		} else {
			x[j] = 0
		}
	}
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
