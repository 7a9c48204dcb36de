package segment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// SEGMENTATION ENGINE — demographic and RFM clustering with smart labels
// ============================================================================

// Mode names the feature recipe a dataset's columns allow.
type Mode string

const (
	ModeDemographic Mode = "Demographic"
	ModeRFM         Mode = "RFM"
)

// DefaultK matches the usual retail segmentation cut.
const DefaultK = 4

const (
	kmeansMaxIter = 100
	kmeansSeed    = 42
)

// Segment describes one cluster after labeling.
type Segment struct {
	ID      int                `json:"id"`
	Label   string             `json:"label"`
	Size    int                `json:"size"`
	Profile map[string]float64 `json:"profile"`
}

// Result is a full segmentation run.
type Result struct {
	Mode     Mode      `json:"mode"`
	K        int       `json:"k"`
	Features []string  `json:"features"`
	Segments []Segment `json:"segments"`
	Assign   []int     `json:"-"`
	Keys     []string  `json:"-"` // row keys: customer IDs in RFM mode, row indexes otherwise
}

// KScore pairs a candidate cluster count with its silhouette score.
type KScore struct {
	K     int     `json:"k"`
	Score float64 `json:"score"`
}

// Engine clusters validated datasets. The flavor reported by validation
// selects the recipe, so column names here are the standard field names.
type Engine struct {
	log *zap.SugaredLogger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log.Sugar()}
}

// Run clusters the dataset into k segments using the recipe for flavor.
func (e *Engine) Run(ds *dataset.Dataset, flavor string, k int) (*Result, error) {
	if k < 2 {
		k = DefaultK
	}
	X, features, keys, mode, err := buildFeatures(ds, flavor)
	if err != nil {
		return nil, err
	}
	if len(X) < k {
		return nil, fmt.Errorf("segment: %d usable rows cannot form %d clusters", len(X), k)
	}

	scaled := standardize(X)
	assign, err := newKMeans(k, kmeansMaxIter, kmeansSeed).fit(scaled)
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: mode, K: k, Features: features, Assign: assign, Keys: keys}
	res.Segments = summarize(X, features, assign, k, mode)
	e.log.Infow("segmentation complete", "mode", mode, "k", k, "rows", len(X))
	return res, nil
}

// SuggestK scores k=2..6 by silhouette so the caller can pick the sweet spot.
func (e *Engine) SuggestK(ds *dataset.Dataset, flavor string) ([]KScore, error) {
	X, _, _, _, err := buildFeatures(ds, flavor)
	if err != nil {
		return nil, err
	}
	scaled := standardize(X)

	var scores []KScore
	for k := 2; k <= 6; k++ {
		if len(scaled) < k {
			break
		}
		assign, err := newKMeans(k, kmeansMaxIter, kmeansSeed).fit(scaled)
		if err != nil {
			return nil, err
		}
		scores = append(scores, KScore{K: k, Score: silhouette(scaled, assign, k)})
	}
	return scores, nil
}

// ============================================================================
// FEATURE RECIPES
// ============================================================================

func buildFeatures(ds *dataset.Dataset, flavor string) ([][]float64, []string, []string, Mode, error) {
	switch strings.ToLower(flavor) {
	case "demographic":
		X, feats, keys, err := demographicFeatures(ds)
		return X, feats, keys, ModeDemographic, err
	case "rfm":
		X, keys, err := rfmFeatures(ds)
		return X, []string{"Recency", "Frequency", "Monetary"}, keys, ModeRFM, err
	default:
		return nil, nil, nil, "", fmt.Errorf("segment: unknown flavor %q", flavor)
	}
}

// demographicFeatures uses Age and Spending_Score, plus Family_Size when the
// column exists. A text spending score maps Low/Average/High to 1/2/3.
func demographicFeatures(ds *dataset.Dataset) ([][]float64, []string, []string, error) {
	age, ok := ds.Column("Age")
	if !ok {
		return nil, nil, nil, fmt.Errorf("segment: dataset has no Age column")
	}
	score, ok := ds.Column("Spending_Score")
	if !ok {
		return nil, nil, nil, fmt.Errorf("segment: dataset has no Spending_Score column")
	}
	features := []string{"Age", "Spending_Score"}
	family, hasFamily := ds.Column("Family_Size")
	if hasFamily {
		features = append(features, "Family_Size")
	}

	var X [][]float64
	var keys []string
	for i := 0; i < ds.NumRows(); i++ {
		a, okA := age.Float(i)
		s, okS := spendingScore(score, i)
		if !okA || !okS {
			continue
		}
		row := []float64{a, s}
		if hasFamily {
			f, okF := family.Float(i)
			if !okF {
				continue
			}
			row = append(row, f)
		}
		X = append(X, row)
		keys = append(keys, fmt.Sprintf("%d", i))
	}
	if len(X) == 0 {
		return nil, nil, nil, fmt.Errorf("segment: no complete demographic rows")
	}
	return X, features, keys, nil
}

func spendingScore(col dataset.Column, i int) (float64, bool) {
	if col.Type == dataset.TypeNumeric {
		return col.Float(i)
	}
	if i >= len(col.Values) {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(col.Values[i])) {
	case "low":
		return 1, true
	case "average", "medium":
		return 2, true
	case "high":
		return 3, true
	case "":
		return 0, false
	}
	return 1, true
}

// rfmFeatures aggregates transactions per customer. Recency is days from the
// customer's last purchase to the day after the newest purchase overall.
func rfmFeatures(ds *dataset.Dataset) ([][]float64, []string, error) {
	ids, ok := ds.Column("CustomerID")
	if !ok {
		return nil, nil, fmt.Errorf("segment: dataset has no CustomerID column")
	}
	dates, ok := ds.Column("InvoiceDate")
	if !ok {
		return nil, nil, fmt.Errorf("segment: dataset has no InvoiceDate column")
	}
	amounts, ok := ds.Column("TotalAmount")
	if !ok {
		return nil, nil, fmt.Errorf("segment: dataset has no TotalAmount column")
	}

	type agg struct {
		last      time.Time
		frequency int
		monetary  float64
	}
	byID := make(map[string]*agg)
	var newest time.Time
	for i := 0; i < ds.NumRows(); i++ {
		id := strings.TrimSpace(valueAt(ids, i))
		if id == "" {
			continue
		}
		t, okT := dates.Time(i)
		if !okT {
			continue
		}
		amt, okA := amounts.Float(i)
		if !okA {
			continue
		}
		a := byID[id]
		if a == nil {
			a = &agg{}
			byID[id] = a
		}
		if t.After(a.last) {
			a.last = t
		}
		if t.After(newest) {
			newest = t
		}
		a.frequency++
		a.monetary += amt
	}
	if len(byID) == 0 {
		return nil, nil, fmt.Errorf("segment: no complete transaction rows")
	}

	snapshot := newest.AddDate(0, 0, 1)
	keys := make([]string, 0, len(byID))
	for id := range byID {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	X := make([][]float64, len(keys))
	for i, id := range keys {
		a := byID[id]
		recency := snapshot.Sub(a.last).Hours() / 24
		X[i] = []float64{recency, float64(a.frequency), a.monetary}
	}
	return X, keys, nil
}

func valueAt(col dataset.Column, i int) string {
	if i < 0 || i >= len(col.Values) {
		return ""
	}
	return col.Values[i]
}

// ============================================================================
// LABELING
// ============================================================================

// summarize profiles each cluster on the raw (unscaled) features and names
// it from the profile, e.g. "Young Spender (C2)" or "Active Whale (C0)".
func summarize(X [][]float64, features []string, assign []int, k int, mode Mode) []Segment {
	p := len(features)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := 0; c < k; c++ {
		sums[c] = make([]float64, p)
	}
	for i, a := range assign {
		counts[a]++
		for j := 0; j < p; j++ {
			sums[a][j] += X[i][j]
		}
	}

	monetaryLo, monetaryHi := 0.0, 0.0
	if mode == ModeRFM {
		vals := make([]float64, len(X))
		for i := range X {
			vals[i] = X[i][2]
		}
		sort.Float64s(vals)
		monetaryLo = quantile(vals, 0.25)
		monetaryHi = quantile(vals, 0.75)
	}

	segments := make([]Segment, 0, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		profile := make(map[string]float64, p)
		for j, f := range features {
			profile[f] = sums[c][j] / float64(counts[c])
		}
		segments = append(segments, Segment{
			ID:      c,
			Label:   smartLabel(c, profile, mode, monetaryLo, monetaryHi),
			Size:    counts[c],
			Profile: profile,
		})
	}
	return segments
}

func smartLabel(id int, profile map[string]float64, mode Mode, monetaryLo, monetaryHi float64) string {
	var parts []string
	switch mode {
	case ModeDemographic:
		switch age := profile["Age"]; {
		case age < 30:
			parts = append(parts, "Young")
		case age < 50:
			parts = append(parts, "Mid-Age")
		default:
			parts = append(parts, "Senior")
		}
		switch score := profile["Spending_Score"]; {
		case score < 1.5:
			parts = append(parts, "Saver")
		case score > 2.5:
			parts = append(parts, "Spender")
		default:
			parts = append(parts, "Standard")
		}
		if fam, ok := profile["Family_Size"]; ok && fam > 3.5 {
			parts = append(parts, "(Fam)")
		}
	case ModeRFM:
		switch rec := profile["Recency"]; {
		case rec < 30:
			parts = append(parts, "Active")
		case rec > 90:
			parts = append(parts, "Lost")
		default:
			parts = append(parts, "Regular")
		}
		switch mon := profile["Monetary"]; {
		case mon > monetaryHi:
			parts = append(parts, "Whale")
		case mon < monetaryLo:
			parts = append(parts, "LowVal")
		default:
			parts = append(parts, "MidVal")
		}
	}
	return fmt.Sprintf("%s (C%d)", strings.Join(parts, " "), id)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// standardize scales each feature column to zero mean, unit variance,
// returning a copy.
func standardize(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	p := len(X[0])
	n := float64(len(X))
	mean := make([]float64, p)
	std := make([]float64, p)
	for j := 0; j < p; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		mean[j] = sum / n
		var ss float64
		for i := range X {
			d := X[i][j] - mean[j]
			ss += d * d
		}
		std[j] = math.Sqrt(ss / n)
	}

	out := make([][]float64, len(X))
	for i := range X {
		out[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			if std[j] != 0 {
				out[i][j] = (X[i][j] - mean[j]) / std[j]
			}
		}
	}
	return out
}
