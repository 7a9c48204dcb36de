package churn

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// CHURN PREDICTOR — logistic regression over encoded customer features
// ============================================================================

// Risk buckets a churn probability into an actionable group.
type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// RiskOf assigns a probability to a risk group. Cuts at 0.4 and 0.7.
func RiskOf(p float64) Risk {
	switch {
	case p < 0.4:
		return RiskLow
	case p < 0.7:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Prediction is a per-customer scoring result.
type Prediction struct {
	Probability float64 `json:"probability"`
	Risk        Risk    `json:"risk"`
}

// Driver is a feature's contribution to churn, aggregated back to the source
// column. Direction > 0 means higher values push toward churn.
type Driver struct {
	Column    string  `json:"column"`
	Weight    float64 `json:"weight"`
	Direction float64 `json:"direction"`
}

// PlanItem recommends the level of a categorical column with the lowest
// observed churn rate.
type PlanItem struct {
	Column    string  `json:"column"`
	BestLevel string  `json:"best_level"`
	ChurnRate float64 `json:"churn_rate"`
}

// Summary aggregates a trained model's view of the dataset.
type Summary struct {
	Rows        int                `json:"rows"`
	ChurnRate   float64            `json:"churn_rate"`
	RiskCounts  map[Risk]int       `json:"risk_counts"`
	Drivers     []Driver           `json:"drivers"`
	Plan        []PlanItem         `json:"plan"`
	Average     map[string]string  `json:"average_customer"`
	Predictions []Prediction       `json:"-"`
}

// Predictor fits and scores a churn model against a validated dataset.
// Column names are the standard field names after Rename, so the label
// column is always "Churn".
type Predictor struct {
	spec    *featureSpec
	weights []float64
	bias    float64
	labels  []float64
	log     *zap.SugaredLogger
}

// trainEpochs and learnRate tune the gradient descent. Full-batch descent
// converges fine at this scale; datasets here are session uploads, not
// warehouses.
const (
	trainEpochs = 200
	learnRate   = 0.1
)

func NewPredictor(log *zap.Logger) *Predictor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Predictor{log: log.Sugar()}
}

// Fit trains the model. The dataset must carry a "Churn" column; rows whose
// label cannot be parsed are dropped.
func (p *Predictor) Fit(ds *dataset.Dataset) error {
	col, ok := ds.Column("Churn")
	if !ok {
		return fmt.Errorf("churn: dataset has no Churn column")
	}
	labels := make([]float64, 0, ds.NumRows())
	keep := make([]int, 0, ds.NumRows())
	for i, v := range col.Values {
		y, ok := parseLabel(v)
		if !ok {
			continue
		}
		labels = append(labels, y)
		keep = append(keep, i)
	}
	if len(keep) < 2 {
		return fmt.Errorf("churn: not enough labeled rows (%d)", len(keep))
	}

	p.spec = fitFeatures(ds, "Churn")
	if len(p.spec.names) == 0 {
		return fmt.Errorf("churn: no usable feature columns")
	}
	X := p.spec.encode(ds)
	X = selectRows(X, keep)
	p.spec.fitScaling(X)
	p.labels = labels

	p.train(X, labels)
	p.log.Infow("churn model trained",
		"rows", len(keep), "features", len(p.spec.names))
	return nil
}

// train runs weighted full-batch logistic regression. The positive class is
// upweighted by the inverse class ratio so imbalanced churn datasets do not
// collapse to the majority prediction.
func (p *Predictor) train(X [][]float64, y []float64) {
	n := len(X)
	d := len(X[0])
	p.weights = make([]float64, d)
	p.bias = 0

	var pos float64
	for _, v := range y {
		pos += v
	}
	posWeight := 1.0
	if pos > 0 && pos < float64(n) {
		posWeight = (float64(n) - pos) / pos
	}

	grad := make([]float64, d)
	for epoch := 0; epoch < trainEpochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradB, total float64
		for i := 0; i < n; i++ {
			pred := sigmoid(dot(p.weights, X[i]) + p.bias)
			w := 1.0
			if y[i] == 1 {
				w = posWeight
			}
			err := (pred - y[i]) * w
			for j := 0; j < d; j++ {
				grad[j] += err * X[i][j]
			}
			gradB += err
			total += w
		}
		for j := 0; j < d; j++ {
			p.weights[j] -= learnRate * grad[j] / total
		}
		p.bias -= learnRate * gradB / total
	}
}

// Predict scores every row of a dataset encoded with the fitted spec.
func (p *Predictor) Predict(ds *dataset.Dataset) []Prediction {
	if p.spec == nil {
		return nil
	}
	X := p.spec.encode(ds)
	p.spec.scale(X)
	out := make([]Prediction, len(X))
	for i, x := range X {
		prob := sigmoid(dot(p.weights, x) + p.bias)
		out[i] = Prediction{Probability: prob, Risk: RiskOf(prob)}
	}
	return out
}

// Simulate scores a single hypothetical customer given as column→value.
func (p *Predictor) Simulate(row map[string]string) Prediction {
	if p.spec == nil {
		return Prediction{}
	}
	x := p.spec.encodeRow(row)
	p.spec.scaleRow(x)
	prob := sigmoid(dot(p.weights, x) + p.bias)
	return Prediction{Probability: prob, Risk: RiskOf(prob)}
}

// Drivers ranks source columns by aggregate weight magnitude. Direction comes
// from the correlation of the raw column with the label, which reads better
// than the sign of a one-hot weight.
func (p *Predictor) Drivers(ds *dataset.Dataset) []Driver {
	if p.spec == nil {
		return nil
	}
	agg := make(map[string]float64)
	for j, name := range p.spec.names {
		col := name
		if k := strings.IndexByte(name, '='); k >= 0 {
			col = name[:k]
		}
		agg[col] += math.Abs(p.weights[j])
	}

	labelCol, _ := ds.Column("Churn")
	y := make([]float64, len(labelCol.Values))
	for i, v := range labelCol.Values {
		if lv, ok := parseLabel(v); ok {
			y[i] = lv
		}
	}

	drivers := make([]Driver, 0, len(agg))
	for colName, w := range agg {
		dir := 0.0
		if col, ok := ds.Column(colName); ok && col.Type == dataset.TypeNumeric {
			vals, oks := col.Floats()
			xs := make([]float64, 0, len(vals))
			ys := make([]float64, 0, len(vals))
			for i := range vals {
				if oks[i] && i < len(y) {
					xs = append(xs, vals[i])
					ys = append(ys, y[i])
				}
			}
			if len(xs) > 2 {
				c := stat.Correlation(xs, ys, nil)
				if !math.IsNaN(c) {
					dir = c
				}
			}
		}
		drivers = append(drivers, Driver{Column: colName, Weight: w, Direction: dir})
	}
	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Weight != drivers[j].Weight {
			return drivers[i].Weight > drivers[j].Weight
		}
		return drivers[i].Column < drivers[j].Column
	})
	return drivers
}

// RetentionPlan finds, per categorical feature, the level whose customers
// churn least.
func (p *Predictor) RetentionPlan(ds *dataset.Dataset) []PlanItem {
	if p.spec == nil {
		return nil
	}
	labelCol, _ := ds.Column("Churn")
	plan := make([]PlanItem, 0, len(p.spec.categorical))
	for _, name := range p.spec.categorical {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		churned := make(map[string]float64)
		counts := make(map[string]float64)
		for i, v := range col.Values {
			if v == "" || i >= len(labelCol.Values) {
				continue
			}
			y, ok := parseLabel(labelCol.Values[i])
			if !ok {
				continue
			}
			counts[v]++
			churned[v] += y
		}
		best, bestRate := "", math.Inf(1)
		for lv, n := range counts {
			if n < 2 {
				continue
			}
			rate := churned[lv] / n
			if rate < bestRate || (rate == bestRate && lv < best) {
				best, bestRate = lv, rate
			}
		}
		if best != "" {
			plan = append(plan, PlanItem{Column: name, BestLevel: best, ChurnRate: bestRate})
		}
	}
	return plan
}

// AverageCustomer builds a representative row: median for numeric columns,
// mode for categoricals. Used as the base row for what-if simulation.
func (p *Predictor) AverageCustomer(ds *dataset.Dataset) map[string]string {
	if p.spec == nil {
		return nil
	}
	avg := make(map[string]string)
	for _, name := range p.spec.numeric {
		col, _ := ds.Column(name)
		vals, oks := col.Floats()
		xs := make([]float64, 0, len(vals))
		for i := range vals {
			if oks[i] {
				xs = append(xs, vals[i])
			}
		}
		if len(xs) == 0 {
			continue
		}
		sort.Float64s(xs)
		med := xs[len(xs)/2]
		if len(xs)%2 == 0 {
			med = (xs[len(xs)/2-1] + xs[len(xs)/2]) / 2
		}
		avg[name] = trimFloat(med)
	}
	for _, name := range p.spec.categorical {
		col, _ := ds.Column(name)
		counts := make(map[string]int)
		for _, v := range col.Values {
			if v != "" {
				counts[v]++
			}
		}
		best, bestN := "", 0
		for v, n := range counts {
			if n > bestN || (n == bestN && v < best) {
				best, bestN = v, n
			}
		}
		if best != "" {
			avg[name] = best
		}
	}
	return avg
}

// Summarize runs the full analysis on a fitted dataset.
func (p *Predictor) Summarize(ds *dataset.Dataset) *Summary {
	preds := p.Predict(ds)
	counts := map[Risk]int{RiskLow: 0, RiskMedium: 0, RiskHigh: 0}
	for _, pr := range preds {
		counts[pr.Risk]++
	}
	var churn float64
	if len(p.labels) > 0 {
		for _, y := range p.labels {
			churn += y
		}
		churn /= float64(len(p.labels))
	}
	return &Summary{
		Rows:        ds.NumRows(),
		ChurnRate:   churn,
		RiskCounts:  counts,
		Drivers:     p.Drivers(ds),
		Plan:        p.RetentionPlan(ds),
		Average:     p.AverageCustomer(ds),
		Predictions: preds,
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// parseLabel normalizes a churn label cell to 0/1.
func parseLabel(v string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "churned", "churn", "exited":
		return 1, true
	case "0", "no", "false", "stayed", "active", "retained":
		return 0, true
	}
	return 0, false
}

func selectRows(X [][]float64, keep []int) [][]float64 {
	out := make([][]float64, len(keep))
	for i, r := range keep {
		out[i] = X[r]
	}
	return out
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
