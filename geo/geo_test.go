package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// GEO ANALYZER TESTS
// ============================================================================

func TestDetectKind(t *testing.T) {
	route := dataset.Column{Values: []string{"London to Paris"}}
	assert.Equal(t, KindRoute, DetectKind(route))

	dashed := dataset.Column{Values: []string{"JFK-LHR"}}
	assert.Equal(t, KindRoute, DetectKind(dashed))

	region := dataset.Column{Values: []string{"Germany"}}
	assert.Equal(t, KindRegion, DetectKind(region))

	// First non-empty value decides.
	mixed := dataset.Column{Values: []string{"", "France", "London to Paris"}}
	assert.Equal(t, KindRegion, DetectKind(mixed))

	assert.Equal(t, KindRegion, DetectKind(dataset.Column{}))
}

func TestResolveOrigin(t *testing.T) {
	city, coord, ok := resolveOrigin("London to Paris")
	require.True(t, ok)
	assert.Equal(t, "London", city)
	assert.InDelta(t, 51.5074, coord.Lat, 0.001)

	// Substring fallback: "London Heathrow" is not a table key but
	// contains two; the longest match wins.
	city, _, ok = resolveOrigin("London Heathrow to JFK")
	require.True(t, ok)
	assert.Equal(t, "Heathrow", city)

	// " via " also splits.
	city, _, ok = resolveOrigin("Doha via Dubai")
	require.True(t, ok)
	assert.Equal(t, "Doha", city)

	_, _, ok = resolveOrigin("Atlantis to Shangri-La")
	assert.False(t, ok)
}

func TestAnalyzeRoutes(t *testing.T) {
	ds := dataset.FromRows(
		[]string{"Route", "Passengers"},
		[][]string{
			{"London to Paris", "100"},
			{"London to Tokyo", "80"},
			{"Doha to Sydney", "120"},
			{"Nowhere to Nothing", "5"},
		})

	res, err := NewAnalyzer(nil).Analyze(ds, "Route", "")
	require.NoError(t, err)
	assert.Equal(t, KindRoute, res.Kind)
	assert.Equal(t, "volume", res.MetricName)
	assert.Equal(t, 1, res.Unmapped)
	require.Len(t, res.Points, 2)

	// Sorted by count descending.
	assert.Equal(t, "London", res.Points[0].Location)
	assert.Equal(t, 2, res.Points[0].Count)
	assert.NotZero(t, res.Points[0].Lat)
	assert.Equal(t, "Doha", res.Points[1].Location)
}

func TestAnalyzeRegionsWithChurnMetric(t *testing.T) {
	ds := dataset.FromRows(
		[]string{"Churn", "Tenure", "MonthlyCharges", "Country"},
		[][]string{
			{"Yes", "2", "90.00", "Germany"},
			{"No", "30", "40.00", "Germany"},
			{"No", "50", "20.00", "France"},
			{"No", "40", "25.00", "France"},
		})

	res, err := NewAnalyzer(nil).Analyze(ds, "Country", contract.Churn)
	require.NoError(t, err)
	assert.Equal(t, KindRegion, res.Kind)
	assert.Equal(t, "churn_rate", res.MetricName)
	assert.Equal(t, contract.Churn, res.Parent)
	require.Len(t, res.Points, 2)

	byLoc := map[string]Point{}
	for _, p := range res.Points {
		byLoc[p.Location] = p
	}
	assert.InDelta(t, 0.5, byLoc["Germany"].Metric, 0.001)
	assert.InDelta(t, 0.0, byLoc["France"].Metric, 0.001)
}

func TestAnalyzeSentimentRatingMetric(t *testing.T) {
	ds := dataset.FromRows(
		[]string{"ReviewText", "Rating", "Country"},
		[][]string{
			{"great", "5", "GBR"},
			{"bad", "1", "GBR"},
			{"fine", "4", "FRA"},
		})

	res, err := NewAnalyzer(nil).Analyze(ds, "Country", contract.Sentiment)
	require.NoError(t, err)
	assert.Equal(t, "mean_rating", res.MetricName)

	byLoc := map[string]Point{}
	for _, p := range res.Points {
		byLoc[p.Location] = p
	}
	assert.InDelta(t, 3.0, byLoc["GBR"].Metric, 0.001)
	assert.InDelta(t, 4.0, byLoc["FRA"].Metric, 0.001)
}

func TestAnalyzeMissingColumn(t *testing.T) {
	ds := dataset.FromRows([]string{"A"}, [][]string{{"1"}})
	_, err := NewAnalyzer(nil).Analyze(ds, "City", "")
	require.Error(t, err)
}
