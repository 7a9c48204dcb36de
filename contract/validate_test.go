package contract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// VALIDATOR TESTS
// ============================================================================

var telcoCSV = [][]string{
	{"C001", "No", "12", "29.85"},
	{"C002", "Yes", "1", "70.70"},
	{"C003", "No", "45", "99.65"},
	{"C004", "Yes", "8", "55.00"},
}

func telcoDataset() *dataset.Dataset {
	return dataset.FromRows([]string{"CustomerID", "Churn", "Tenure", "MonthlyCharges"}, telcoCSV)
}

func TestChurnContractReady(t *testing.T) {
	ds := telcoDataset()
	res, err := ValidateModule(ds, Churn)
	require.NoError(t, err)
	require.True(t, res.IsReady())

	simple, ok := res.(*SimpleResult)
	require.True(t, ok, "churn is a simple contract")

	want := map[string]string{
		"Churn":          "Churn",
		"Tenure":         "Tenure",
		"MonthlyCharges": "MonthlyCharges",
	}
	if diff := cmp.Diff(want, simple.Mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, simple.Missing)
	assert.Empty(t, simple.TypeErrors)
}

func TestChurnContractMissingEverything(t *testing.T) {
	ds := dataset.FromRows([]string{"Age", "Spending_Score", "City"}, [][]string{
		{"25", "High", "London"},
		{"40", "Low", "Paris"},
		{"33", "Average", "Tokyo"},
	})

	res, err := ValidateModule(ds, Churn)
	require.NoError(t, err)
	require.False(t, res.IsReady())

	simple := res.(*SimpleResult)
	assert.Equal(t, []string{"Churn", "Tenure", "MonthlyCharges"}, simple.Missing)
	assert.Empty(t, simple.TypeErrors)

	// The same columns do satisfy the geospatial contract via "City".
	geoRes, err := ValidateModule(ds, Geo)
	require.NoError(t, err)
	require.True(t, geoRes.IsReady())
	assert.Equal(t, "City", Mapping(geoRes)["Location"])
}

func TestSynonymMatching(t *testing.T) {
	// Common export variants should still bind.
	ds := dataset.FromRows(
		[]string{"account_key", "Exited", "duration_months", "Monthly_Fee"},
		[][]string{
			{"A1", "Yes", "3", "19.99"},
			{"A2", "No", "26", "45.50"},
		})

	res, err := ValidateModule(ds, Churn)
	require.NoError(t, err)
	require.True(t, res.IsReady())

	m := Mapping(res)
	assert.Equal(t, "Exited", m["Churn"])
	assert.Equal(t, "duration_months", m["Tenure"])
	assert.Equal(t, "Monthly_Fee", m["MonthlyCharges"])
}

func TestFirstMatchWinsInColumnOrder(t *testing.T) {
	// Both columns match the Tenure pattern; the one earlier in the
	// dataset binds.
	ds := dataset.FromRows(
		[]string{"Churn", "tenure_months", "contract_duration", "monthly_charges"},
		[][]string{
			{"Yes", "4", "12", "30.00"},
			{"No", "20", "24", "80.00"},
		})

	res, err := ValidateModule(ds, Churn)
	require.NoError(t, err)
	require.True(t, res.IsReady())
	assert.Equal(t, "tenure_months", Mapping(res)["Tenure"])
}

func TestTypeErrorIsNotMissing(t *testing.T) {
	// Tenure matches by name but holds text. It must appear in the type
	// error channel, not the missing channel.
	ds := dataset.FromRows(
		[]string{"Churn", "Tenure", "MonthlyCharges"},
		[][]string{
			{"Yes", "short", "30.00"},
			{"No", "long", "80.00"},
		})

	res, err := ValidateModule(ds, Churn)
	require.NoError(t, err)
	require.False(t, res.IsReady())

	simple := res.(*SimpleResult)
	assert.Empty(t, simple.Missing)
	require.Len(t, simple.TypeErrors, 1)
	assert.Equal(t, "Tenure", simple.TypeErrors[0].Field)
	assert.Equal(t, "Tenure", simple.TypeErrors[0].Column)
	assert.Equal(t, "numeric", simple.TypeErrors[0].Expected)
	assert.Equal(t, "text", simple.TypeErrors[0].Actual)

	// The mistyped column still counts as matched.
	assert.Equal(t, "Tenure", simple.Mapping["Tenure"])
}

func TestFlavorDetectionDemographic(t *testing.T) {
	ds := dataset.FromRows(
		[]string{"Age", "Spending_Score", "Profession"},
		[][]string{
			{"25", "High", "Engineer"},
			{"40", "Low", "Doctor"},
			{"33", "Average", "Artist"},
		})

	res, err := ValidateModule(ds, Segmentation)
	require.NoError(t, err)
	require.True(t, res.IsReady())

	fr := res.(*FlavoredResult)
	assert.Equal(t, "demographic", fr.Flavor)
	require.Len(t, fr.Flavors, 2)
	assert.Equal(t, "demographic", fr.Flavors[0].Name)
	assert.Equal(t, "rfm", fr.Flavors[1].Name)
}

func TestFlavorDetectionRFM(t *testing.T) {
	ds := dataset.FromRows(
		[]string{"CustomerID", "InvoiceDate", "TotalAmount"},
		[][]string{
			{"C1", "2026-01-05", "120.00"},
			{"C1", "2026-02-10", "80.00"},
			{"C2", "2026-03-01", "40.00"},
		})

	res, err := ValidateModule(ds, Segmentation)
	require.NoError(t, err)
	require.True(t, res.IsReady())
	assert.Equal(t, "rfm", res.(*FlavoredResult).Flavor)
}

func TestFlavorTieBreakPrefersFirstDeclared(t *testing.T) {
	// Satisfies both flavors at once; demographic is declared first.
	ds := dataset.FromRows(
		[]string{"Age", "Spending_Score", "Profession", "CustomerID", "InvoiceDate", "TotalAmount"},
		[][]string{
			{"25", "High", "Engineer", "C1", "2026-01-05", "120.00"},
			{"40", "Low", "Doctor", "C2", "2026-02-10", "80.00"},
		})

	res, err := ValidateModule(ds, Segmentation)
	require.NoError(t, err)
	require.True(t, res.IsReady())

	fr := res.(*FlavoredResult)
	assert.Equal(t, "demographic", fr.Flavor)
	// Both per-flavor verdicts are still reported.
	assert.True(t, fr.Flavors[0].Result.Ready)
	assert.True(t, fr.Flavors[1].Result.Ready)
}

func TestValidateAllModules(t *testing.T) {
	report, err := Validate(telcoDataset(), "")
	require.NoError(t, err)
	require.Len(t, report, 4)
	assert.True(t, report[Churn].IsReady())
	assert.False(t, report[Segmentation].IsReady())
	assert.False(t, report[Sentiment].IsReady())
	assert.False(t, report[Geo].IsReady())
}

func TestValidateUnknownModule(t *testing.T) {
	_, err := Validate(telcoDataset(), Module("forecasting"))
	require.Error(t, err)
}

func TestValidateIsIdempotent(t *testing.T) {
	ds := telcoDataset()
	first, err := Validate(ds, "")
	require.NoError(t, err)
	second, err := Validate(ds, "")
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated validation diverged (-first +second):\n%s", diff)
	}
}

func TestValidateEmptyDataset(t *testing.T) {
	report, err := Validate(dataset.Empty(), "")
	require.NoError(t, err)
	for m, res := range report {
		assert.False(t, res.IsReady(), "module %s must not be ready on empty data", m)
	}
}
