package contract

import (
	"regexp"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// MODULE CONTRACTS — Rules Engine
// ============================================================================
// Each analytical module declares the logical fields a dataset must provide
// before the module can run. Matching is heuristic: a case-insensitive
// pattern searched against actual column names, plus an optional type
// predicate on the bound column. Real-world exports rarely agree on column
// naming, so patterns cover common synonyms and suffixes rather than
// demanding exact names.
// ============================================================================

// Module identifies one of the four fixed analytical capabilities.
type Module string

const (
	Churn        Module = "churn"
	Segmentation Module = "segmentation"
	Sentiment    Module = "sentiment"
	Geo          Module = "geo"
)

// Modules lists every module in declaration order.
func Modules() []Module {
	return []Module{Churn, Segmentation, Sentiment, Geo}
}

// Valid reports whether m is one of the known modules.
func (m Module) Valid() bool {
	switch m {
	case Churn, Segmentation, Sentiment, Geo:
		return true
	}
	return false
}

// Predicate is an optional column-type check attached to a field rule.
type Predicate struct {
	Name string
	Fn   func(dataset.Column) bool
}

var (
	// IsNumeric accepts columns whose inferred type is numeric.
	IsNumeric = &Predicate{Name: "numeric", Fn: func(c dataset.Column) bool {
		return c.Type == dataset.TypeNumeric
	}}
	// IsText accepts columns whose inferred type is plain text.
	IsText = &Predicate{Name: "text", Fn: func(c dataset.Column) bool {
		return c.Type == dataset.TypeText
	}}
)

// Field is one logical column requirement within a contract.
type Field struct {
	Name    string
	Pattern *regexp.Regexp
	Type    *Predicate // nil = any type
	Desc    string
}

// Contract declares what a dataset must satisfy for a module. Simple
// contracts have one field list; flavored contracts have ordered
// alternatives where satisfying any one flavor makes the module ready.
type Contract struct {
	Module  Module
	Fields  []Field  // simple contract
	Flavors []Flavor // flavored contract; mutually exclusive with Fields
}

// Flavor is one alternative interpretation of a flavored contract.
type Flavor struct {
	Name   string
	Fields []Field
}

// Flavored reports whether the contract declares sub-schemas.
func (c Contract) Flavored() bool {
	return len(c.Flavors) > 0
}

// rules holds every module's contract in declaration order. Flavor order
// matters: the first ready flavor is the detected one.
var rules = []Contract{
	{
		Module: Churn,
		Fields: []Field{
			{Name: "Churn", Pattern: regexp.MustCompile(`(?i)^churn$|^target$|^exited$`), Type: IsText},
			{Name: "Tenure", Pattern: regexp.MustCompile(`(?i)tenure|months?|duration`), Type: IsNumeric},
			{Name: "MonthlyCharges", Pattern: regexp.MustCompile(`(?i)monthly\s*[_.]?(charge|fee|bill|amt)`), Type: IsNumeric},
		},
	},
	{
		Module: Segmentation,
		Flavors: []Flavor{
			{
				Name: "demographic",
				Fields: []Field{
					{Name: "Age", Pattern: regexp.MustCompile(`(?i)\bage\b`), Type: IsNumeric},
					{Name: "Spending_Score", Pattern: regexp.MustCompile(`(?i)spending\s*[_.]?score`)},
					{Name: "Profession", Pattern: regexp.MustCompile(`(?i)profession|job|occupation`), Type: IsText},
				},
			},
			{
				Name: "rfm",
				Fields: []Field{
					{Name: "CustomerID", Pattern: regexp.MustCompile(`(?i)(customer|client|user|account)\s*[_.]?(id|no|code|key)`)},
					{Name: "InvoiceDate", Pattern: regexp.MustCompile(`(?i)(invoice|txn|transaction|purchase)\s*[_.]?date`)},
					{Name: "TotalAmount", Pattern: regexp.MustCompile(`(?i)(total)?\s*[_.]?(amount|amt|price|value|spend|cost)`), Type: IsNumeric},
				},
			},
		},
	},
	{
		Module: Sentiment,
		Fields: []Field{
			{Name: "ReviewText", Pattern: regexp.MustCompile(`(?i)review|comment|feedback|body|text|content`), Type: IsText},
		},
	},
	{
		Module: Geo,
		Fields: []Field{
			{
				Name:    "Location",
				Pattern: regexp.MustCompile(`(?i)route|destination|flight\s*path|country|region|state|city|province|zip|postal`),
				Type:    IsText,
				Desc:    "Geographic Column (Route, Country, City, etc.)",
			},
		},
	},
}

// For returns the contract declared for a module.
func For(m Module) (Contract, bool) {
	for _, c := range rules {
		if c.Module == m {
			return c, true
		}
	}
	return Contract{}, false
}
