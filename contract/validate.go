package contract

import (
	"fmt"

	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// VALIDATOR — first-match-wins column binding
// ============================================================================

// CheckColumns evaluates a field list against a dataset.
//
// Fields are visited in declaration order; for each field the dataset's
// columns are scanned in their existing order and the first name the pattern
// matches is bound. A bound column that fails its type predicate is recorded
// as a type error but still counts as matched — missing and mistyped are
// separate failure channels. Ready requires both channels empty.
func CheckColumns(ds *dataset.Dataset, fields []Field) *SimpleResult {
	result := &SimpleResult{Mapping: make(map[string]string)}

	for _, field := range fields {
		matched := false
		for _, name := range ds.Columns() {
			if !field.Pattern.MatchString(name) {
				continue
			}
			result.Mapping[field.Name] = name
			matched = true
			if field.Type != nil {
				col, _ := ds.Column(name)
				if !field.Type.Fn(col) {
					result.TypeErrors = append(result.TypeErrors, TypeError{
						Field:    field.Name,
						Column:   name,
						Expected: field.Type.Name,
						Actual:   col.Type.String(),
					})
				}
			}
			break
		}
		if !matched {
			result.Missing = append(result.Missing, field.Name)
		}
	}

	result.Ready = len(result.Missing) == 0 && len(result.TypeErrors) == 0
	return result
}

// Validate evaluates module contracts against a dataset. With target "" it
// evaluates every module, which is what lets one load activate several
// modules at once. The work is a pure function of the dataset: validating
// twice yields identical results.
func Validate(ds *dataset.Dataset, target Module) (map[Module]Result, error) {
	var scope []Contract
	if target != "" {
		c, ok := For(target)
		if !ok {
			return nil, fmt.Errorf("unknown module %q", target)
		}
		scope = []Contract{c}
	} else {
		scope = rules
	}

	report := make(map[Module]Result, len(scope))
	for _, c := range scope {
		if c.Flavored() {
			report[c.Module] = checkFlavored(ds, c)
		} else {
			report[c.Module] = CheckColumns(ds, c.Fields)
		}
	}
	return report, nil
}

// ValidateModule evaluates a single module's contract.
func ValidateModule(ds *dataset.Dataset, m Module) (Result, error) {
	report, err := Validate(ds, m)
	if err != nil {
		return nil, err
	}
	return report[m], nil
}

func checkFlavored(ds *dataset.Dataset, c Contract) *FlavoredResult {
	result := &FlavoredResult{}
	for _, flavor := range c.Flavors {
		fr := CheckColumns(ds, flavor.Fields)
		result.Flavors = append(result.Flavors, FlavorResult{Name: flavor.Name, Result: fr})
		// First ready flavor in declared order is the detected one.
		if fr.Ready && !result.Ready {
			result.Ready = true
			result.Flavor = flavor.Name
		}
	}
	return result
}
