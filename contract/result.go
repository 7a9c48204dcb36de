package contract

import (
	"fmt"
	"strings"
)

// ============================================================================
// VALIDATION RESULTS — Tagged variants, not probed dictionaries
// ============================================================================
// Simple and flavored modules report differently shaped diagnostics, so the
// result is a closed two-case variant. Callers type-switch; there are no
// optional keys to probe. Neither case is ever an error value: an
// unsatisfied contract is a normal outcome the caller renders for the user.
// ============================================================================

// Result is a per-module validation verdict: either *SimpleResult or
// *FlavoredResult.
type Result interface {
	IsReady() bool
	// Explain renders the diagnostic a user needs to fix their source data.
	Explain() string

	resultKind()
}

// TypeError records a field that matched by name but failed its predicate.
// Found-but-mistyped is orthogonal to missing.
type TypeError struct {
	Field    string `json:"field"`
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (e TypeError) String() string {
	return fmt.Sprintf("%s (found as %q) expects %s, got %s", e.Field, e.Column, e.Expected, e.Actual)
}

// SimpleResult is the verdict for a single field list.
type SimpleResult struct {
	Ready      bool              `json:"ready"`
	Missing    []string          `json:"missing,omitempty"`
	TypeErrors []TypeError       `json:"typeErrors,omitempty"`
	Mapping    map[string]string `json:"columnMapping,omitempty"` // logical field → actual column
}

func (r *SimpleResult) IsReady() bool { return r.Ready }
func (r *SimpleResult) resultKind()   {}

func (r *SimpleResult) Explain() string {
	if r.Ready {
		return "ready"
	}
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(r.Missing, ", "))
	}
	for _, te := range r.TypeErrors {
		parts = append(parts, te.String())
	}
	return strings.Join(parts, "; ")
}

// FlavorResult pairs a flavor name with its verdict.
type FlavorResult struct {
	Name   string        `json:"name"`
	Result *SimpleResult `json:"result"`
}

// FlavoredResult is the verdict for a contract with alternative sub-schemas.
// Flavor names the first flavor (in declared order) that is ready; when
// several are ready at once that order is the tie-break, not an error.
type FlavoredResult struct {
	Ready   bool           `json:"ready"`
	Flavor  string         `json:"flavor,omitempty"`
	Flavors []FlavorResult `json:"flavors"`
}

func (r *FlavoredResult) IsReady() bool { return r.Ready }
func (r *FlavoredResult) resultKind()   {}

func (r *FlavoredResult) Explain() string {
	if r.Ready {
		return fmt.Sprintf("ready (flavor %s)", r.Flavor)
	}
	var parts []string
	for _, fr := range r.Flavors {
		parts = append(parts, fmt.Sprintf("%s: %s", fr.Name, fr.Result.Explain()))
	}
	return "no flavor matched — " + strings.Join(parts, " | ")
}

// Chosen returns the per-flavor verdict of the detected flavor.
func (r *FlavoredResult) Chosen() *SimpleResult {
	for _, fr := range r.Flavors {
		if fr.Name == r.Flavor {
			return fr.Result
		}
	}
	return nil
}

// Mapping returns the column mapping of the verdict: the simple mapping, or
// the chosen flavor's mapping for flavored results. Nil when not ready.
func Mapping(r Result) map[string]string {
	switch res := r.(type) {
	case *SimpleResult:
		if res.Ready {
			return res.Mapping
		}
	case *FlavoredResult:
		if res.Ready {
			if chosen := res.Chosen(); chosen != nil {
				return chosen.Mapping
			}
		}
	}
	return nil
}
