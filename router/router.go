package router

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
	"github.com/custlens-org/custlens/session"
)

// ============================================================================
// CAPABILITY DETECTOR / AUTO-ROUTER
// ============================================================================
// Decides which analytical modules a freshly loaded dataset can feed, and
// records the decision in the session registry. Two strategies:
//
//   Route      — strict targeted routing: validate only the requested
//                module's contract, plus a forced geospatial probe
//                regardless of the target ("piggyback" detection).
//   RouteLoose — keyword substring routing for ingestion without a stated
//                target: every module whose keyword set hits any column
//                name activates. Deliberately recall-favoring; a
//                false-positive binding is cheaper than a missed
//                capability.
//
// Both strategies write identical binding shapes, so retrieval code never
// knows which one ran. "Nothing matched" is a valid terminal outcome, not
// an error.
// ============================================================================

// Status classifies a routing outcome.
type Status string

const (
	// StatusActivated — at least one module was bound.
	StatusActivated Status = "activated"
	// StatusInactive — data loaded, but no module's contract or keyword
	// set was satisfied.
	StatusInactive Status = "inactive"
	// StatusNoData — the dataset was empty; nothing was evaluated.
	StatusNoData Status = "no_data"
)

// Activation summarizes one module binding produced by a routing call.
type Activation struct {
	Module    contract.Module   `json:"module"`
	Flavor    string            `json:"flavor,omitempty"`
	Mapping   map[string]string `json:"columnMapping,omitempty"`
	Piggyback bool              `json:"piggyback,omitempty"`
}

// Outcome is the full routing verdict returned to the ingestion surface.
type Outcome struct {
	Status      Status                             `json:"status"`
	Strategy    string                             `json:"strategy"`
	Activated   []Activation                       `json:"activated,omitempty"`
	Diagnostics map[contract.Module]contract.Result `json:"diagnostics,omitempty"`
	// Columns carries the raw column names when nothing activated, so the
	// user can see what their data actually looks like.
	Columns []string `json:"columns,omitempty"`
}

// Router evaluates datasets against module contracts and keyword tables.
type Router struct {
	keywords map[contract.Module][]string
	log      *zap.SugaredLogger
}

// New creates a Router. The keyword table drives loose routing; each module
// owns its own list and modules without one never activate loosely.
func New(keywords map[contract.Module][]string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{keywords: keywords, log: log.Sugar()}
}

// Route performs strict targeted routing: the dataset is validated against
// the target module's contract only, plus the geospatial probe. On success
// the target (and, when detected, geo) are bound in the registry; on
// failure nothing is bound and the outcome carries the diagnostic.
func (rt *Router) Route(reg *session.Registry, ds *dataset.Dataset, target contract.Module, ref session.DataRef, source string) (*Outcome, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown module %q", target)
	}
	if ds.IsEmpty() {
		return &Outcome{Status: StatusNoData, Strategy: "strict"}, nil
	}

	res, err := contract.ValidateModule(ds, target)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Strategy:    "strict",
		Diagnostics: map[contract.Module]contract.Result{target: res},
	}

	if !res.IsReady() {
		outcome.Status = StatusInactive
		outcome.Columns = ds.Columns()
		rt.log.Infow("routing rejected", "module", target, "reason", res.Explain())
		return outcome, nil
	}

	flavor := detectedFlavor(res)
	mapping := contract.Mapping(res)
	prov := session.Provenance{Source: source}
	if target == contract.Geo {
		// A directly targeted geo binding carries the same provenance shape
		// as a piggyback one, so map retrieval never cares how it was bound.
		prov.ParentModule = contract.Geo
		prov.LocationColumn = mapping["Location"]
	}
	reg.Bind(session.Binding{
		Module:     target,
		Ref:        ref,
		Flavor:     flavor,
		Mapping:    mapping,
		Provenance: prov,
	})
	outcome.Status = StatusActivated
	outcome.Activated = append(outcome.Activated, Activation{
		Module:  target,
		Flavor:  flavor,
		Mapping: mapping,
	})
	rt.log.Infow("module activated", "module", target, "flavor", flavor, "source", source)

	// Forced secondary probe: the same dataset may also carry geospatial
	// capability, bound in addition to the target, never instead of it.
	if target != contract.Geo {
		geoRes, err := contract.ValidateModule(ds, contract.Geo)
		if err != nil {
			return nil, err
		}
		outcome.Diagnostics[contract.Geo] = geoRes
		if geoRes.IsReady() {
			geoMapping := contract.Mapping(geoRes)
			reg.Bind(session.Binding{
				Module:  contract.Geo,
				Ref:     ref,
				Mapping: geoMapping,
				Provenance: session.Provenance{
					Source:         source,
					ParentModule:   target,
					LocationColumn: geoMapping["Location"],
				},
			})
			outcome.Activated = append(outcome.Activated, Activation{
				Module:    contract.Geo,
				Mapping:   geoMapping,
				Piggyback: true,
			})
			rt.log.Infow("geospatial piggyback detected",
				"parent", target, "locationColumn", geoMapping["Location"])
		}
	}

	return outcome, nil
}

// RouteLoose performs keyword substring routing for ingestion without a
// stated target. Every module whose keyword set appears, case-insensitively,
// as a substring of any column name is activated against this same dataset.
func (rt *Router) RouteLoose(reg *session.Registry, ds *dataset.Dataset, ref session.DataRef, source string) *Outcome {
	if ds.IsEmpty() {
		return &Outcome{Status: StatusNoData, Strategy: "loose"}
	}

	columns := ds.Columns()
	outcome := &Outcome{Strategy: "loose"}

	for _, m := range contract.Modules() {
		hit := matchKeyword(columns, rt.keywords[m])
		if hit == "" {
			continue
		}
		prov := session.Provenance{Source: source}
		if m == contract.Geo {
			prov.LocationColumn = hit
		}
		reg.Bind(session.Binding{
			Module:     m,
			Ref:        ref,
			Provenance: prov,
		})
		outcome.Activated = append(outcome.Activated, Activation{Module: m})
		rt.log.Infow("module activated (loose)", "module", m, "column", hit, "source", source)
	}

	if len(outcome.Activated) == 0 {
		outcome.Status = StatusInactive
		outcome.Columns = columns
		rt.log.Infow("no capability detected", "columns", columns, "source", source)
		return outcome
	}
	outcome.Status = StatusActivated
	return outcome
}

// matchKeyword returns the first column containing any keyword, or "".
// Pure substring containment, not anchored matching.
func matchKeyword(columns, keywords []string) string {
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return col
			}
		}
	}
	return ""
}

func detectedFlavor(r contract.Result) string {
	if fr, ok := r.(*contract.FlavoredResult); ok {
		return fr.Flavor
	}
	return ""
}
