package session

import (
	"time"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// CAPABILITY REGISTRY — module → dataset bindings for one session
// ============================================================================
// The registry is the contract every analytical page relies on: after the
// router decides which modules a dataset activates, pages retrieve "their"
// data here without caring whether it arrived via upload, sample selection,
// or piggyback detection. Bindings are many-to-many with datasets — binding
// one module never disturbs another's binding, even when both point at the
// same physical table.
// ============================================================================

// SchemaVersion tags the binding layout. Get discards bindings written by an
// older layout instead of probing them structurally.
const SchemaVersion = 2

// RefKind distinguishes how a binding references its data.
type RefKind int

const (
	// RefMemory holds the dataset in the binding itself (uploads).
	RefMemory RefKind = iota
	// RefSample names a known sample-file key, materialized on Get.
	RefSample
)

// DataRef points at a physical dataset, either literally or symbolically.
type DataRef struct {
	Kind      RefKind
	Dataset   *dataset.Dataset // RefMemory
	SampleKey string           // RefSample
}

// MemoryRef wraps an in-memory dataset.
func MemoryRef(ds *dataset.Dataset) DataRef {
	return DataRef{Kind: RefMemory, Dataset: ds}
}

// SampleRef names a sample-catalog key.
func SampleRef(key string) DataRef {
	return DataRef{Kind: RefSample, SampleKey: key}
}

// Provenance records where a binding's data came from. For geospatial
// piggyback bindings it also records which module's dataset the capability
// was discovered on and which actual column serves as the location field.
type Provenance struct {
	Source         string          `json:"source,omitempty"`
	ParentModule   contract.Module `json:"parentModule,omitempty"`
	LocationColumn string          `json:"locationColumn,omitempty"`
}

// Binding links a module to the dataset satisfying its contract. A binding
// exists only for modules whose validation result was ready.
type Binding struct {
	Module     contract.Module
	Ref        DataRef
	Flavor     string
	Mapping    map[string]string // logical field → actual column
	Provenance Provenance
	Version    int
	BoundAt    time.Time
}

// SampleResolver resolves a sample-file key to an on-disk path.
// *config.Config satisfies it.
type SampleResolver interface {
	SamplePath(key string) (string, bool)
}

// Registry is the session-scoped capability store. It is confined to one
// session, which processes one interaction at a time, so it needs no lock;
// cross-session isolation is the owner's job.
type Registry struct {
	resolver SampleResolver
	bindings map[contract.Module]Binding
}

// NewRegistry creates an empty registry. The resolver may be nil when
// symbolic sample references are never used.
func NewRegistry(resolver SampleResolver) *Registry {
	return &Registry{
		resolver: resolver,
		bindings: make(map[contract.Module]Binding),
	}
}

// Bind records a capability binding, overwriting any previous binding for
// the same module and leaving every other module untouched.
func (r *Registry) Bind(b Binding) {
	b.Version = SchemaVersion
	if b.BoundAt.IsZero() {
		b.BoundAt = time.Now()
	}
	r.bindings[b.Module] = b
}

// IsActive reports whether the module has a current binding.
func (r *Registry) IsActive(m contract.Module) bool {
	b, ok := r.bindings[m]
	return ok && b.Version == SchemaVersion
}

// Binding returns the raw binding for a module.
func (r *Registry) Binding(m contract.Module) (Binding, bool) {
	b, ok := r.bindings[m]
	if !ok || b.Version != SchemaVersion {
		return Binding{}, false
	}
	return b, true
}

// Get materializes the dataset bound to a module. Unbound modules and
// stale-version bindings yield the empty dataset; symbolic sample
// references are loaded uniformly through the Loader.
func (r *Registry) Get(m contract.Module) *dataset.Dataset {
	b, ok := r.bindings[m]
	if !ok {
		return dataset.Empty()
	}
	if b.Version != SchemaVersion {
		delete(r.bindings, m)
		return dataset.Empty()
	}
	switch b.Ref.Kind {
	case RefMemory:
		if b.Ref.Dataset == nil {
			return dataset.Empty()
		}
		return b.Ref.Dataset
	case RefSample:
		if r.resolver == nil {
			return dataset.Empty()
		}
		path, ok := r.resolver.SamplePath(b.Ref.SampleKey)
		if !ok {
			return dataset.Empty()
		}
		return dataset.Load(path)
	}
	return dataset.Empty()
}

// GeoProvenance exposes which module's data the geospatial capability rode
// in on, and the actual location column, so the geospatial page can pick
// the metric to aggregate.
func (r *Registry) GeoProvenance() (parent contract.Module, locationCol string, ok bool) {
	b, found := r.Binding(contract.Geo)
	if !found {
		return "", "", false
	}
	return b.Provenance.ParentModule, b.Provenance.LocationColumn, true
}

// Active lists the bound modules in declaration order.
func (r *Registry) Active() []contract.Module {
	var out []contract.Module
	for _, m := range contract.Modules() {
		if r.IsActive(m) {
			out = append(out, m)
		}
	}
	return out
}

// Clear discards every binding.
func (r *Registry) Clear() {
	r.bindings = make(map[contract.Module]Binding)
}
