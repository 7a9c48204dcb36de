package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/custlens-org/custlens/churn"
	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
	"github.com/custlens-org/custlens/geo"
	"github.com/custlens-org/custlens/segment"
	"github.com/custlens-org/custlens/sentiment"
	"github.com/custlens-org/custlens/session"
)

// ============================================================================
// INGESTION
// ============================================================================

// handleUpload accepts a multipart dataset. With ?target=M the upload is
// routed strictly at that module; without it, loose keyword routing runs.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	ds := dataset.LoadBuffer(data, header.Filename)
	s.route(w, r, ctx, ds, session.MemoryRef(ds), header.Filename)
}

// handleSample loads a cataloged sample file and routes it. The registry
// stores only the symbolic key, so re-reads go back through the loader.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	key := chi.URLParam(r, "key")
	path, ok := s.cfg.SamplePath(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown sample "+key)
		return
	}
	ds := dataset.Load(path)
	s.route(w, r, ctx, ds, session.SampleRef(key), path)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, ctx *session.Context, ds *dataset.Dataset, ref session.DataRef, source string) {
	target := r.URL.Query().Get("target")
	if target == "" {
		out := s.router.RouteLoose(ctx.Registry, ds, ref, source)
		s.writeJSON(w, http.StatusOK, out)
		return
	}
	out, err := s.router.Route(ctx.Registry, ds, contract.Module(target), ref, source)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// MODULE STATUS AND PREVIEW
// ============================================================================

func (s *Server) handleModuleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	m := contract.Module(chi.URLParam(r, "module"))
	if !m.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown module "+string(m))
		return
	}
	b, ok := ctx.Registry.Binding(m)
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"module": m, "active": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"module":  m,
		"active":  true,
		"binding": b,
	})
}

func (s *Server) handleModulePreview(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	m := contract.Module(chi.URLParam(r, "module"))
	if !m.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown module "+string(m))
		return
	}
	ds := ctx.Registry.Get(m)
	if ds.IsEmpty() {
		s.writeError(w, http.StatusNotFound, "no dataset bound to "+string(m))
		return
	}
	n := 10
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			n = v
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"columns": ds.Columns(),
		"rows":    ds.Head(n),
		"total":   ds.NumRows(),
	})
}

func (s *Server) handleModuleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	m := contract.Module(chi.URLParam(r, "module"))
	if !m.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown module "+string(m))
		return
	}
	ds := ctx.Registry.Get(m)
	if ds.IsEmpty() {
		s.writeError(w, http.StatusNotFound, "no dataset bound to "+string(m))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"columns": ds.Profile()})
}

func (s *Server) handleGeoProvenance(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	parent, locationCol, ok := ctx.Registry.GeoProvenance()
	if !ok {
		s.writeError(w, http.StatusNotFound, "geo capability not active")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"parent_module":   parent,
		"location_column": locationCol,
	})
}

// ============================================================================
// ENGINE REPORTS
// ============================================================================

// boundDataset fetches the module's dataset renamed to standard field names,
// which is what every engine expects. Loose bindings carry no mapping or
// flavor, so those are recovered by validating the bound dataset here.
func (s *Server) boundDataset(ctx *session.Context, m contract.Module) (*dataset.Dataset, session.Binding, bool) {
	b, ok := ctx.Registry.Binding(m)
	if !ok {
		return nil, session.Binding{}, false
	}
	ds := ctx.Registry.Get(m)
	if ds.IsEmpty() {
		return nil, session.Binding{}, false
	}
	if b.Mapping == nil {
		res, err := contract.ValidateModule(ds, m)
		if err == nil && res.IsReady() {
			b.Mapping = contract.Mapping(res)
			if fr, ok := res.(*contract.FlavoredResult); ok {
				b.Flavor = fr.Flavor
			}
		}
	}
	return ds.Rename(b.Mapping), b, true
}

func (s *Server) handleChurnReport(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	ds, _, ok := s.boundDataset(ctx, contract.Churn)
	if !ok {
		s.writeError(w, http.StatusNotFound, "churn capability not active")
		return
	}
	p := churn.NewPredictor(s.log.Desugar())
	if err := p.Fit(ds); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, p.Summarize(ds))
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	ds, b, ok := s.boundDataset(ctx, contract.Segmentation)
	if !ok {
		s.writeError(w, http.StatusNotFound, "segmentation capability not active")
		return
	}
	k := segment.DefaultK
	if q := r.URL.Query().Get("k"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			k = v
		}
	}
	res, err := segment.NewEngine(s.log.Desugar()).Run(ds, b.Flavor, k)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSuggestK(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	ds, b, ok := s.boundDataset(ctx, contract.Segmentation)
	if !ok {
		s.writeError(w, http.StatusNotFound, "segmentation capability not active")
		return
	}
	scores, err := segment.NewEngine(s.log.Desugar()).SuggestK(ds, b.Flavor)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

func (s *Server) handleSentimentReport(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	ds, _, ok := s.boundDataset(ctx, contract.Sentiment)
	if !ok {
		s.writeError(w, http.StatusNotFound, "sentiment capability not active")
		return
	}
	res, err := sentiment.NewAnalyzer(s.log.Desugar()).Analyze(ds)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGeoMap(w http.ResponseWriter, r *http.Request) {
	ctx := s.sessionFrom(w, r)
	ctx.Lock()
	defer ctx.Unlock()
	b, ok := ctx.Registry.Binding(contract.Geo)
	if !ok {
		s.writeError(w, http.StatusNotFound, "geo capability not active")
		return
	}
	ds := ctx.Registry.Get(contract.Geo)
	if ds.IsEmpty() {
		s.writeError(w, http.StatusNotFound, "no dataset bound to geo")
		return
	}
	res, err := geo.NewAnalyzer(s.log.Desugar()).Analyze(ds, b.Provenance.LocationColumn, b.Provenance.ParentModule)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
