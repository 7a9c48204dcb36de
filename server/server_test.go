package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custlens-org/custlens/config"
)

// ============================================================================
// HTTP SURFACE TESTS
// ============================================================================

var churnCityCSV = []byte(`CustomerID,Churn,Tenure,MonthlyCharges,City
C1,Yes,2,90.00,London
C2,No,30,40.00,Paris
C3,No,50,20.00,London
C4,Yes,1,95.00,Paris
C5,No,45,25.00,London
C6,Yes,3,85.00,Paris
C7,No,60,22.00,London
C8,No,55,21.00,Paris
`)

type client struct {
	t      *testing.T
	srv    *httptest.Server
	cookie *http.Cookie
}

func newClient(t *testing.T) *client {
	t.Helper()
	srv := httptest.NewServer(New(config.Default(), nil).Handler())
	t.Cleanup(srv.Close)
	return attach(t, srv)
}

// attach opens a fresh session against an existing server.
func attach(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	c := &client{t: t, srv: srv}
	resp := c.do("POST", "/api/sessions", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			c.cookie = ck
		}
	}
	require.NotNil(t, c.cookie, "session cookie must be set")
	return c
}

func (c *client) do(method, path string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *client) upload(path string, filename string, data []byte) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = fw.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())
	return c.do("POST", path, &buf, mw.FormDataContentType())
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestUploadStrictRouteRoundTrip(t *testing.T) {
	c := newClient(t)

	resp := c.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status    string `json:"status"`
		Strategy  string `json:"strategy"`
		Activated []struct {
			Module    string `json:"module"`
			Piggyback bool   `json:"piggyback"`
		} `json:"activated"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "activated", out.Status)
	assert.Equal(t, "strict", out.Strategy)
	require.Len(t, out.Activated, 2)
	assert.Equal(t, "churn", out.Activated[0].Module)
	assert.Equal(t, "geo", out.Activated[1].Module)
	assert.True(t, out.Activated[1].Piggyback)

	// Module status reflects the binding.
	var status struct {
		Active bool `json:"active"`
	}
	decode(t, c.do("GET", "/api/modules/churn", nil, ""), &status)
	assert.True(t, status.Active)

	// Preview returns the uploaded rows.
	var preview struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
		Total   int        `json:"total"`
	}
	decode(t, c.do("GET", "/api/modules/churn/preview?n=3", nil, ""), &preview)
	assert.Equal(t, []string{"CustomerID", "Churn", "Tenure", "MonthlyCharges", "City"}, preview.Columns)
	assert.Len(t, preview.Rows, 3)
	assert.Equal(t, 8, preview.Total)

	// Geo provenance names the parent and the location column.
	var prov struct {
		ParentModule   string `json:"parent_module"`
		LocationColumn string `json:"location_column"`
	}
	decode(t, c.do("GET", "/api/modules/geo/provenance", nil, ""), &prov)
	assert.Equal(t, "churn", prov.ParentModule)
	assert.Equal(t, "City", prov.LocationColumn)
}

func TestUploadLooseRoute(t *testing.T) {
	c := newClient(t)
	reviews := []byte("ReviewBody,Rating,Country\nGreat stuff,5,GBR\nAwful,1,USA\n")

	resp := c.upload("/api/datasets", "reviews.csv", reviews)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status   string `json:"status"`
		Strategy string `json:"strategy"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "activated", out.Status)
	assert.Equal(t, "loose", out.Strategy)

	var sentiment struct {
		Active bool `json:"active"`
	}
	decode(t, c.do("GET", "/api/modules/sentiment", nil, ""), &sentiment)
	assert.True(t, sentiment.Active)

	var churnStatus struct {
		Active bool `json:"active"`
	}
	decode(t, c.do("GET", "/api/modules/churn", nil, ""), &churnStatus)
	assert.False(t, churnStatus.Active)
}

func TestSessionIsolation(t *testing.T) {
	srv := httptest.NewServer(New(config.Default(), nil).Handler())
	t.Cleanup(srv.Close)

	c1 := attach(t, srv)
	c2 := attach(t, srv)

	resp := c1.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
	resp.Body.Close()

	var s1, s2 struct {
		Active bool `json:"active"`
	}
	decode(t, c1.do("GET", "/api/modules/churn", nil, ""), &s1)
	decode(t, c2.do("GET", "/api/modules/churn", nil, ""), &s2)
	assert.True(t, s1.Active)
	assert.False(t, s2.Active, "sessions must not share bindings")
}

func TestSampleEndpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample_churn.csv"), churnCityCSV, 0o644))

	cfg := config.Default()
	cfg.DataDir = dir
	srv := httptest.NewServer(New(cfg, nil).Handler())
	t.Cleanup(srv.Close)
	c := attach(t, srv)

	resp := c.do("POST", "/api/samples/churn?target=churn", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status string `json:"status"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "activated", out.Status)

	// Symbolic refs re-materialize through the loader on every read.
	var preview struct {
		Total int `json:"total"`
	}
	decode(t, c.do("GET", "/api/modules/churn/preview", nil, ""), &preview)
	assert.Equal(t, 8, preview.Total)

	resp = c.do("POST", "/api/samples/unknown", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEmptyUploadBindsNothing(t *testing.T) {
	c := newClient(t)

	resp := c.upload("/api/datasets?target=churn", "empty.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status string `json:"status"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "no_data", out.Status)

	var status struct {
		Active bool `json:"active"`
	}
	decode(t, c.do("GET", "/api/modules/churn", nil, ""), &status)
	assert.False(t, status.Active)
}

func TestUnknownModuleAndTarget(t *testing.T) {
	c := newClient(t)

	resp := c.do("GET", "/api/modules/forecasting", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.upload("/api/datasets?target=forecasting", "x.csv", churnCityCSV)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChurnReportEndpoint(t *testing.T) {
	c := newClient(t)
	resp := c.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
	resp.Body.Close()

	resp = c.do("GET", "/api/modules/churn/report", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Rows       int            `json:"rows"`
		ChurnRate  float64        `json:"churn_rate"`
		RiskCounts map[string]int `json:"risk_counts"`
	}
	decode(t, resp, &report)
	assert.Equal(t, 8, report.Rows)
	assert.InDelta(t, 0.375, report.ChurnRate, 0.001)

	// Without a bound dataset the report is a 404.
	c2 := newClient(t)
	resp = c2.do("GET", "/api/modules/churn/report", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGeoMapEndpoint(t *testing.T) {
	c := newClient(t)
	resp := c.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
	resp.Body.Close()

	resp = c.do("GET", "/api/modules/geo/map", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Kind       string `json:"kind"`
		MetricName string `json:"metric_name"`
		Points     []struct {
			Location string  `json:"location"`
			Metric   float64 `json:"metric"`
		} `json:"points"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "Region", out.Kind)
	assert.Equal(t, "churn_rate", out.MetricName)
	assert.Len(t, out.Points, 2)
}

func TestConcurrentSameSessionRequests(t *testing.T) {
	c := newClient(t)
	resp := c.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
	resp.Body.Close()

	// Parallel uploads and reads on one session must serialize, not race
	// on the registry map.
	const workers = 8
	statuses := make(chan int, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up := c.upload("/api/datasets?target=churn", "customers.csv", churnCityCSV)
			up.Body.Close()
			statuses <- up.StatusCode
			rd := c.do("GET", "/api/modules/churn/preview", nil, "")
			rd.Body.Close()
			statuses <- rd.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)
	for code := range statuses {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestGeoMapAfterDirectGeoTarget(t *testing.T) {
	c := newClient(t)
	resp := c.upload("/api/datasets?target=geo", "regions.csv", churnCityCSV)
	resp.Body.Close()

	resp = c.do("GET", "/api/modules/geo/provenance", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prov struct {
		Parent   string `json:"parent_module"`
		Location string `json:"location_column"`
	}
	decode(t, resp, &prov)
	assert.Equal(t, "geo", prov.Parent)
	assert.Equal(t, "City", prov.Location)

	resp = c.do("GET", "/api/modules/geo/map", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Kind       string `json:"kind"`
		MetricName string `json:"metric_name"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "Region", out.Kind)
	assert.Equal(t, "volume", out.MetricName)
}
