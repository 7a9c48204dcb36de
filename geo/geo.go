package geo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
)

// ============================================================================
// GEO ANALYZER — routes vs regions, with metric rollups per parent module
// ============================================================================

// Kind says how the location column should be plotted.
type Kind string

const (
	KindRoute  Kind = "Route"
	KindRegion Kind = "Region"
)

// Coord is a resolved map point.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	ISO string  `json:"iso"`
}

// CityCoords resolves route origins. Lookup keys are lowercase.
var CityCoords = map[string]Coord{
	"london":      {51.5074, -0.1278, "GBR"},
	"heathrow":    {51.4700, -0.4543, "GBR"},
	"gatwick":     {51.1537, -0.1821, "GBR"},
	"stuttgart":   {48.7758, 9.1829, "DEU"},
	"new york":    {40.7128, -74.0060, "USA"},
	"jfk":         {40.6413, -73.7781, "USA"},
	"brussels":    {50.8503, 4.3517, "BEL"},
	"paris":       {48.8566, 2.3522, "FRA"},
	"frankfurt":   {50.1109, 8.6821, "DEU"},
	"doha":        {25.2854, 51.5310, "QAT"},
	"sydney":      {-33.8688, 151.2093, "AUS"},
	"tokyo":       {35.6762, 139.6503, "JPN"},
	"los angeles": {34.0522, -118.2437, "USA"},
	"chicago":     {41.8781, -87.6298, "USA"},
	"singapore":   {1.3521, 103.8198, "SGP"},
	"dubai":       {25.2048, 55.2708, "ARE"},
}

// Point is one plottable location with its rolled-up metric.
type Point struct {
	Location string  `json:"location"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Count    int     `json:"count"`
	Metric   float64 `json:"metric"`
}

// Result is a full geospatial pass over a location column.
type Result struct {
	Kind       Kind            `json:"kind"`
	MetricName string          `json:"metric_name"`
	Points     []Point         `json:"points"`
	Parent     contract.Module `json:"parent,omitempty"`
	Unmapped   int             `json:"unmapped"`
}

// Analyzer turns a location column into plottable points. The metric rolled
// up per location depends on which module the geo capability piggybacked on.
type Analyzer struct {
	log *zap.SugaredLogger
}

func NewAnalyzer(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{log: log.Sugar()}
}

var routePattern = regexp.MustCompile(`(\sto\s)|-`)
var originPattern = regexp.MustCompile(`(?i)^(.*?)(?:\s+to\s+|-|\s+via\s+)`)

// DetectKind inspects the first non-empty value: " to ", "-" or " via "
// means the column holds routes, anything else is treated as a region name.
func DetectKind(col dataset.Column) Kind {
	for _, v := range col.Values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if routePattern.MatchString(v) {
			return KindRoute
		}
		return KindRegion
	}
	return KindRegion
}

// Analyze rolls the dataset up by location. locationCol is the actual column
// name recorded at binding time; parent selects the metric:
// churn rate for churn, mean sentiment-adjacent numeric for sentiment,
// plain row volume otherwise.
func (a *Analyzer) Analyze(ds *dataset.Dataset, locationCol string, parent contract.Module) (*Result, error) {
	col, ok := ds.Column(locationCol)
	if !ok {
		return nil, fmt.Errorf("geo: dataset has no column %q", locationCol)
	}

	kind := DetectKind(col)
	metricName, metricAt := metricFor(ds, parent)

	type bucket struct {
		count int
		sum   float64
		n     int
	}
	buckets := make(map[string]*bucket)
	coords := make(map[string]Coord)
	unmapped := 0

	for i, raw := range col.Values {
		if strings.TrimSpace(raw) == "" {
			unmapped++
			continue
		}
		key := raw
		if kind == KindRoute {
			city, coord, ok := resolveOrigin(raw)
			if !ok {
				unmapped++
				continue
			}
			key = city
			coords[key] = coord
		}
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		if metricAt != nil {
			if v, ok := metricAt(i); ok {
				b.sum += v
				b.n++
			}
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		p := Point{Location: k, Count: b.count}
		if c, ok := coords[k]; ok {
			p.Lat, p.Lon = c.Lat, c.Lon
		}
		if b.n > 0 {
			p.Metric = b.sum / float64(b.n)
		} else {
			p.Metric = float64(b.count)
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Count != points[j].Count {
			return points[i].Count > points[j].Count
		}
		return points[i].Location < points[j].Location
	})

	a.log.Infow("geo analysis complete",
		"kind", kind, "points", len(points), "unmapped", unmapped, "metric", metricName)
	return &Result{
		Kind:       kind,
		MetricName: metricName,
		Points:     points,
		Parent:     parent,
		Unmapped:   unmapped,
	}, nil
}

// resolveOrigin extracts a route's origin city and looks up its coordinates.
// Falls back to a substring scan so "London Heathrow to JFK" still maps.
func resolveOrigin(route string) (string, Coord, bool) {
	m := originPattern.FindStringSubmatch(route)
	if m == nil {
		return "", Coord{}, false
	}
	origin := strings.ToLower(strings.TrimSpace(m[1]))
	if c, ok := CityCoords[origin]; ok {
		return title(origin), c, true
	}
	// Longest match wins so "london heathrow" resolves to heathrow, not
	// london; ties break alphabetically to keep the scan deterministic.
	best := ""
	for city := range CityCoords {
		if !strings.Contains(origin, city) {
			continue
		}
		if len(city) > len(best) || (len(city) == len(best) && city < best) {
			best = city
		}
	}
	if best != "" {
		return title(best), CityCoords[best], true
	}
	return "", Coord{}, false
}

func title(s string) string {
	parts := strings.Fields(s)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// metricFor picks the per-row metric to roll up. Returns the metric's name
// and an accessor, or a nil accessor when only counts make sense.
func metricFor(ds *dataset.Dataset, parent contract.Module) (string, func(int) (float64, bool)) {
	switch parent {
	case contract.Churn:
		col, ok := ds.Column("Churn")
		if !ok {
			break
		}
		return "churn_rate", func(i int) (float64, bool) {
			if i >= len(col.Values) {
				return 0, false
			}
			switch strings.ToLower(strings.TrimSpace(col.Values[i])) {
			case "1", "yes", "true", "churned", "churn", "exited":
				return 1, true
			case "0", "no", "false", "stayed", "active", "retained":
				return 0, true
			}
			return 0, false
		}
	case contract.Sentiment:
		// prefer a rating-style numeric column; the sentiment engine's
		// scores live in its own result, not in the dataset
		for _, name := range ds.Columns() {
			lower := strings.ToLower(name)
			if strings.Contains(lower, "rating") || strings.Contains(lower, "score") || strings.Contains(lower, "stars") {
				col, _ := ds.Column(name)
				if col.Type != dataset.TypeNumeric {
					continue
				}
				return "mean_" + lower, func(i int) (float64, bool) { return col.Float(i) }
			}
		}
	}
	return "volume", nil
}
