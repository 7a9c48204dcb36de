package dataset

import (
	"sort"
)

// ============================================================================
// PROFILING — per-column summary statistics for previews
// ============================================================================

// ValueCount is one level of a text column with its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile summarizes one column for the data-preview surface.
// Numeric columns carry min/max/mean; text columns carry their top values.
type ColumnProfile struct {
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	NonNull   int          `json:"non_null"`
	Nulls     int          `json:"nulls"`
	Distinct  int          `json:"distinct"`
	Min       float64      `json:"min,omitempty"`
	Max       float64      `json:"max,omitempty"`
	Mean      float64      `json:"mean,omitempty"`
	TopValues []ValueCount `json:"top_values,omitempty"`
}

// topValueLimit caps how many text levels a profile reports.
const topValueLimit = 5

// Profile summarizes every column, preserving column order.
func (d *Dataset) Profile() []ColumnProfile {
	if d.IsEmpty() {
		return nil
	}
	profiles := make([]ColumnProfile, 0, len(d.cols))
	for _, col := range d.cols {
		profiles = append(profiles, profileColumn(col))
	}
	return profiles
}

func profileColumn(col Column) ColumnProfile {
	p := ColumnProfile{Name: col.Name, Type: col.Type.String()}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, v := range col.Values {
		if isNull(v) {
			p.Nulls++
			continue
		}
		p.NonNull++
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	p.Distinct = len(counts)

	switch col.Type {
	case TypeNumeric:
		var sum float64
		var n int
		first := true
		for _, v := range col.Values {
			f, ok := parseNumeric(v)
			if !ok {
				continue
			}
			if first || f < p.Min {
				p.Min = f
			}
			if first || f > p.Max {
				p.Max = f
			}
			first = false
			sum += f
			n++
		}
		if n > 0 {
			p.Mean = sum / float64(n)
		}
	case TypeText:
		// Most frequent first; first-seen order breaks ties.
		sort.SliceStable(order, func(i, j int) bool {
			return counts[order[i]] > counts[order[j]]
		})
		limit := topValueLimit
		if len(order) < limit {
			limit = len(order)
		}
		for _, v := range order[:limit] {
			p.TopValues = append(p.TopValues, ValueCount{Value: v, Count: counts[v]})
		}
	}
	return p
}
