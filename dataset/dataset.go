package dataset

import (
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// DATASET — Ordered, typed, immutable-once-loaded tabular value
// ============================================================================
// A Dataset is not owned by any single analytical module; the capability
// registry may bind the same Dataset to several modules at once. Column
// order is preserved from the source file because contract matching is
// first-match-wins over that order.
// ============================================================================

// Type is the inferred semantic type of a column.
type Type int

const (
	TypeText Type = iota
	TypeNumeric
	TypeDatetime
)

// String returns the type name used in diagnostics.
func (t Type) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeDatetime:
		return "datetime"
	default:
		return "text"
	}
}

// Column is a named column holding raw cell values plus its inferred type.
type Column struct {
	Name   string
	Type   Type
	Values []string
}

// Float parses the i-th cell as a number. ok is false for nulls and
// unparsable cells.
func (c Column) Float(i int) (float64, bool) {
	if i < 0 || i >= len(c.Values) {
		return 0, false
	}
	return parseNumeric(c.Values[i])
}

// Floats returns every cell parsed as a number, with unparsable cells as 0
// and a parallel validity mask.
func (c Column) Floats() ([]float64, []bool) {
	vals := make([]float64, len(c.Values))
	ok := make([]bool, len(c.Values))
	for i := range c.Values {
		vals[i], ok[i] = parseNumeric(c.Values[i])
	}
	return vals, ok
}

// Time parses the i-th cell as a timestamp.
func (c Column) Time(i int) (time.Time, bool) {
	if i < 0 || i >= len(c.Values) {
		return time.Time{}, false
	}
	return parseDate(c.Values[i])
}

// Dataset is an ordered sequence of named, typed columns.
type Dataset struct {
	cols []Column
	rows int
}

// Empty returns the zero-row, zero-column sentinel. Loaders degrade to this
// on any failure; callers check IsEmpty instead of handling errors.
func Empty() *Dataset {
	return &Dataset{}
}

// FromRows builds a Dataset from a header row and data rows, inferring each
// column's type. Short rows are padded, long rows truncated.
func FromRows(headers []string, rows [][]string) *Dataset {
	if len(headers) == 0 {
		return Empty()
	}
	cols := make([]Column, len(headers))
	for j, h := range headers {
		vals := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				vals[i] = strings.TrimSpace(row[j])
			}
		}
		cols[j] = Column{Name: strings.TrimSpace(h), Type: detectType(vals), Values: vals}
	}
	return &Dataset{cols: cols, rows: len(rows)}
}

// IsEmpty reports whether the dataset holds no data at all.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.cols) == 0 || d.rows == 0
}

// Columns returns the column names in source order.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	if d == nil {
		return 0
	}
	return d.rows
}

// NumCols returns the column count.
func (d *Dataset) NumCols() int {
	if d == nil {
		return 0
	}
	return len(d.cols)
}

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (Column, bool) {
	if d == nil {
		return Column{}, false
	}
	for _, c := range d.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether a column with the exact name exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// Row returns the i-th row as name → raw value.
func (d *Dataset) Row(i int) map[string]string {
	if d == nil || i < 0 || i >= d.rows {
		return nil
	}
	row := make(map[string]string, len(d.cols))
	for _, c := range d.cols {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Head returns up to n rows as ordered cell slices, for previews.
func (d *Dataset) Head(n int) [][]string {
	if d == nil {
		return nil
	}
	if n > d.rows {
		n = d.rows
	}
	out := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(d.cols))
		for j, c := range d.cols {
			row[j] = c.Values[i]
		}
		out = append(out, row)
	}
	return out
}

// Rename returns a copy with columns renamed from a standard→actual mapping
// discovered by the validator. The mapping is inverted so the actual source
// names become the standard logical names.
func (d *Dataset) Rename(mapping map[string]string) *Dataset {
	if d == nil || len(mapping) == 0 {
		return d
	}
	inverted := make(map[string]string, len(mapping))
	for std, actual := range mapping {
		inverted[actual] = std
	}
	cols := make([]Column, len(d.cols))
	copy(cols, d.cols)
	for i := range cols {
		if std, ok := inverted[cols[i].Name]; ok {
			cols[i].Name = std
		}
	}
	return &Dataset{cols: cols, rows: d.rows}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// detectType requires 80%+ of non-null values to parse for numeric/datetime;
// anything else is text.
func detectType(values []string) Type {
	var nonNull, numCount, dateCount int
	for _, v := range values {
		if isNull(v) {
			continue
		}
		nonNull++
		if _, ok := parseNumeric(v); ok {
			numCount++
		}
		if _, ok := parseDate(v); ok {
			dateCount++
		}
	}
	if nonNull == 0 {
		return TypeText
	}
	threshold := int(float64(nonNull) * 0.8)
	if threshold == 0 {
		threshold = 1
	}
	if dateCount >= threshold && dateCount >= numCount {
		return TypeDatetime
	}
	if numCount >= threshold {
		return TypeNumeric
	}
	return TypeText
}

func isNull(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "NULL", "N/A", "n/a":
		return true
	}
	return false
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.ReplaceAll(s, ",", "") // handle "1,234.56"
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"Jan-2006",
	"January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
