package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ============================================================================
// UNIVERSAL LOADER — path or in-memory buffer → Dataset
// ============================================================================
// Format is chosen by file extension (.csv, .xlsx, .xls, .parquet, .json).
// Every failure mode — missing path, unsupported extension, decode error —
// degrades to the empty Dataset. The reason is logged as a diagnostic; it is
// never part of the return contract, so routing code upstream only ever
// checks IsEmpty.
// ============================================================================

var logger = zap.NewNop().Sugar()

// SetLogger installs the process logger for loader diagnostics.
func SetLogger(l *zap.Logger) {
	logger = l.Sugar()
}

// Load reads a dataset from a filesystem path.
func Load(path string) *Dataset {
	if path == "" {
		return Empty()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnw("dataset load failed", "path", path, "error", err)
		return Empty()
	}
	return LoadBuffer(data, path)
}

// LoadBuffer reads a dataset from an in-memory upload buffer. The filename
// is only used for extension dispatch; buffers without an extension are
// treated as CSV.
func LoadBuffer(data []byte, filename string) *Dataset {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".csv"
	}

	var (
		ds  *Dataset
		err error
	)
	switch ext {
	case ".csv":
		ds, err = readCSV(data)
	case ".xlsx", ".xls":
		ds, err = readExcel(data)
	case ".parquet":
		ds, err = readParquet(data)
	case ".json":
		ds, err = readJSON(data)
	default:
		logger.Warnw("unsupported dataset format", "filename", filename, "ext", ext)
		return Empty()
	}
	if err != nil {
		logger.Warnw("dataset decode failed", "filename", filename, "ext", ext, "error", err)
		return Empty()
	}
	return ds
}

// ============================================================================
// CSV
// ============================================================================

func readCSV(data []byte) (*Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, row)
	}
	return FromRows(headers, rows), nil
}

// ============================================================================
// EXCEL
// ============================================================================

func readExcel(data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return FromRows(rows[0], rows[1:]), nil
}

// ============================================================================
// PARQUET
// ============================================================================

func readParquet(data []byte) (*Dataset, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fields := f.Schema().Fields()
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Name()
	}

	var rows [][]string
	for _, rg := range f.RowGroups() {
		rr := rg.Rows()
		buf := make([]parquet.Row, 128)
		for {
			n, err := rr.ReadRows(buf)
			for _, pr := range buf[:n] {
				row := make([]string, len(headers))
				for _, v := range pr {
					if col := int(v.Column()); col >= 0 && col < len(row) {
						row[col] = parquetValueString(v)
					}
				}
				rows = append(rows, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rr.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
		}
		rr.Close()
	}
	return FromRows(headers, rows), nil
}

func parquetValueString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// ============================================================================
// JSON (records orient: array of flat objects)
// ============================================================================

func readJSON(data []byte) (*Dataset, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse JSON records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("JSON array has no records")
	}

	// Column order comes from the first object's key order in the raw text;
	// Go maps do not preserve it.
	headers, err := firstObjectKeys(data)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = jsonValueString(rec[h])
		}
		rows[i] = row
	}
	return FromRows(headers, rows), nil
}

// firstObjectKeys token-scans the first object of a JSON array for key order.
func firstObjectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening '['
		return nil, fmt.Errorf("invalid JSON records: %w", err)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON records: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("JSON records must be an array of objects")
	}

	var keys []string
	depth := 0
	expectKey := true
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON records: %w", err)
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
				expectKey = false
			case '}', ']':
				if depth == 0 {
					return keys, nil
				}
				depth--
				if depth == 0 {
					expectKey = true
				}
			}
			continue
		}
		if depth == 0 && expectKey {
			if key, ok := tok.(string); ok {
				keys = append(keys, key)
			}
			expectKey = false
		} else if depth == 0 {
			expectKey = true
		}
	}
}

func jsonValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
