package pipeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizedBatch is a batch after schema completion and coercion.
type NormalizedBatch struct {
	Records []FeatureRecord
	// CustomerIDs is index-aligned with Records; nil where the row has none.
	CustomerIDs []*string
	// AutoFilled lists, in schema order, the columns absent from the upload.
	AutoFilled []string
}

// NormalizeRecord completes and coerces a single raw record. Missing fields
// take their schema defaults. It never fails.
func NormalizeRecord(raw RawRecord) FeatureRecord {
	values := resolveKeys(raw)
	return normalize(func(f Field) (any, bool) {
		v, ok := values[f.Column]
		return v, ok
	})
}

// resolveKeys maps raw keys onto schema columns, ignoring case as batch
// headers do. When several keys name one field, an exact JSON key wins, then
// an exact column name, then the alphabetically first other spelling.
func resolveKeys(raw RawRecord) map[string]any {
	type pick struct {
		key  string
		rank int
		v    any
	}
	picks := make(map[string]pick, len(raw))
	for k, v := range raw {
		f, ok := Lookup(k)
		if !ok {
			continue
		}
		rank := 2
		switch k {
		case f.JSONKey:
			rank = 0
		case f.Column:
			rank = 1
		}
		cur, seen := picks[f.Column]
		if !seen || rank < cur.rank || (rank == cur.rank && k < cur.key) {
			picks[f.Column] = pick{key: k, rank: rank, v: v}
		}
	}
	values := make(map[string]any, len(picks))
	for col, p := range picks {
		values[col] = p.v
	}
	return values
}

// NormalizeBatch completes and coerces every row of a decoded table and
// reports the schema columns the table did not carry. Row order is kept.
func NormalizeBatch(t *Table) NormalizedBatch {
	idx := make(map[string]int, len(schema))
	var autoFilled []string
	for _, f := range schema {
		if i := t.Index(f); i >= 0 {
			idx[f.Column] = i
		} else {
			autoFilled = append(autoFilled, f.Column)
		}
	}
	if autoFilled == nil {
		autoFilled = []string{}
	}
	idCol := t.customerIDIndex()

	out := NormalizedBatch{
		Records:     make([]FeatureRecord, len(t.Rows)),
		CustomerIDs: make([]*string, len(t.Rows)),
		AutoFilled:  autoFilled,
	}
	for r, row := range t.Rows {
		out.Records[r] = normalize(func(f Field) (any, bool) {
			i, ok := idx[f.Column]
			if !ok {
				return nil, false
			}
			return row[i], true
		})
		if idCol >= 0 {
			out.CustomerIDs[r] = CustomerID(row[idCol])
		}
	}
	return out
}

// RecordCustomerID returns the identifier carried by a single raw record,
// under its JSON key or its column name in any case.
func RecordCustomerID(raw RawRecord) *string {
	if v, ok := raw[CustomerIDJSONKey]; ok {
		return CustomerID(v)
	}
	if v, ok := raw[CustomerIDColumn]; ok {
		return CustomerID(v)
	}
	for k, v := range raw {
		if isCustomerIDColumn(k) {
			return CustomerID(v)
		}
	}
	return nil
}

// CustomerID trims an identifier and returns nil when it is blank.
func CustomerID(v any) *string {
	s, ok := toString(v)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func normalize(get func(Field) (any, bool)) FeatureRecord {
	var rec FeatureRecord
	var totalRaw any
	var totalPresent bool

	for _, f := range schema {
		v, present := get(f)
		switch f.Kind {
		case Categorical:
			rec.setString(f.Column, coerceCategorical(v, present, f.Default))
		case Integer:
			if !present {
				v = f.Default
			}
			rec.setInt(f.Column, coerceNonNegInt(v))
		case Float:
			if !present {
				v = f.Default
			}
			rec.MonthlyCharges = coerceNonNegFloat(v)
		case Derived:
			totalRaw, totalPresent = v, present
		}
	}

	rec.TotalCharges = deriveTotalCharges(totalRaw, totalPresent, rec.MonthlyCharges, rec.Tenure)
	return rec
}

// deriveTotalCharges keeps a usable total and otherwise falls back to
// monthly charges times tenure for this row.
func deriveTotalCharges(v any, present bool, monthly float64, tenure int) float64 {
	if present {
		if f, ok := toFloat(v); ok && f >= 0 {
			return f
		}
	}
	return monthly * float64(tenure)
}

func coerceCategorical(v any, present bool, def string) string {
	if def == "" {
		def = categoricalFallback
	}
	if !present {
		return def
	}
	s, ok := toString(v)
	if !ok || s == "" {
		return def
	}
	return s
}

func coerceNonNegInt(v any) int {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func coerceNonNegFloat(v any) float64 {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(x), true
	case bool:
		if x {
			return "Yes", true
		}
		return "No", true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return toString(float64(x))
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	}
	return "", false
}

// toFloat parses numbers and numeric strings; NaN and infinities do not count.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
