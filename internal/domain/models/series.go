package models

import "time"

// Field names understood by the indicator front-ends.
const (
	FieldHashRate      = "hash_rate"
	FieldDifficulty    = "difficulty"
	FieldPrice         = "price"
	FieldDailyIssuance = "daily_issuance_value"
	FieldUTXOAgeDays   = "utxo_age_days"
	FieldUTXOValue     = "utxo_value"
)

// IndicatorKind tags which front-end produced an analysis.
type IndicatorKind string

const (
	KindHashRibbon       IndicatorKind = "hash_ribbon"
	KindIssuanceMultiple IndicatorKind = "issuance_multiple"
	KindHODLWaves        IndicatorKind = "hodl_waves"
)

// IsValidKind returns true if k is a supported indicator kind.
func IsValidKind(k IndicatorKind) bool {
	switch k {
	case KindHashRibbon, KindIssuanceMultiple, KindHODLWaves:
		return true
	default:
		return false
	}
}

// ParseKind accepts both the snake_case kind and the dashed route form.
func ParseKind(s string) (IndicatorKind, bool) {
	switch s {
	case "hash_ribbon", "hash-ribbon":
		return KindHashRibbon, true
	case "issuance_multiple", "issuance-multiple", "puell":
		return KindIssuanceMultiple, true
	case "hodl_waves", "hodl-waves":
		return KindHODLWaves, true
	}
	return "", false
}

// Record is one timestamped observation. Fields vary by indicator.
type Record struct {
	Timestamp time.Time          `json:"timestamp" validate:"required"`
	Fields    map[string]float64 `json:"fields" validate:"required"`
}

// Series is a time-ordered list of records.
type Series []Record

// HasField reports whether at least one record carries the field.
func (s Series) HasField(name string) bool {
	for _, r := range s {
		if _, ok := r.Fields[name]; ok {
			return true
		}
	}
	return false
}

// Timestamps returns the record timestamps in order.
func (s Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s))
	for i, r := range s {
		out[i] = r.Timestamp
	}
	return out
}

// PreparedSeries is a validated, imputed series with dense columns.
type PreparedSeries struct {
	Records    Series
	Timestamps []time.Time
	Columns    map[string][]float64
	Proxies    []ProxyUse
	Imputed    int
}

// Column returns the dense values of a field.
func (p *PreparedSeries) Column(name string) ([]float64, bool) {
	v, ok := p.Columns[name]
	return v, ok
}

// Len is the number of records.
func (p *PreparedSeries) Len() int { return len(p.Timestamps) }
