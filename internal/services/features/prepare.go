package features

import (
	"math"
	"sort"

	"ChainPulse/internal/domain/models"
)

// ProxyRule derives Field from Source when no record carries Field.
type ProxyRule struct {
	Field  string
	Source string
	Scale  float64
}

// PrepareOptions controls validation and imputation.
type PrepareOptions struct {
	Policy   string
	Required []string
	Proxies  []ProxyRule
}

// Prepare validates ordering, imputes non-finite cells and densifies every
// field into a column. Records may share a timestamp (cohort snapshots).
func Prepare(series models.Series, opts PrepareOptions) (*models.PreparedSeries, error) {
	if len(series) == 0 {
		return nil, models.InvalidInput("series", "series is empty")
	}
	for i, r := range series {
		if r.Timestamp.IsZero() {
			return nil, models.InvalidInput("series", "record %d has no timestamp", i)
		}
		if i > 0 && r.Timestamp.Before(series[i-1].Timestamp) {
			return nil, models.InvalidInput("series", "timestamps decrease at index %d", i)
		}
	}

	names := fieldNames(series)
	p := &models.PreparedSeries{
		Records:    series,
		Timestamps: series.Timestamps(),
		Columns:    make(map[string][]float64, len(names)),
	}

	for _, name := range names {
		col, imputed, err := densify(series, name, opts.Policy)
		if err != nil {
			return nil, err
		}
		p.Columns[name] = col
		p.Imputed += imputed
	}

	for _, rule := range opts.Proxies {
		if series.HasField(rule.Field) {
			continue
		}
		src, ok := p.Columns[rule.Source]
		if !ok {
			continue
		}
		scale := rule.Scale
		if scale == 0 {
			scale = 1
		}
		derived := make([]float64, len(src))
		for i, v := range src {
			derived[i] = v * scale
		}
		p.Columns[rule.Field] = derived
		p.Proxies = append(p.Proxies, models.ProxyUse{Field: rule.Field, Source: rule.Source})
	}

	for _, name := range opts.Required {
		if _, ok := p.Columns[name]; !ok {
			return nil, models.InvalidInput(name, "required field missing and no proxy source available")
		}
	}
	return p, nil
}

func fieldNames(series models.Series) []string {
	seen := make(map[string]struct{})
	for _, r := range series {
		for k := range r.Fields {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// densify extracts one field and repairs gaps according to policy.
func densify(series models.Series, name, policy string) ([]float64, int, error) {
	col := make([]float64, len(series))
	ok := make([]bool, len(series))
	first := -1
	gaps := 0
	for i, r := range series {
		v, present := r.Fields[name]
		if present && finite(v) {
			col[i] = v
			ok[i] = true
			if first < 0 {
				first = i
			}
			continue
		}
		if policy == models.ImputeReject {
			return nil, 0, models.InvalidInput(name, "non-finite or missing value at index %d", i)
		}
		gaps++
	}
	if first < 0 {
		return nil, 0, models.InvalidInput(name, "no finite values")
	}
	if gaps == 0 {
		return col, 0, nil
	}

	switch policy {
	case models.ImputeInterpolate:
		interpolate(col, ok)
	default:
		forwardFill(col, ok, first)
	}
	return col, gaps, nil
}

func forwardFill(col []float64, ok []bool, first int) {
	for i := 0; i < first; i++ {
		col[i] = col[first]
	}
	for i := first + 1; i < len(col); i++ {
		if !ok[i] {
			col[i] = col[i-1]
		}
	}
}

func interpolate(col []float64, ok []bool) {
	prev := -1
	for i := 0; i < len(col); i++ {
		if !ok[i] {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				col[j] = col[i]
			}
		case i-prev > 1:
			step := (col[i] - col[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				col[j] = col[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	for j := prev + 1; j < len(col); j++ {
		col[j] = col[prev]
	}
}
