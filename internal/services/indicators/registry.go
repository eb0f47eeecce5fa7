package indicators

import (
	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

// All returns the front-ends keyed by kind.
func All() map[models.IndicatorKind]service.Indicator {
	return map[models.IndicatorKind]service.Indicator{
		models.KindHashRibbon:       HashRibbon{},
		models.KindIssuanceMultiple: IssuanceMultiple{},
		models.KindHODLWaves:        HODLWaves{},
	}
}

// PrepareOptionsFor returns the fields and proxies each kind needs.
func PrepareOptionsFor(kind models.IndicatorKind, policy string) features.PrepareOptions {
	opts := features.PrepareOptions{Policy: policy}
	switch kind {
	case models.KindHashRibbon:
		opts.Required = []string{models.FieldHashRate, models.FieldDifficulty}
		opts.Proxies = HashRibbonProxies
	case models.KindIssuanceMultiple:
		opts.Required = []string{models.FieldDailyIssuance}
	case models.KindHODLWaves:
		opts.Required = []string{models.FieldUTXOAgeDays, models.FieldUTXOValue}
	}
	return opts
}
