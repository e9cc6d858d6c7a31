package series

import "github.com/minhvu/warden/internal/core/domain"

// PercentCeiling is the ceiling passed to Evaluate for percentage metrics.
const PercentCeiling = 100

// Thresholds is a warning/error level pair. A level that the shared
// enablement policy rejects simply does not participate in evaluation;
// bad configuration never crashes and never falsely raises.
type Thresholds struct {
	Warning float64
	Error   float64
}

// levelEnabled is the single policy deciding whether a configured level
// takes part in evaluation. A level is enabled iff it is strictly positive
// and, when the metric has a ceiling (ceiling > 0), does not exceed it.
func levelEnabled(level, ceiling float64) bool {
	if level <= 0 {
		return false
	}
	if ceiling > 0 && level > ceiling {
		return false
	}
	return true
}

// Enabled reports whether at least one level would participate.
func (t Thresholds) Enabled(ceiling float64) bool {
	return levelEnabled(t.Warning, ceiling) || levelEnabled(t.Error, ceiling)
}

// Evaluate maps a sampled value to a severity. Error wins over Warning.
// Pass ceiling 0 for metrics without a meaningful upper bound.
func Evaluate(value float64, t Thresholds, ceiling float64) domain.Severity {
	if levelEnabled(t.Error, ceiling) && value >= t.Error {
		return domain.SeverityError
	}
	if levelEnabled(t.Warning, ceiling) && value >= t.Warning {
		return domain.SeverityWarning
	}
	return domain.SeverityOk
}

// EvaluateLow is Evaluate for metrics where lower is worse, such as days
// until certificate expiry.
func EvaluateLow(value float64, t Thresholds) domain.Severity {
	if levelEnabled(t.Error, 0) && value <= t.Error {
		return domain.SeverityError
	}
	if levelEnabled(t.Warning, 0) && value <= t.Warning {
		return domain.SeverityWarning
	}
	return domain.SeverityOk
}
