package diagnostics

import "fmt"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

const (
	CodeNonFinite      = "FIELD.NON_FINITE"
	CodeConfigRejected = "CONFIG.REJECTED"
	CodeRegenerated    = "SPECTRUM.REGENERATED"
	CodeDispatchFailed = "DISPATCH.FAILED"
	CodeWeatherSegment = "WEATHER.SEGMENT"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// NonFinite reports NaN or Inf samples in a cascade field after a frame.
func NonFinite(cascade int, field string, count int) Diagnostic {
	return Diagnostic{
		Severity: Warn,
		Code:     CodeNonFinite,
		Summary:  fmt.Sprintf("cascade %d %s has %d non-finite samples", cascade, field, count),
		LikelyCauses: []string{
			"wind or fetch far outside the JONSWAP fit",
			"gravity or depth close to zero",
		},
		SuggestedFixes: []string{"reset the cascade parameters to defaults"},
		Evidence:       map[string]any{"cascade": cascade, "field": field, "count": count},
	}
}

// ConfigRejected reports a parameter change that failed validation.
func ConfigRejected(source string, err error) Diagnostic {
	return Diagnostic{
		Severity: Err,
		Code:     CodeConfigRejected,
		Summary:  "parameter change rejected",
		Detail:   err.Error(),
		Evidence: map[string]any{"source": source},
	}
}

func DispatchFailed(err error) Diagnostic {
	return Diagnostic{Severity: Err, Code: CodeDispatchFailed, Summary: "frame dispatch failed", Detail: err.Error()}
}

// Regenerated reports a rebuilt spectrum after a parameter change or reset.
func Regenerated(cascade, generation int, windSpeed float64) Diagnostic {
	return Diagnostic{
		Severity: Info,
		Code:     CodeRegenerated,
		Summary:  fmt.Sprintf("cascade %d spectrum regenerated", cascade),
		Evidence: map[string]any{"cascade": cascade, "generation": generation, "wind_speed": windSpeed},
	}
}
