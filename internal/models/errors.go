package models

import "errors"

// Error taxonomy shared by the analytics engine and the monitor loops.
// Callers wrap these with asset context and match with errors.Is.
var (
	ErrDataUnavailable      = errors.New("data unavailable")
	ErrNoSuitableOption     = errors.New("no suitable option")
	ErrSpotPriceUnavailable = errors.New("spot price unavailable")
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrComputation          = errors.New("computation error")
	ErrNotMonitored         = errors.New("asset not monitored")
	ErrNotFound             = errors.New("not found")
)

// AssetFailure records an asset omitted from an aggregate result.
type AssetFailure struct {
	Asset string
	Err   error
}

// Kind names the taxonomy bucket of the failure for metrics and reports.
func (f AssetFailure) Kind() string {
	return ErrorKind(f.Err)
}

// ErrorKind maps an error to its taxonomy label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSuitableOption):
		return "no_suitable_option"
	case errors.Is(err, ErrSpotPriceUnavailable):
		return "spot_price_unavailable"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrComputation):
		return "computation"
	case errors.Is(err, ErrNotMonitored):
		return "not_monitored"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	}
	return "unexpected"
}
