package watcher

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// usd renders v as "$1,234.57".
func usd(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = groupThousands(s)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}

// fixed renders v with n decimals.
func fixed(v float64, n int32) string {
	return decimal.NewFromFloat(v).StringFixed(n)
}

// qty renders a position size without trailing zeros.
func qty(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func timestamp(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
