package money

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// maxMinor keeps amounts well inside int64 after multiplication by a term count.
const maxMinor = int64(1_000_000_000_000_000)

// ParseMinor converts a decimal string such as "1916.67" into minor units.
// Trailing zeros beyond two places are accepted; significant digits are not.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !value.Round(2).Equal(value) {
		return 0, ErrTooManyDecimals
	}
	minor := value.Shift(2)
	if minor.Abs().GreaterThan(decimal.NewFromInt(maxMinor)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

func FormatMinor(value int64) string {
	return ToDecimal(value).StringFixed(2)
}

// FormatGrouped renders minor units with thousands separators, e.g. 1,234.50.
func FormatGrouped(value int64) string {
	plain := FormatMinor(value)
	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign = "-"
		plain = plain[1:]
	}
	whole, frac, _ := strings.Cut(plain, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

func ToDecimal(value int64) decimal.Decimal {
	return decimal.New(value, -2)
}

// FromDecimal rounds half away from zero to cents.
func FromDecimal(value decimal.Decimal) int64 {
	return value.Round(2).Shift(2).IntPart()
}

// Input is a request amount accepted either as a JSON string or a JSON number.
type Input string

func (i *Input) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*i = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Input(s)
		return nil
	}
	if _, err := decimal.NewFromString(raw); err != nil {
		return ErrInvalidAmount
	}
	*i = Input(raw)
	return nil
}

func (i Input) Minor() (int64, error) {
	return ParseMinor(string(i))
}
