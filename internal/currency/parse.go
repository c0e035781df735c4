package currency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var strictPattern = regexp.MustCompile(`^(\d+)\.(\d{2})f€$`)

var maxLooseCoins = decimal.NewFromInt(MaxCoins + 1)

// Parse accepts exactly `digits "." two-digits "f€"` and is the inverse of
// Format. Anything else fails with ErrFormat.
func Parse(text string) (Amount, error) {
	m := strictPattern.FindStringSubmatch(text)
	if m == nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrFormat, text)
	}
	coins, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || coins > MaxCoins {
		return Amount{}, fmt.Errorf("%w: %q out of range", ErrFormat, text)
	}
	fraction, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrFormat, text)
	}
	return Amount{Coins: coins, Fraction: fraction}, nil
}

// ParseLoose reads free-form numeric text such as "1,250.5 f€" or "€ 3.999".
// Currency symbols, thousands separators and whitespace are stripped, the rest
// is read as a decimal number; the integer part is floored into coins and the
// remainder times 100 is rounded into the fraction (carrying into coins when it
// rounds up to 100).
func ParseLoose(text string) (Amount, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(text), Symbol)
	cleaned = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSuffix(cleaned, "f")
	if cleaned == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrFormat, text)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrFormat, text)
	}
	if value.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", ErrFormat, text)
	}
	if value.GreaterThanOrEqual(maxLooseCoins) {
		return Amount{}, fmt.Errorf("%w: %q out of range", ErrFormat, text)
	}

	whole := value.Floor()
	fraction := value.Sub(whole).Mul(decimal.NewFromInt(FractionsPerCoin)).Round(0).IntPart()
	return Add(Amount{Coins: whole.IntPart()}, FromUnits(fraction))
}
