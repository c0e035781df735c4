package currency

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// FractionsPerCoin is the number of friendship fractions in one FriendCoin.
	FractionsPerCoin = 100
	// Symbol is appended to every formatted amount.
	Symbol = "f€"
	// MaxCoins is the largest coin count an amount may hold. Every amount's
	// fraction-unit total therefore fits in an int64.
	MaxCoins = math.MaxInt64/FractionsPerCoin - 1

	maxUnits = MaxCoins*FractionsPerCoin + FractionsPerCoin - 1
)

var (
	// ErrFormat reports amount text or parts that do not describe a valid amount.
	ErrFormat = errors.New("malformed amount")

	// ErrInsufficientFunds is returned by Sub when the subtrahend is larger
	// than the minuend.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// DefaultTaxRate is applied to peer transfers.
	DefaultTaxRate = decimal.RequireFromString("0.05")
)

// Amount is a non-negative FriendCoin value. Fraction is always kept in
// [0, FractionsPerCoin).
type Amount struct {
	Coins    int64 `json:"amount_friendcoins"`
	Fraction int64 `json:"amount_friendship_fractions"`
}

// Zero is the additive identity.
var Zero = Amount{}

// New builds an amount from its parts, rejecting negative coins, coins above
// MaxCoins and fractions outside [0, 100).
func New(coins, fraction int64) (Amount, error) {
	if coins < 0 {
		return Amount{}, fmt.Errorf("%w: negative coins %d", ErrFormat, coins)
	}
	if coins > MaxCoins {
		return Amount{}, fmt.Errorf("%w: %d coins exceeds %d", ErrFormat, coins, int64(MaxCoins))
	}
	if fraction < 0 || fraction >= FractionsPerCoin {
		return Amount{}, fmt.Errorf("%w: fraction %d out of range", ErrFormat, fraction)
	}
	return Amount{Coins: coins, Fraction: fraction}, nil
}

// Validate reports ErrFormat when a holds parts New would reject.
func (a Amount) Validate() error {
	_, err := New(a.Coins, a.Fraction)
	return err
}

// FromUnits splits a fraction-unit total into coins and fraction. units must
// not be negative.
func FromUnits(units int64) Amount {
	return Amount{Coins: units / FractionsPerCoin, Fraction: units % FractionsPerCoin}
}

// Units returns the combined fraction-unit total (coins*100 + fraction).
func (a Amount) Units() int64 {
	return a.Coins*FractionsPerCoin + a.Fraction
}

// IsZero reports whether a is 0.00.
func (a Amount) IsZero() bool {
	return a.Coins == 0 && a.Fraction == 0
}

// CeilCoins returns the amount rounded up to whole coins.
func (a Amount) CeilCoins() int64 {
	if a.Fraction > 0 {
		return a.Coins + 1
	}
	return a.Coins
}

// Cmp compares a and b by their fraction-unit totals and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	au, bu := a.Units(), b.Units()
	switch {
	case au < bu:
		return -1
	case au > bu:
		return 1
	default:
		return 0
	}
}

// String renders the amount as "{coins}.{fraction:02}f€".
func (a Amount) String() string {
	return Format(a)
}

// View is the JSON shape of an amount in API responses.
type View struct {
	Coins     int64  `json:"amount_friendcoins"`
	Fraction  int64  `json:"amount_friendship_fractions"`
	Formatted string `json:"formatted"`
}

// View returns the response form of a.
func (a Amount) View() View {
	return View{Coins: a.Coins, Fraction: a.Fraction, Formatted: Format(a)}
}

// Format renders a as "{coins}.{fraction:02}f€" without rounding.
func Format(a Amount) string {
	return fmt.Sprintf("%d.%02d%s", a.Coins, a.Fraction, Symbol)
}

// Add sums two amounts, carrying fraction overflow into coins. It fails with
// ErrFormat only when the sum would exceed MaxCoins.
func Add(a, b Amount) (Amount, error) {
	if err := validatePair(a, b); err != nil {
		return Amount{}, err
	}
	if a.Units() > maxUnits-b.Units() {
		return Amount{}, fmt.Errorf("%w: %s + %s exceeds %d coins", ErrFormat, a, b, int64(MaxCoins))
	}
	return FromUnits(a.Units() + b.Units()), nil
}

// Sub returns a-b. It fails with ErrInsufficientFunds when b is larger than a.
func Sub(a, b Amount) (Amount, error) {
	if err := validatePair(a, b); err != nil {
		return Amount{}, err
	}
	diff := a.Units() - b.Units()
	if diff < 0 {
		return Amount{}, ErrInsufficientFunds
	}
	return FromUnits(diff), nil
}

// Tax computes floor(units(a) * rate) and splits the result back into an
// amount. The tax is truncated on the combined fraction-unit total, never
// rounded and never computed on coins and fraction separately.
func Tax(a Amount, rate decimal.Decimal) Amount {
	units := decimal.NewFromInt(a.Units()).Mul(rate).Floor().IntPart()
	if units < 0 {
		units = 0
	}
	return FromUnits(units)
}

// Mul multiplies an amount by a non-negative quantity, carrying the fraction
// overflow into coins. A product above MaxCoins fails with ErrFormat.
func Mul(a Amount, quantity int64) (Amount, error) {
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	if quantity < 0 {
		return Amount{}, fmt.Errorf("%w: negative quantity %d", ErrFormat, quantity)
	}
	if quantity == 0 {
		return Zero, nil
	}
	if a.Units() > maxUnits/quantity {
		return Amount{}, fmt.Errorf("%w: %s x %d exceeds %d coins", ErrFormat, a, quantity, int64(MaxCoins))
	}
	return FromUnits(a.Units() * quantity), nil
}

func validatePair(a, b Amount) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return b.Validate()
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
