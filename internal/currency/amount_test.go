package currency

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomAmount(r *rand.Rand) Amount {
	return Amount{Coins: r.Int63n(1_000_000), Fraction: r.Int63n(FractionsPerCoin)}
}

func TestFormat(t *testing.T) {
	cases := map[Amount]string{
		{}:                          "0.00f€",
		{Coins: 10}:                 "10.00f€",
		{Coins: 0, Fraction: 5}:     "0.05f€",
		{Coins: 1234, Fraction: 99}: "1234.99f€",
		{Coins: 89, Fraction: 50}:   "89.50f€",
	}
	for amount, want := range cases {
		assert.Equal(t, want, Format(amount))
		assert.Equal(t, want, amount.String())
	}
}

func TestParseRejectsOtherShapes(t *testing.T) {
	bad := []string{
		"", "10", "10.00", "10.0f€", "10.000f€", "-1.00f€", "1e2.00f€",
		" 1.00f€", "1.00f€ ", "1,000.00f€", "1.00€", "abc", "99999999999999999999.00f€",
	}
	for _, text := range bad {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrFormat, "input %q", text)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		a := randomAmount(r)
		got, err := Parse(Format(a))
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

func TestNewValidatesParts(t *testing.T) {
	_, err := New(-1, 0)
	assert.ErrorIs(t, err, ErrFormat)
	_, err = New(1, 100)
	assert.ErrorIs(t, err, ErrFormat)
	_, err = New(1, -1)
	assert.ErrorIs(t, err, ErrFormat)

	a, err := New(3, 99)
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 3, Fraction: 99}, a)
}

func mustAdd(t *testing.T, a, b Amount) Amount {
	t.Helper()
	sum, err := Add(a, b)
	require.NoError(t, err)
	return sum
}

func TestAddCarries(t *testing.T) {
	got := mustAdd(t, Amount{Coins: 1, Fraction: 60}, Amount{Coins: 2, Fraction: 55})
	assert.Equal(t, Amount{Coins: 4, Fraction: 15}, got)
	assert.Equal(t, Amount{Coins: 1}, mustAdd(t, Amount{Fraction: 50}, Amount{Fraction: 50}))
}

func TestAmountBounds(t *testing.T) {
	top := Amount{Coins: MaxCoins, Fraction: 99}
	assert.Greater(t, top.Units(), int64(0))

	cases := []struct {
		name string
		run  func() error
	}{
		{"new above max", func() error { _, err := New(MaxCoins+1, 0); return err }},
		{"new wrapping units", func() error { _, err := New(184467440737095516, 0); return err }},
		{"add past max", func() error { _, err := Add(top, Amount{Fraction: 1}); return err }},
		{"add two halves", func() error { _, err := Add(Amount{Coins: MaxCoins/2 + 1}, Amount{Coins: MaxCoins/2 + 1}); return err }},
		{"mul past max", func() error { _, err := Mul(Amount{Coins: MaxCoins/3 + 1}, 3); return err }},
		{"mul negative quantity", func() error { _, err := Mul(Amount{Coins: 1}, -1); return err }},
		{"parse above max", func() error { _, err := Parse("92233720368547758.00f€"); return err }},
		{"loose above max", func() error { _, err := ParseLoose("92233720368547757.999"); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.run(), ErrFormat)
		})
	}

	a, err := New(MaxCoins, 99)
	require.NoError(t, err)
	assert.Equal(t, top, a)
	assert.Equal(t, top, mustAdd(t, Amount{Coins: MaxCoins}, Amount{Fraction: 99}))
	p, err := Parse("92233720368547757.99f€")
	require.NoError(t, err)
	assert.Equal(t, top, p)
}

func TestAddProperties(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 2000; i++ {
		a, b := randomAmount(r), randomAmount(r)
		require.Equal(t, a, mustAdd(t, a, Zero))
		require.Equal(t, mustAdd(t, a, b), mustAdd(t, b, a))

		sum := mustAdd(t, a, b)
		require.GreaterOrEqual(t, sum.Fraction, int64(0))
		require.Less(t, sum.Fraction, int64(FractionsPerCoin))

		back, err := Sub(sum, b)
		require.NoError(t, err)
		require.Equal(t, a, back)
	}
}

func TestSubBorrows(t *testing.T) {
	got, err := Sub(Amount{Coins: 100}, Amount{Coins: 10, Fraction: 50})
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 89, Fraction: 50}, got)

	got, err = Sub(Amount{Coins: 5, Fraction: 5}, Amount{Coins: 5, Fraction: 5})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSubInsufficientIffSmaller(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		a, b := randomAmount(r), randomAmount(r)
		_, err := Sub(a, b)
		if a.Units() < b.Units() {
			require.ErrorIs(t, err, ErrInsufficientFunds)
		} else {
			require.NoError(t, err)
		}
	}
	_, err := Sub(Amount{Fraction: 99}, Amount{Coins: 1})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTaxTruncates(t *testing.T) {
	cases := []struct {
		in   Amount
		want Amount
	}{
		{Amount{Coins: 10}, Amount{Fraction: 50}},
		{Amount{Coins: 10, Fraction: 3}, Amount{Fraction: 50}},
		{Amount{Coins: 10, Fraction: 19}, Amount{Fraction: 50}},
		{Amount{Coins: 10, Fraction: 20}, Amount{Fraction: 51}},
		{Amount{Coins: 1}, Amount{Fraction: 5}},
		{Amount{Fraction: 19}, Amount{}},
		{Amount{Fraction: 20}, Amount{Fraction: 1}},
		{Amount{Coins: 100}, Amount{Coins: 5}},
		{Amount{Coins: 1999, Fraction: 99}, Amount{Coins: 99, Fraction: 99}},
		{Amount{}, Amount{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Tax(tc.in, DefaultTaxRate), "tax(%s)", tc.in)
	}
}

func TestTaxCustomRate(t *testing.T) {
	assert.Equal(t, Amount{Coins: 1}, Tax(Amount{Coins: 10}, decimal.RequireFromString("0.1")))
	assert.Equal(t, Zero, Tax(Amount{Coins: 10}, decimal.Zero))
}

func TestMulCarriesFraction(t *testing.T) {
	cases := []struct {
		in       Amount
		quantity int64
		want     Amount
	}{
		{Amount{Coins: 2, Fraction: 50}, 3, Amount{Coins: 7, Fraction: 50}},
		{Amount{Fraction: 75}, 4, Amount{Coins: 3}},
		{Amount{Coins: 9, Fraction: 9}, 0, Zero},
	}
	for _, tc := range cases {
		got, err := Mul(tc.in, tc.quantity)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s x %d", tc.in, tc.quantity)
	}
}

func TestCeilCoinsAndCmp(t *testing.T) {
	assert.Equal(t, int64(2), Amount{Coins: 1, Fraction: 1}.CeilCoins())
	assert.Equal(t, int64(1), Amount{Coins: 1}.CeilCoins())
	assert.Equal(t, int64(0), Zero.CeilCoins())

	assert.Equal(t, -1, Amount{Coins: 1}.Cmp(Amount{Coins: 1, Fraction: 1}))
	assert.Equal(t, 0, Amount{Coins: 2}.Cmp(Amount{Coins: 2}))
	assert.Equal(t, 1, Amount{Coins: 2}.Cmp(Amount{Coins: 1, Fraction: 99}))
	assert.Equal(t, Amount{Coins: 1}, Min(Amount{Coins: 1}, Amount{Coins: 2}))
}
