package currency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoose(t *testing.T) {
	cases := map[string]Amount{
		"10":         {Coins: 10},
		"10.5":       {Coins: 10, Fraction: 50},
		" 1,250.25 ": {Coins: 1250, Fraction: 25},
		"€3.10":      {Coins: 3, Fraction: 10},
		"$ 0.07":     {Fraction: 7},
		"12.34f€":    {Coins: 12, Fraction: 34},
		"12.34 f€":   {Coins: 12, Fraction: 34},
		"2.005":      {Coins: 2, Fraction: 1},
		"1.999":      {Coins: 2},
		"0.004":      {},
	}
	for text, want := range cases {
		got, err := ParseLoose(text)
		require.NoError(t, err, "input %q", text)
		assert.Equal(t, want, got, "input %q", text)
	}
}

func TestParseLooseRejects(t *testing.T) {
	for _, text := range []string{"", "   ", "abc", "-5", "1.2.3", "€", "99999999999999999999"} {
		_, err := ParseLoose(text)
		assert.ErrorIs(t, err, ErrFormat, "input %q", text)
	}
}

func TestInputResolve(t *testing.T) {
	a, err := PairInput(10, 5).Resolve()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 10, Fraction: 5}, a)

	a, err = TextInput("7.25f€").Resolve()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 7, Fraction: 25}, a)

	_, err = TextInput("7.25").Resolve()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Input{}.Resolve()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = PairInput(1, 150).Resolve()
	assert.ErrorIs(t, err, ErrFormat)

	both := PairInput(1, 0)
	both.Text = "1.00f€"
	_, err = both.Resolve()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestInputResolveLoose(t *testing.T) {
	a, err := TextInput("1,000.5").ResolveLoose()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 1000, Fraction: 50}, a)

	a, err = TextInput("3.00f€").ResolveLoose()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 3}, a)

	_, err = PairInput(-1, 0).ResolveLoose()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestInputDecodesBothShapes(t *testing.T) {
	var pair Input
	require.NoError(t, json.Unmarshal([]byte(`{"amount_friendcoins":4,"amount_friendship_fractions":20}`), &pair))
	a, err := pair.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 4, Fraction: 20}, a)

	var text Input
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"4.20f€"}`), &text))
	a, err = text.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Amount{Coins: 4, Fraction: 20}, a)
}
