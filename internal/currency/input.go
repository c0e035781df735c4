package currency

import "fmt"

// Input is an amount as it arrives in a request body: either the integer pair
// or a text amount. It is resolved once at the boundary and only the canonical
// Amount travels further.
type Input struct {
	Coins    *int64 `json:"amount_friendcoins,omitempty"`
	Fraction *int64 `json:"amount_friendship_fractions,omitempty"`
	Text     string `json:"amount,omitempty"`
}

// PairInput is shorthand for an Input carrying the integer pair.
func PairInput(coins, fraction int64) Input {
	return Input{Coins: &coins, Fraction: &fraction}
}

// TextInput is shorthand for an Input carrying a text amount.
func TextInput(text string) Input {
	return Input{Text: text}
}

func (in Input) hasPair() bool {
	return in.Coins != nil || in.Fraction != nil
}

func (in Input) pair() (Amount, error) {
	var coins, fraction int64
	if in.Coins != nil {
		coins = *in.Coins
	}
	if in.Fraction != nil {
		fraction = *in.Fraction
	}
	return New(coins, fraction)
}

// Resolve accepts the integer pair or a strictly formatted "12.34f€" string.
func (in Input) Resolve() (Amount, error) {
	switch {
	case in.hasPair() && in.Text != "":
		return Amount{}, fmt.Errorf("%w: both amount text and amount parts given", ErrFormat)
	case in.hasPair():
		return in.pair()
	case in.Text != "":
		return Parse(in.Text)
	default:
		return Amount{}, fmt.Errorf("%w: amount is required", ErrFormat)
	}
}

// ResolveLoose behaves like Resolve but lets free-form numeric text through
// ParseLoose when it is not in the strict format.
func (in Input) ResolveLoose() (Amount, error) {
	amount, err := in.Resolve()
	if err == nil || in.hasPair() || in.Text == "" {
		return amount, err
	}
	return ParseLoose(in.Text)
}
