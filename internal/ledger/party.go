package ledger

import (
	"fmt"
	"strings"
)

// SystemAccount enumerates the non-user counterparties.
type SystemAccount string

const (
	SystemBank   SystemAccount = "bank"
	SystemMarket SystemAccount = "market"
	SystemTax    SystemAccount = "system"
)

func (s SystemAccount) valid() bool {
	switch s {
	case SystemBank, SystemMarket, SystemTax:
		return true
	}
	return false
}

// Party is one side of a transaction: a user account or a system account,
// never both.
type Party struct {
	Account string
	System  SystemAccount
}

// User wraps a user account id.
func User(id string) Party { return Party{Account: id} }

// System wraps a system account.
func System(s SystemAccount) Party { return Party{System: s} }

// IsSystem reports whether p is a system account.
func (p Party) IsSystem() bool { return p.System != "" }

func (p Party) String() string {
	if p.IsSystem() {
		return "system:" + string(p.System)
	}
	return "user:" + p.Account
}

// MarshalText encodes the party as "user:<id>" or "system:<name>".
func (p Party) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *Party) UnmarshalText(text []byte) error {
	parsed, err := ParseParty(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseParty reads the MarshalText form.
func ParseParty(s string) (Party, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return Party{}, fmt.Errorf("invalid party %q", s)
	}
	switch prefix {
	case "user":
		return User(rest), nil
	case "system":
		sys := SystemAccount(rest)
		if !sys.valid() {
			return Party{}, fmt.Errorf("unknown system account %q", rest)
		}
		return System(sys), nil
	}
	return Party{}, fmt.Errorf("invalid party %q", s)
}
