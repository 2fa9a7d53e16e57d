package correos

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is an exact decimal amount in colones. The zero value is zero.
type Amount struct {
	r *big.Rat
}

// ParseAmount parses a decimal string such as "2500.00". An empty string is zero.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return Amount{r: r}, nil
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{r: new(big.Rat).Sub(a.rat(), b.rat())}
}

// Cmp compares a and b like big.Rat.Cmp.
func (a Amount) Cmp(b Amount) int {
	return a.rat().Cmp(b.rat())
}

// String formats the amount with two decimals.
func (a Amount) String() string {
	return a.rat().FloatString(2)
}

// MarshalText encodes the amount as its decimal string.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
