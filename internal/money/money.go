package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a monetary value in cents. Integer cents keep summation exact
// no matter how many small expenses get added together.
type Amount int64

// Parse converts a decimal string like "12.34" into cents.
// A third decimal digit is rounded half-up. Negative amounts are rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return 0, ErrInvalidAmount
	}

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	intPart, fracPart, _ := strings.Cut(s, ".")

	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}

	if intPart == "" {
		intPart = "0"
	}

	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)

	if err != nil {
		return 0, ErrInvalidAmount
	}

	// guard the *100 below
	const maxWhole = (1<<63 - 1) / 100

	if whole > maxWhole {
		return 0, ErrInvalidAmount
	}

	var cents int64

	if len(fracPart) > 0 {
		cents = int64(fracPart[0]-'0') * 10

		if len(fracPart) > 1 {
			cents += int64(fracPart[1] - '0')

			if len(fracPart) > 2 && fracPart[2] >= '5' {
				cents++
			}
		}
	}

	return Amount(whole*100 + cents), nil
}

// MustParse is a test helper; it panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)

	if err != nil {
		panic(fmt.Sprintf("money: cannot parse %q: %v", s, err))
	}

	return a
}

func (a Amount) Add(b Amount) Amount {
	return a + b
}

// String renders the amount with two decimal places, e.g. "15.75".
func (a Amount) String() string {
	sign := ""
	v := int64(a)

	if v < 0 {
		sign = "-"
		v = -v
	}

	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
