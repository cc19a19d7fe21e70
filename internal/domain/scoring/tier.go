// Package scoring maps declared effort tiers to points.
package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

// tierToken matches a whole T<digits> word.
var tierToken = regexp.MustCompile(`(?i)\bT\d+\b`)

// Tier is a parsed effort label such as "T3".
type Tier struct {
	label   string
	numeral int
}

// ParseTier validates s against T<digits> and extracts the numeral.
func ParseTier(s string) (Tier, error) {
	if len(s) < 2 || s[0] != 'T' {
		return Tier{}, &InvalidTierError{Label: s}
	}
	digits := s[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Tier{}, &InvalidTierError{Label: s}
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Tier{}, &InvalidTierError{Label: s}
	}
	return Tier{label: s, numeral: n}, nil
}

// MustTier is ParseTier for constants in tests and fixtures.
func MustTier(s string) Tier {
	t, err := ParseTier(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ExtractTier finds the first T<digits> word in free text, as typed in an
// SMS or email body ("did T3 legs today"). Digits glued to other letters
// ("at10am", "T3a") are not tiers. Matching is case-insensitive and the
// returned label is normalised to upper case.
func ExtractTier(text string) (Tier, bool) {
	for _, token := range tierToken.FindAllString(text, -1) {
		if t, err := ParseTier(strings.ToUpper(token)); err == nil {
			return t, true
		}
	}
	return Tier{}, false
}

// Numeral is the number after the T.
func (t Tier) Numeral() int { return t.numeral }

// String returns the label as written, e.g. "T03" stays "T03".
func (t Tier) String() string { return t.label }

// Less orders tiers by numeral.
func (t Tier) Less(o Tier) bool { return t.numeral < o.numeral }
