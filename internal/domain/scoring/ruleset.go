package scoring

import "fmt"

// RuleSet is the scoring variant attached to a challenge. Only the variants
// declared in this package exist; resolve one with RuleSetFor once per
// challenge and pass it down.
type RuleSet interface {
	// Version is the number stored on the challenge.
	Version() int
	// Points converts a tier into the points it is worth.
	Points(t Tier) float64

	sealed()
}

// V1 is the original lookup table. Anything above T4 is worth 1, which is
// lower than T4 itself; kept as is until someone confirms the intent.
type V1 struct{}

// V2 is the linear formula 0.9 + 0.1*n, with T0 worth nothing.
type V2 struct{}

var v1Table = map[int]float64{
	0: 0,
	1: 0,
	2: 1,
	3: 1.2,
	4: 1.5,
}

const v1Fallback = 1.0

func (V1) Version() int { return 1 }

func (V1) Points(t Tier) float64 {
	if p, ok := v1Table[t.numeral]; ok {
		return p
	}
	return v1Fallback
}

func (V1) sealed() {}

func (V2) Version() int { return 2 }

func (V2) Points(t Tier) float64 {
	if t.numeral == 0 {
		return 0
	}
	// (9+n)/10 rather than 0.9+0.1*n keeps T3 at exactly 1.2.
	return float64(9+t.numeral) / 10
}

func (V2) sealed() {}

// RuleSetFor resolves the stored version number.
func RuleSetFor(version int) (RuleSet, error) {
	switch version {
	case 1:
		return V1{}, nil
	case 2:
		return V2{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRuleSet, version)
	}
}

// Score parses tier and scores it under the given rule set version.
func Score(tier string, version int) (float64, error) {
	rs, err := RuleSetFor(version)
	if err != nil {
		return 0, err
	}
	return ScoreLabel(rs, tier)
}

// ScoreLabel scores a raw label under rs.
func ScoreLabel(rs RuleSet, tier string) (float64, error) {
	t, err := ParseTier(tier)
	if err != nil {
		return 0, err
	}
	return rs.Points(t), nil
}
