// Package password scores candidate passwords for the strength meter and
// decides whether a password is acceptable for submission.
package password

import (
	"regexp"
	"unicode/utf8"
)

type Level string

const (
	Empty      Level = "empty"
	Weak       Level = "weak"
	Medium     Level = "medium"
	Strong     Level = "strong"
	VeryStrong Level = "veryStrong"
)

// SpecialChars is the set counted as "special" by both the meter and the
// acceptance rule.
const SpecialChars = `!@#$%^&*(),.?":{}|<>`

const MinLength = 8

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	allowedRe = regexp.MustCompile(`^[A-Za-z\d!@#$%^&*(),.?":{}|<>]{8,}$`)
)

type Criteria struct {
	Lower      bool
	Upper      bool
	Digit      bool
	Special    bool
	LongEnough bool
}

func Evaluate(pw string) Criteria {
	return Criteria{
		Lower:      lowerRe.MatchString(pw),
		Upper:      upperRe.MatchString(pw),
		Digit:      digitRe.MatchString(pw),
		Special:    specialRe.MatchString(pw),
		LongEnough: utf8.RuneCountInString(pw) >= MinLength,
	}
}

// Score is the number of satisfied criteria, 0 to 5.
func (c Criteria) Score() int {
	n := 0
	for _, ok := range []bool{c.Lower, c.Upper, c.Digit, c.Special, c.LongEnough} {
		if ok {
			n++
		}
	}
	return n
}

func LevelForScore(score int) Level {
	switch {
	case score <= 2:
		return Weak
	case score == 3:
		return Medium
	case score == 4:
		return Strong
	default:
		return VeryStrong
	}
}

// Strength is advisory only; it never gates submission.
func Strength(pw string) Level {
	if pw == "" {
		return Empty
	}
	return LevelForScore(Evaluate(pw).Score())
}

// Message is the meter caption. Empty has no caption and no meter.
func Message(l Level) string {
	switch l {
	case Weak:
		return "Weak: Add numbers, symbols, and capital letters"
	case Medium:
		return "Medium: Try adding more character types"
	case Strong:
		return "Strong: Your password is secure"
	case VeryStrong:
		return "Very strong: Excellent password!"
	}
	return ""
}

// Width is the meter fill as a CSS percentage.
func Width(l Level) string {
	switch l {
	case Weak:
		return "25%"
	case Medium:
		return "50%"
	case Strong:
		return "75%"
	case VeryStrong:
		return "100%"
	}
	return "0%"
}

// ShowMeter reports whether a meter is rendered at all.
func ShowMeter(l Level) bool { return l != Empty }

type Requirement struct {
	Label string
	Met   bool
}

// Requirements is the checklist shown under the sign-up password field.
func Requirements(pw string) []Requirement {
	c := Evaluate(pw)
	return []Requirement{
		{Label: "At least 8 characters", Met: c.LongEnough},
		{Label: "One uppercase letter", Met: c.Upper},
		{Label: "One lowercase letter", Met: c.Lower},
		{Label: "One number", Met: c.Digit},
		{Label: "One special character", Met: c.Special},
	}
}

// Acceptable is the submission gate: every character class present, only
// allowed characters, at least MinLength long.
func Acceptable(pw string) bool {
	c := Evaluate(pw)
	return c.Lower && c.Upper && c.Digit && c.Special && allowedRe.MatchString(pw)
}
