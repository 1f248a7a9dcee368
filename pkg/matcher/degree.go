// SPDX-License-Identifier: MPL-2.0

package matcher

import "fmt"

const (
	// DegreeFail means the source does not cover the target.
	DegreeFail Degree = iota
	// DegreeSubsumes means the source is more general than the target.
	DegreeSubsumes
	// DegreePlugin means the source is more specific than the target, so it
	// can be plugged in wherever the target is expected.
	DegreePlugin
	// DegreeExact means source and target are the same concept.
	DegreeExact
)

// Degree is the ordered score of degree-based strategies. Higher is better.
type Degree int

// String returns the lowercase name of the degree.
func (d Degree) String() string {
	switch d {
	case DegreeFail:
		return "fail"
	case DegreeSubsumes:
		return "subsumes"
	case DegreePlugin:
		return "plugin"
	case DegreeExact:
		return "exact"
	default:
		return fmt.Sprintf("degree(%d)", int(d))
	}
}

// Weight maps the degree onto [0, 1] so that degree-based and
// similarity-based scores can share a float64 scale.
func (d Degree) Weight() float64 {
	switch d {
	case DegreeExact:
		return 1
	case DegreePlugin:
		return 0.75
	case DegreeSubsumes:
		return 0.5
	default:
		return 0
	}
}
