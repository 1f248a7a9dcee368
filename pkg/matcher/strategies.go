// SPDX-License-Identifier: MPL-2.0

package matcher

import (
	"strings"
	"unicode"

	"github.com/composit/composit/pkg/model"
)

type (
	// TaxonomicOption configures Taxonomic.
	TaxonomicOption func(*taxonomicOptions)

	taxonomicOptions struct {
		minDegree Degree
	}

	exactMatcher[E comparable] struct{}
)

// Exact returns a set match function covering each target by an equal source
// element, scored DegreeExact.
func Exact[E comparable]() SetMatchFunction[E, Degree] {
	return exactMatcher[E]{}
}

func (exactMatcher[E]) PartialMatch(source, target model.Set[E]) *Result[E, Degree] {
	result := NewResult[E, Degree]()
	small, large := target, source
	if len(large) < len(small) {
		small, large = large, small
	}
	for c := range small {
		if large.Contains(c) {
			result.Add(c, c, DegreeExact)
		}
	}
	return result
}

// WithSubsumes also accepts sources that are more general than the target.
func WithSubsumes() TaxonomicOption {
	return func(o *taxonomicOptions) {
		o.minDegree = DegreeSubsumes
	}
}

// Taxonomic returns a set match function where a source covers a target when it
// is the same concept or a subclass of it. With WithSubsumes, superclasses also
// match, with the lower DegreeSubsumes score.
func Taxonomic[E comparable](tax *Taxonomy[E], opts ...TaxonomicOption) SetMatchFunction[E, Degree] {
	options := taxonomicOptions{minDegree: DegreePlugin}
	for _, opt := range opts {
		opt(&options)
	}
	return SetMatcher[E, Degree](Func[E, Degree](func(source, target E) (Degree, bool) {
		d := tax.Relation(source, target)
		return d, d >= options.minDegree
	}))
}

// Threshold returns a set match function where a source covers a target when
// similarity(source, target) >= minimum. The similarity is the score.
func Threshold[E comparable](similarity func(a, b E) float64, minimum float64) SetMatchFunction[E, float64] {
	return SetMatcher[E, float64](Func[E, float64](func(source, target E) (float64, bool) {
		s := similarity(source, target)
		return s, s >= minimum
	}))
}

// TokenJaccard scores two concept names by the Jaccard index of their word
// tokens. Names are split on case changes, digits and non-alphanumeric runes,
// and compared case-insensitively, so "ShippingAddress" and "shipping_address"
// score 1.
func TokenJaccard(a, b string) float64 {
	ta, tb := model.NewSet(tokenize(a)...), model.NewSet(tokenize(b)...)
	union := ta.Union(tb).Len()
	if union == 0 {
		return 0
	}
	return float64(ta.Intersection(tb).Len()) / float64(union)
}

func tokenize(s string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	var prev rune
	for i, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			current.WriteRune(r)
		case i > 0 && unicode.IsDigit(r) != unicode.IsDigit(prev) && (unicode.IsLetter(prev) || unicode.IsDigit(prev)):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
		prev = r
	}
	flush()
	return tokens
}
