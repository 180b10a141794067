package services

import "strings"

// ColumnPolicy decides which column names must never reach a prompt, a
// schema description or a generated query.
type ColumnPolicy interface {
	IsSensitive(columnName string) bool
	// Fragments lists the name fragments, for restating the rule in prompts.
	Fragments() []string
}

// SubstringPolicy marks a column sensitive when its name contains any of
// the fragments, ignoring case.
type SubstringPolicy struct {
	fragments []string
}

// NewSubstringPolicy builds a policy from name fragments such as "sold_to".
// Blank fragments are ignored.
func NewSubstringPolicy(fragments []string) *SubstringPolicy {
	p := &SubstringPolicy{}
	for _, f := range fragments {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			p.fragments = append(p.fragments, f)
		}
	}
	return p
}

// IsSensitive implements ColumnPolicy.
func (p *SubstringPolicy) IsSensitive(columnName string) bool {
	lower := strings.ToLower(columnName)
	for _, f := range p.fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Fragments implements ColumnPolicy.
func (p *SubstringPolicy) Fragments() []string {
	return append([]string(nil), p.fragments...)
}

var _ ColumnPolicy = (*SubstringPolicy)(nil)
