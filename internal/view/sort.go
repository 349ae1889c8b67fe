package view

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/candidate-console/internal/recruiting"
)

type SortField string

const (
	SortNone       SortField = ""
	SortName       SortField = "name"
	SortRole       SortField = "role"
	SortDepartment SortField = "department"
	SortStatus     SortField = "status"
	SortScore      SortField = "score"
)

// SortFields lists the selectable fields in display order.
func SortFields() []SortField {
	return []SortField{SortName, SortRole, SortDepartment, SortStatus, SortScore}
}

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortNone, SortName, SortRole, SortDepartment, SortStatus, SortScore:
		return f, nil
	case "none":
		return SortNone, nil
	}
	return SortNone, fmt.Errorf("unknown sort field %q", s)
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type SortSpec struct {
	Field     SortField
	Direction Direction
}

// Toggle selects a field. Selecting the current field flips the direction,
// any other field starts ascending.
func (s SortSpec) Toggle(field SortField) SortSpec {
	if field == s.Field && field != SortNone {
		if s.Direction == Asc {
			return SortSpec{Field: field, Direction: Desc}
		}
		return SortSpec{Field: field, Direction: Asc}
	}
	return SortSpec{Field: field, Direction: Asc}
}

func (s SortSpec) String() string {
	if s.Field == SortNone {
		return "none"
	}
	return string(s.Field) + " " + s.Direction.String()
}

// Sort returns a stably sorted copy. Ties keep their input order in both
// directions; SortNone keeps the input order.
func Sort(candidates []recruiting.Candidate, spec SortSpec) []recruiting.Candidate {
	out := slices.Clone(candidates)
	if spec.Field == SortNone {
		return out
	}

	compare := comparator(spec.Field)
	slices.SortStableFunc(out, func(a, b recruiting.Candidate) int {
		if spec.Direction == Desc {
			return compare(&b, &a)
		}
		return compare(&a, &b)
	})

	return out
}

func comparator(field SortField) func(a, b *recruiting.Candidate) int {
	text := func(get func(*recruiting.Candidate) string) func(a, b *recruiting.Candidate) int {
		return func(a, b *recruiting.Candidate) int {
			return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
		}
	}

	switch field {
	case SortName:
		return text(func(c *recruiting.Candidate) string { return c.Name })
	case SortRole:
		return text(func(c *recruiting.Candidate) string { return c.Role })
	case SortDepartment:
		return text(func(c *recruiting.Candidate) string { return c.Department })
	case SortStatus:
		return text(func(c *recruiting.Candidate) string { return string(c.Status) })
	case SortScore:
		return func(a, b *recruiting.Candidate) int {
			return cmp.Compare(a.ScoreValue(), b.ScoreValue())
		}
	}

	return func(_, _ *recruiting.Candidate) int { return 0 }
}
