package filtering

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/candidate-console/internal/recruiting"
)

const (
	MinScoreFloor   = 0
	MinScoreCeiling = 100
)

var (
	ErrUnknownStatus = errors.New("unknown candidate status")
	ErrMinScoreRange = fmt.Errorf("minimum score must be between %d and %d", MinScoreFloor, MinScoreCeiling)
)

// Criteria are the user selected filter settings.
//
// Statuses missing from the map count as included. Departments work the other
// way around: when no department is marked included there is no department
// restriction at all.
type Criteria struct {
	Statuses    map[recruiting.Status]bool
	Departments map[string]bool
	MinScore    float64
}

// Patch is a partial update of Criteria. Nil fields are left as they are.
type Patch struct {
	Statuses    map[recruiting.Status]bool
	Departments map[string]bool
	MinScore    *float64
}

// NewCriteria returns criteria that let every candidate through.
func NewCriteria() Criteria {
	statuses := make(map[recruiting.Status]bool)
	for _, s := range recruiting.Statuses() {
		statuses[s] = true
	}

	return Criteria{
		Statuses:    statuses,
		Departments: make(map[string]bool),
	}
}

func (c Criteria) Clone() Criteria {
	out := Criteria{
		Statuses:    make(map[recruiting.Status]bool, len(c.Statuses)),
		Departments: make(map[string]bool, len(c.Departments)),
		MinScore:    c.MinScore,
	}
	maps.Copy(out.Statuses, c.Statuses)
	maps.Copy(out.Departments, c.Departments)
	return out
}

func (c Criteria) Validate() error {
	for status := range c.Statuses {
		if !status.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
		}
	}

	if c.MinScore < MinScoreFloor || c.MinScore > MinScoreCeiling {
		return fmt.Errorf("%w: got %v", ErrMinScoreRange, c.MinScore)
	}

	return nil
}

// StatusIncluded reports whether candidates with the status pass.
func (c Criteria) StatusIncluded(status recruiting.Status) bool {
	included, ok := c.Statuses[status]
	return !ok || included
}

// IncludedDepartments returns the explicitly included departments, sorted.
func (c Criteria) IncludedDepartments() []string {
	var out []string
	for dep, included := range c.Departments {
		if included {
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}

func (c Criteria) HasDepartmentFilter() bool {
	for _, included := range c.Departments {
		if included {
			return true
		}
	}
	return false
}

func (c *Criteria) SetStatus(status recruiting.Status, included bool) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if c.Statuses == nil {
		c.Statuses = make(map[recruiting.Status]bool)
	}
	c.Statuses[status] = included
	return nil
}

func (c *Criteria) ToggleStatus(status recruiting.Status) error {
	return c.SetStatus(status, !c.StatusIncluded(status))
}

// NormalizeDepartment is the form departments are compared and stored in.
func NormalizeDepartment(department string) string {
	return strings.TrimSpace(department)
}

func (c *Criteria) SetDepartment(department string, included bool) {
	department = NormalizeDepartment(department)
	if department == "" {
		return
	}
	if c.Departments == nil {
		c.Departments = make(map[string]bool)
	}
	c.Departments[department] = included
}

func (c *Criteria) ToggleDepartment(department string) {
	c.SetDepartment(department, !c.Departments[NormalizeDepartment(department)])
}

func (c *Criteria) SetMinScore(score float64) error {
	if score < MinScoreFloor || score > MinScoreCeiling {
		return fmt.Errorf("%w: got %v", ErrMinScoreRange, score)
	}
	c.MinScore = score
	return nil
}

// Clear resets the criteria to let every candidate through.
func (c *Criteria) Clear() {
	*c = NewCriteria()
}

// Merge overlays the patch onto a copy of the criteria and validates the result.
// The receiver is left untouched when the patch is invalid.
func (c Criteria) Merge(p Patch) (Criteria, error) {
	out := c.Clone()
	maps.Copy(out.Statuses, p.Statuses)
	for dep, included := range p.Departments {
		out.SetDepartment(dep, included)
	}
	if p.MinScore != nil {
		out.MinScore = *p.MinScore
	}

	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

// Fingerprint renders the criteria deterministically, map order aside.
func (c Criteria) Fingerprint() string {
	var b strings.Builder

	statuses := slices.Sorted(maps.Keys(c.Statuses))
	b.WriteString("s:")
	for _, s := range statuses {
		b.WriteString(string(s))
		b.WriteString("=")
		b.WriteString(strconv.FormatBool(c.Statuses[s]))
		b.WriteString(",")
	}

	b.WriteString("|d:")
	b.WriteString(strings.Join(c.IncludedDepartments(), ","))

	b.WriteString("|m:")
	b.WriteString(strconv.FormatFloat(c.MinScore, 'f', -1, 64))

	return b.String()
}

// Departments returns the distinct, sorted departments of the candidates.
func Departments(candidates []recruiting.Candidate) []string {
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if dep := NormalizeDepartment(c.Department); dep != "" {
			seen[dep] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
