package filtering

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spigell/candidate-console/internal/recruiting"
)

type searchFilter struct {
	query string
}

// NewSearch creates a filter matching the lowercased query against the
// candidate's searchable text.
func NewSearch(query string) Filter {
	return &searchFilter{query: strings.ToLower(query)}
}

func (f *searchFilter) Name() string { return "search" }

func (f *searchFilter) IsEnabled() bool { return f.query != "" }

func (f *searchFilter) Apply(candidates []recruiting.Candidate) ([]recruiting.Candidate, Step) {
	return keep(candidates, func(c *recruiting.Candidate) bool {
		return strings.Contains(SearchText(c), f.query)
	})
}

func (f *searchFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"query": f.query}}
}

// SearchText is the lowercased, space joined text a search query is matched against.
func SearchText(c *recruiting.Candidate) string {
	fields := []string{
		c.Name,
		c.Role,
		c.Department,
		c.Experience,
		c.Email,
		c.Phone,
		c.HireDate,
		strings.Join(c.Skills, " "),
	}
	return strings.ToLower(strings.Join(fields, " "))
}

type statusFilter struct {
	statuses map[recruiting.Status]bool
}

// NewStatuses creates a filter dropping candidates whose status is explicitly
// excluded. Statuses missing from the map pass.
func NewStatuses(statuses map[recruiting.Status]bool) Filter {
	return &statusFilter{statuses: maps.Clone(statuses)}
}

func (f *statusFilter) Name() string { return "statuses" }

func (f *statusFilter) IsEnabled() bool { return true }

func (f *statusFilter) Apply(candidates []recruiting.Candidate) ([]recruiting.Candidate, Step) {
	criteria := Criteria{Statuses: f.statuses}
	return keep(candidates, func(c *recruiting.Candidate) bool {
		return criteria.StatusIncluded(c.Status)
	})
}

func (f *statusFilter) Status() Status {
	details := map[string]string{}
	for status, included := range f.statuses {
		details[string(status)] = strconv.FormatBool(included)
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type minScoreFilter struct {
	min float64
}

// NewMinScore creates a filter dropping scored candidates below min. Candidates
// without a score are not numeric and pass.
func NewMinScore(min float64) Filter {
	return &minScoreFilter{min: min}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) IsEnabled() bool { return f.min > 0 }

func (f *minScoreFilter) Apply(candidates []recruiting.Candidate) ([]recruiting.Candidate, Step) {
	return keep(candidates, func(c *recruiting.Candidate) bool {
		return c.Score == nil || *c.Score >= f.min
	})
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"min_score": strconv.FormatFloat(f.min, 'f', -1, 64)},
	}
}

type departmentFilter struct {
	included map[string]struct{}
}

// NewDepartments creates a filter keeping candidates of the included
// departments. Without any included department it lets everything through.
func NewDepartments(departments map[string]bool) Filter {
	included := make(map[string]struct{})
	for dep, ok := range departments {
		if dep = NormalizeDepartment(dep); ok && dep != "" {
			included[dep] = struct{}{}
		}
	}
	return &departmentFilter{included: included}
}

func (f *departmentFilter) Name() string { return "departments" }

func (f *departmentFilter) IsEnabled() bool { return len(f.included) > 0 }

func (f *departmentFilter) Apply(candidates []recruiting.Candidate) ([]recruiting.Candidate, Step) {
	return keep(candidates, func(c *recruiting.Candidate) bool {
		_, ok := f.included[NormalizeDepartment(c.Department)]
		return ok
	})
}

func (f *departmentFilter) Status() Status {
	deps := slices.Sorted(maps.Keys(f.included))
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Details: map[string]string{"departments": strings.Join(deps, ",")},
	}
}
