package filtering

import (
	"maps"
	"slices"
	"strings"

	"github.com/spigell/candidate-console/internal/recruiting"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to candidates.
type Filter interface {
	Name() string
	IsEnabled() bool

	// Apply returns the passing candidates in their original relative order.
	// The input slice is never modified.
	Apply(candidates []recruiting.Candidate) ([]recruiting.Candidate, Step)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

// String renders the status as name(key=value, ...) with sorted keys.
func (s Status) String() string {
	if len(s.Details) == 0 {
		return s.Name
	}

	parts := make([]string, 0, len(s.Details))
	for _, key := range slices.Sorted(maps.Keys(s.Details)) {
		parts = append(parts, key+"="+s.Details[key])
	}
	return s.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Active returns the enabled filters of the description.
func Active(statuses []Status) []Status {
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Steps builds the filter pipeline for a search query and criteria.
func Steps(query string, c Criteria) []Filter {
	return []Filter{
		NewSearch(query),
		NewStatuses(c.Statuses),
		NewMinScore(c.MinScore),
		NewDepartments(c.Departments),
	}
}

// Run executes the supplied filters sequentially and returns the remaining candidates.
func Run(steps []Filter, candidates []recruiting.Candidate, logger *zap.Logger) []recruiting.Candidate {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}

		next, info := step.Apply(candidates)

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		candidates = next
	}

	return candidates
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func keep(candidates []recruiting.Candidate, pass func(*recruiting.Candidate) bool) ([]recruiting.Candidate, Step) {
	out := make([]recruiting.Candidate, 0, len(candidates))
	for i := range candidates {
		if pass(&candidates[i]) {
			out = append(out, candidates[i])
		}
	}

	return out, Step{Initial: len(candidates), Dropped: len(candidates) - len(out), Left: len(out)}
}
