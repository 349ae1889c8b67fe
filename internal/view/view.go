// Package view computes the filtered, sorted and paginated projection of the
// candidate store.
package view

import (
	"fmt"
	"sync"

	"github.com/spigell/candidate-console/internal/filtering"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/store"
	"go.uber.org/zap"
)

// Query is everything that determines a projection besides the candidates.
type Query struct {
	Search   string
	Criteria filtering.Criteria
	Sort     SortSpec
	Pager    Pager
}

func (q Query) fingerprint() string {
	return fmt.Sprintf("q:%s|%s|sort:%s|p:%d/%d", q.Search, q.Criteria.Fingerprint(), q.Sort, q.Pager.Page, q.Pager.size())
}

// Projection is the page of candidates to display.
type Projection struct {
	Items []recruiting.Candidate
	// Total is the number of candidates passing the filters.
	Total int
	Page  int
	Size  int
	Pages int
}

// Project runs filter, sort and paginate over the candidates. It is pure:
// equal inputs give equal outputs.
func Project(candidates []recruiting.Candidate, q Query, logger *zap.Logger) Projection {
	filtered := filtering.Run(filtering.Steps(q.Search, q.Criteria), candidates, logger)
	sorted := Sort(filtered, q.Sort)

	return Projection{
		Items: Paginate(sorted, q.Pager),
		Total: len(sorted),
		Page:  q.Pager.Page,
		Size:  q.Pager.size(),
		Pages: Pages(len(sorted), q.Pager.size()),
	}
}

type cacheKey struct {
	version uint64
	query   string
}

// Engine memoizes the last projection per store version and query.
type Engine struct {
	logger *zap.Logger

	mu     sync.Mutex
	key    cacheKey
	cached *Projection
	hits   int
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Project returns the projection of the snapshot, reusing the previous result
// when neither the store version nor the query changed.
func (e *Engine) Project(snap store.Snapshot, q Query) Projection {
	key := cacheKey{version: snap.Version, query: q.fingerprint()}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cached != nil && e.key == key {
		e.hits++
		return *e.cached
	}

	p := Project(snap.Candidates, q, e.logger)
	e.key = key
	e.cached = &p

	return p
}

// Hits reports how many projections were served from the cache.
func (e *Engine) Hits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits
}
