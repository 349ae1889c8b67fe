package view

import "github.com/spigell/candidate-console/internal/recruiting"

const DefaultPageSize = 10

// Pager holds a zero based page index and a page size.
type Pager struct {
	Page int
	Size int
}

func NewPager(size int) Pager {
	p := Pager{}
	p.SetSize(size)
	return p
}

// SetSize changes the page size and jumps back to the first page.
func (p *Pager) SetSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p.Size = size
	p.Page = 0
}

func (p *Pager) Next(total int) {
	if p.Page+1 < Pages(total, p.size()) {
		p.Page++
	}
}

func (p *Pager) Prev() {
	if p.Page > 0 {
		p.Page--
	}
}

func (p Pager) size() int {
	if p.Size <= 0 {
		return DefaultPageSize
	}
	return p.Size
}

// Pages returns the number of pages needed for total items.
func Pages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns the page slice. Out of range pages yield an empty slice.
func Paginate(candidates []recruiting.Candidate, p Pager) []recruiting.Candidate {
	size := p.size()
	start := p.Page * size
	if p.Page < 0 || start >= len(candidates) {
		return []recruiting.Candidate{}
	}

	end := min(start+size, len(candidates))
	out := make([]recruiting.Candidate, end-start)
	copy(out, candidates[start:end])
	return out
}
