package store

import (
	"sync"
	"testing"
	"time"

	"github.com/spigell/candidate-console/internal/recruiting"
)

type countingRecorder struct {
	ops map[string]int
}

func (r *countingRecorder) StoreMutation(op string) {
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
}

func score(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func seed() []recruiting.Candidate {
	return []recruiting.Candidate{
		{ID: 1, Name: "Ada", Department: "Engineering", Skills: []string{"Go"}, Status: recruiting.StatusActive},
		{ID: 2, Name: "Grace", Department: "Research", Score: score(70), Status: recruiting.StatusPending},
	}
}

func TestPatchMergesOnlyNamedFields(t *testing.T) {
	s := New(nil)
	s.ReplaceAll(seed())

	if !s.Patch(1, CandidatePatch{Score: score(88), HasTranscript: boolPtr(true)}) {
		t.Fatalf("expected patch to apply")
	}

	got, ok := s.Get(1)
	if !ok {
		t.Fatalf("candidate 1 missing")
	}
	if got.ScoreValue() != 88 || !got.HasTranscript {
		t.Fatalf("unexpected patched candidate: %+v", got)
	}
	if got.Name != "Ada" || got.Department != "Engineering" || len(got.Skills) != 1 {
		t.Fatalf("patch touched unrelated fields: %+v", got)
	}
}

func TestPatchUnknownIDIsNoop(t *testing.T) {
	s := New(nil)
	s.ReplaceAll(seed())
	before := s.Snapshot()

	if s.Patch(99, CandidatePatch{Score: score(10)}) {
		t.Fatalf("expected patch on unknown id to report false")
	}

	after := s.Snapshot()
	if after.Version != before.Version {
		t.Fatalf("version changed on no-op patch: %d -> %d", before.Version, after.Version)
	}
	if len(after.Candidates) != len(before.Candidates) {
		t.Fatalf("length changed: %d -> %d", len(before.Candidates), len(after.Candidates))
	}
	for i := range before.Candidates {
		if before.Candidates[i].ID != after.Candidates[i].ID ||
			before.Candidates[i].ScoreValue() != after.Candidates[i].ScoreValue() {
			t.Fatalf("entry %d changed", i)
		}
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New(nil)
	s.ReplaceAll(seed())

	snap := s.Snapshot()
	snap.Candidates[0].Skills[0] = "mutated"
	*snap.Candidates[1].Score = 1

	got, _ := s.Get(1)
	if got.Skills[0] != "Go" {
		t.Fatalf("snapshot shares skills slice with store")
	}
	got, _ = s.Get(2)
	if got.ScoreValue() != 70 {
		t.Fatalf("snapshot shares score pointer with store")
	}
}

func TestVersionAndRecorder(t *testing.T) {
	rec := &countingRecorder{}
	s := New(rec)

	s.ReplaceAll(seed())
	s.Patch(2, CandidatePatch{IsOnline: boolPtr(true)})
	s.Patch(2, CandidatePatch{})

	if s.Version() != 2 {
		t.Fatalf("expected version 2, got %d", s.Version())
	}
	if rec.ops["replace_all"] != 1 || rec.ops["patch"] != 1 {
		t.Fatalf("unexpected recorded ops: %v", rec.ops)
	}
}

func TestApplyPresenceLeavesMissingEntries(t *testing.T) {
	s := New(nil)
	candidates := seed()
	candidates[1].IsOnline = true
	candidates[1].OnlineStatus = "online"
	s.ReplaceAll(candidates)

	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	patched := s.ApplyPresence([]recruiting.Presence{
		{ID: 1, IsOnline: true, OnlineStatus: "online", LastActivity: seen},
		{ID: 42, IsOnline: true},
	})

	if patched != 1 {
		t.Fatalf("expected 1 patched entry, got %d", patched)
	}

	ada, _ := s.Get(1)
	if !ada.IsOnline || ada.OnlineStatus != "online" || !ada.LastActivity.Equal(seen) {
		t.Fatalf("presence not merged: %+v", ada)
	}

	grace, _ := s.Get(2)
	if !grace.IsOnline || grace.OnlineStatus != "online" {
		t.Fatalf("missing roster entry must not be presumed offline: %+v", grace)
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	s := New(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.ReplaceAll(seed())
	s.Patch(1, CandidatePatch{Score: score(1)})
	s.Patch(1, CandidatePatch{Score: score(2)})

	select {
	case v := <-ch:
		if v != 3 {
			t.Fatalf("expected newest version 3, got %d", v)
		}
	default:
		t.Fatalf("expected a notification")
	}

	select {
	case v := <-ch:
		t.Fatalf("expected coalesced notifications, got extra %d", v)
	default:
	}

	cancel()
	cancel()
	s.Patch(1, CandidatePatch{Score: score(3)})
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func TestSubscribeDeliversVersionsInOrder(t *testing.T) {
	const (
		writers = 8
		patches = 200
	)

	s := New(nil)
	s.ReplaceAll(seed())
	ch, cancel := s.Subscribe()
	defer cancel()

	final := uint64(1 + writers*patches)
	errs := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last uint64
		for v := range ch {
			if v <= last {
				errs <- "version went backwards"
				return
			}
			last = v
			if v == final {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < patches; i++ {
				s.Patch(1+i%2, CandidatePatch{Score: score(float64(i))})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("latest version %d never delivered", final)
	}
	select {
	case msg := <-errs:
		t.Fatalf("%s", msg)
	default:
	}
}

func TestSessionIndexIsMonotonic(t *testing.T) {
	idx := NewSessionIndex()

	if idx.Set(7, "  ") {
		t.Fatalf("empty session id must be ignored")
	}
	idx.Set(7, "abc")
	idx.Set(7, "")
	idx.Merge(map[int]string{8: "def", 9: ""})

	if session, ok := idx.Lookup(7); !ok || session != "abc" {
		t.Fatalf("expected abc, got %q (%v)", session, ok)
	}
	if !idx.Has(8) || idx.Has(9) {
		t.Fatalf("unexpected merge result")
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
}
