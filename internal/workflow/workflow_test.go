package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/candidate-console/internal/metrics"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/transcript"
)

type fakeAPI struct {
	mu       sync.Mutex
	jobs     []recruiting.Job
	jobsErr  error
	calls    []string
	uploads  []string
	generate func(candidateID, jobID, total int) (string, error)
	upload   func(text string) error
	score    func(candidateID, jobID int) (*recruiting.ScoreResult, error)
}

func (a *fakeAPI) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *fakeAPI) callList() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAPI) GetOpenJobs(context.Context) ([]recruiting.Job, error) {
	a.record("jobs")
	return a.jobs, a.jobsErr
}

func (a *fakeAPI) GenerateQuestions(_ context.Context, candidateID, jobID, total int) (string, error) {
	a.record("generate")
	return a.generate(candidateID, jobID, total)
}

func (a *fakeAPI) UploadTranscript(_ context.Context, _, _ int, text string) error {
	a.record("upload")
	a.mu.Lock()
	a.uploads = append(a.uploads, text)
	a.mu.Unlock()
	if a.upload != nil {
		return a.upload(text)
	}
	return nil
}

func (a *fakeAPI) GenerateScore(_ context.Context, candidateID, jobID int) (*recruiting.ScoreResult, error) {
	a.record("score")
	return a.score(candidateID, jobID)
}

func floatPtr(v float64) *float64 { return &v }

type fixture struct {
	api      *fakeAPI
	store    *store.Store
	sessions *store.SessionIndex
	metrics  *metrics.Metrics
	wf       *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := &fakeAPI{
		jobs: []recruiting.Job{{ID: 3, Title: "Backend Engineer", Status: "Open"}, {ID: 4, Title: "SRE", Status: "Open"}},
		generate: func(int, int, int) (string, error) {
			return "abc", nil
		},
		score: func(int, int) (*recruiting.ScoreResult, error) {
			return &recruiting.ScoreResult{Score: 77, HasTranscript: true}, nil
		},
	}
	m := metrics.New()
	st := store.New(m)
	st.ReplaceAll([]recruiting.Candidate{
		{ID: 7, Name: "Ann", Status: recruiting.StatusActive, Score: floatPtr(10)},
		{ID: 8, Name: "Bob", Status: recruiting.StatusPending},
	})
	sessions := store.NewSessionIndex()

	wf := New(Config{}, Deps{API: api, Store: st, Sessions: sessions, Logger: zap.NewNop(), Metrics: m})
	if err := wf.LoadJobs(context.Background()); err != nil {
		t.Fatalf("load jobs: %v", err)
	}

	return &fixture{api: api, store: st, sessions: sessions, metrics: m, wf: wf}
}

// token returns the token of the current session, or the nil uuid.
func (f *fixture) token() uuid.UUID {
	s, _ := f.wf.Current()
	return s.Token
}

func TestQuestionsRouteToReview(t *testing.T) {
	f := newFixture(t)
	var gotTotal int
	f.api.generate = func(candidateID, jobID, total int) (string, error) {
		if candidateID != 7 || jobID != 3 {
			t.Errorf("unexpected generate call for %d/%d", candidateID, jobID)
		}
		gotTotal = total
		return "abc", nil
	}

	if route := f.wf.Route(7); route != RouteGenerate {
		t.Fatalf("expected generate route before session, got %s", route)
	}

	s, err := f.wf.Begin(7, KindQuestions)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.State != StateChoosingJob {
		t.Fatalf("expected choosing job, got %s", s.State)
	}

	if s, err = f.wf.SelectJob(3); err != nil || s.State != StateGenerating {
		t.Fatalf("select job: %v, state %s", err, s.State)
	}

	s, err = f.wf.Generate(context.Background(), f.token())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s.State != StateDone || s.QuestionSessionID != "abc" {
		t.Fatalf("unexpected session %+v", s)
	}
	if gotTotal != DefaultQuestionsTotal {
		t.Fatalf("expected %d questions, got %d", DefaultQuestionsTotal, gotTotal)
	}
	if route := f.wf.Route(7); route != RouteReview {
		t.Fatalf("expected review route, got %s", route)
	}
	if id, _ := f.sessions.Lookup(7); id != "abc" {
		t.Fatalf("expected session abc, got %q", id)
	}
	if calls := f.api.callList(); len(calls) != 2 || calls[1] != "generate" {
		t.Fatalf("expected no refetch, got calls %v", calls)
	}
	if got := testutil.ToFloat64(f.metrics.WorkflowTransitions.WithLabelValues("questions", "done")); got != 1 {
		t.Fatalf("expected one done transition, got %v", got)
	}
}

func TestBeginRequiresJobs(t *testing.T) {
	api := &fakeAPI{jobsErr: errors.New("down")}
	core, logs := observer.New(zapcore.WarnLevel)
	wf := New(Config{}, Deps{API: api, Store: store.New(nil), Logger: zap.New(core)})

	if err := wf.LoadJobs(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if logs.FilterMessage("failed to load open jobs").Len() != 1 {
		t.Fatalf("expected warning to be logged")
	}
	if _, err := wf.Begin(7, KindQuestions); !errors.Is(err, ErrNoOpenJobs) {
		t.Fatalf("expected ErrNoOpenJobs, got %v", err)
	}
	if _, ok := wf.Current(); ok {
		t.Fatalf("no session expected")
	}
}

func TestBeginRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	if _, err := f.wf.Begin(7, Kind("review")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSelectJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.wf.SelectJob(3); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if _, err := f.wf.Begin(7, KindTranscript); err != nil {
		t.Fatalf("begin: %v", err)
	}

	s, err := f.wf.SelectJob(0)
	if err != nil || s.State != StateChoosingJob || s.JobID != 0 {
		t.Fatalf("zero job must be a no-op: %v %+v", err, s)
	}

	if _, err := f.wf.SelectJob(99); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}

	s, err = f.wf.SelectJob(4)
	if err != nil || s.State != StateAwaitingInput || s.JobID != 4 {
		t.Fatalf("unexpected result %v %+v", err, s)
	}

	if _, err := f.wf.SelectJob(3); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSubmitUsesServerTranscriptFlag(t *testing.T) {
	f := newFixture(t)
	f.api.score = func(int, int) (*recruiting.ScoreResult, error) {
		return &recruiting.ScoreResult{Score: 64, HasTranscript: false}, nil
	}

	f.wf.Begin(7, KindTranscript)
	f.wf.SelectJob(3)
	if err := f.wf.SetTranscript("Q: why Go?\nA: goroutines"); err != nil {
		t.Fatalf("set transcript: %v", err)
	}

	s, err := f.wf.Submit(context.Background(), f.token())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.State != StateDone || s.Score == nil || s.Score.Score != 64 {
		t.Fatalf("unexpected session %+v", s)
	}

	if calls := f.api.callList(); strings.Join(calls, ",") != "jobs,upload,score" {
		t.Fatalf("unexpected call order %v", calls)
	}

	c, _ := f.store.Get(7)
	if c.Score == nil || *c.Score != 64 {
		t.Fatalf("score not patched: %+v", c.Score)
	}
	if c.HasTranscript {
		t.Fatalf("expected server reported has_transcript=false")
	}
}

func TestSubmitWithoutTranscriptSkipsUpload(t *testing.T) {
	f := newFixture(t)
	f.wf.Begin(8, KindTranscript)
	f.wf.SelectJob(3)
	f.wf.SetTranscript("   ")

	if _, err := f.wf.Submit(context.Background(), f.token()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if calls := f.api.callList(); strings.Join(calls, ",") != "jobs,score" {
		t.Fatalf("unexpected calls %v", calls)
	}

	c, _ := f.store.Get(8)
	if c.Score == nil || *c.Score != 77 || !c.HasTranscript {
		t.Fatalf("unexpected candidate %+v", c)
	}
}

func TestFailedSubmitKeepsTextAndStore(t *testing.T) {
	tests := []struct {
		name   string
		upload func(string) error
		score  func(int, int) (*recruiting.ScoreResult, error)
	}{
		{
			name:   "upload fails",
			upload: func(string) error { return errors.New("upload down") },
		},
		{
			name: "score fails",
			score: func(int, int) (*recruiting.ScoreResult, error) {
				return nil, &recruiting.StatusError{Code: 500, Message: "boom"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.upload != nil {
				f.api.upload = tt.upload
			}
			if tt.score != nil {
				f.api.score = tt.score
			}
			version := f.store.Version()

			f.wf.Begin(7, KindTranscript)
			f.wf.SelectJob(3)
			f.wf.SetTranscript("long transcript")

			s, err := f.wf.Submit(context.Background(), f.token())
			if err == nil {
				t.Fatalf("expected error")
			}
			if s.State != StateFailed || s.Err == nil {
				t.Fatalf("expected failed session, got %+v", s)
			}
			if s.Transcript != "long transcript" {
				t.Fatalf("transcript lost: %q", s.Transcript)
			}
			if f.store.Version() != version {
				t.Fatalf("store mutated on failure")
			}

			retry, err := f.wf.Retry()
			if err != nil {
				t.Fatalf("retry: %v", err)
			}
			if retry.State != StateAwaitingInput || retry.Transcript != "long transcript" || retry.JobID != 3 {
				t.Fatalf("unexpected retried session %+v", retry)
			}
			if retry.Token == s.Token {
				t.Fatalf("retry must start a new session")
			}
		})
	}
}

func TestRetryOnlyFromFailed(t *testing.T) {
	f := newFixture(t)
	if _, err := f.wf.Retry(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	f.wf.Begin(7, KindQuestions)
	if _, err := f.wf.Retry(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestQuestionsFailureThenRetry(t *testing.T) {
	f := newFixture(t)
	f.api.generate = func(int, int, int) (string, error) { return "", errors.New("timeout") }

	f.wf.Begin(7, KindQuestions)
	f.wf.SelectJob(3)
	s, err := f.wf.Generate(context.Background(), f.token())
	if err == nil || s.State != StateFailed {
		t.Fatalf("expected failure, got %v %+v", err, s)
	}
	if f.wf.Route(7) != RouteGenerate {
		t.Fatalf("failed generation must not route to review")
	}

	f.api.generate = func(int, int, int) (string, error) { return "xyz", nil }
	retry, err := f.wf.Retry()
	if err != nil || retry.State != StateGenerating {
		t.Fatalf("retry: %v %+v", err, retry)
	}
	if _, err := f.wf.Generate(context.Background(), f.token()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id, _ := f.sessions.Lookup(7); id != "xyz" {
		t.Fatalf("expected xyz, got %q", id)
	}
}

func TestStaleSessionDoesNotPatch(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.api.score = func(int, int) (*recruiting.ScoreResult, error) {
		close(entered)
		<-release
		return &recruiting.ScoreResult{Score: 99, HasTranscript: true}, nil
	}

	f.wf.Begin(7, KindTranscript)
	f.wf.SelectJob(3)

	type result struct {
		s   Session
		err error
	}
	done := make(chan result)
	go func() {
		s, err := f.wf.Submit(context.Background(), f.token())
		done <- result{s, err}
	}()

	<-entered
	newer, err := f.wf.Begin(7, KindTranscript)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	close(release)

	res := <-done
	if !errors.Is(res.err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", res.err)
	}

	c, _ := f.store.Get(7)
	if c.Score == nil || *c.Score != 10 {
		t.Fatalf("stale result patched the store: %+v", c.Score)
	}

	current, ok := f.wf.Current()
	if !ok || current.Token != newer.Token || current.State != StateChoosingJob {
		t.Fatalf("newer session disturbed: %+v", current)
	}
}

func TestAbandonedSessionOfOtherCandidateStillApplies(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.api.generate = func(int, int, int) (string, error) {
		close(entered)
		<-release
		return "abc", nil
	}

	f.wf.Begin(7, KindQuestions)
	f.wf.SelectJob(3)

	done := make(chan error)
	go func() {
		_, err := f.wf.Generate(context.Background(), f.token())
		done <- err
	}()

	<-entered
	f.wf.Begin(8, KindQuestions)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("generate: %v", err)
	}
	if f.wf.Route(7) != RouteReview {
		t.Fatalf("expected candidate 7 to route to review")
	}
}

func TestGenerateIssuesSingleRequest(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.api.generate = func(int, int, int) (string, error) {
		close(entered)
		<-release
		return "abc", nil
	}

	f.wf.Begin(7, KindQuestions)
	s, _ := f.wf.SelectJob(3)

	done := make(chan error, 1)
	go func() {
		_, err := f.wf.Generate(context.Background(), s.Token)
		done <- err
	}()

	<-entered
	if _, err := f.wf.Generate(context.Background(), s.Token); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for second call, got %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls := f.api.callList(); strings.Join(calls, ",") != "jobs,generate" {
		t.Fatalf("expected a single generate call, got %v", calls)
	}
	if got := testutil.ToFloat64(f.metrics.WorkflowTransitions.WithLabelValues("questions", "done")); got != 1 {
		t.Fatalf("expected one done transition, got %v", got)
	}
}

func TestCallsAreBoundToTheirSession(t *testing.T) {
	f := newFixture(t)

	f.wf.Begin(7, KindQuestions)
	questions, _ := f.wf.SelectJob(3)

	f.wf.Begin(8, KindTranscript)
	transcriptSession, _ := f.wf.SelectJob(4)

	if _, err := f.wf.Generate(context.Background(), questions.Token); !errors.Is(err, ErrNotCurrent) {
		t.Fatalf("expected ErrNotCurrent, got %v", err)
	}
	if _, err := f.wf.Submit(context.Background(), uuid.New()); !errors.Is(err, ErrNotCurrent) {
		t.Fatalf("expected ErrNotCurrent, got %v", err)
	}
	if calls := f.api.callList(); len(calls) != 1 {
		t.Fatalf("backend called for a session that is not current: %v", calls)
	}

	current, _ := f.wf.Current()
	if current.Token != transcriptSession.Token || current.State != StateAwaitingInput {
		t.Fatalf("current session disturbed: %+v", current)
	}

	if _, err := f.wf.Submit(context.Background(), transcriptSession.Token); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestAbandonedSessionIsLogged(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	f.wf.logger = zap.New(core)

	f.wf.Begin(7, KindQuestions)
	f.wf.SelectJob(3)
	f.wf.Begin(8, KindQuestions)

	entries := logs.FilterMessage("abandoning unfinished session").All()
	if len(entries) != 1 {
		t.Fatalf("expected one abandon entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["candidate_id"] != int64(7) || fields["state"] != "generating" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestAttachFile(t *testing.T) {
	f := newFixture(t)
	f.wf.Begin(7, KindTranscript)
	f.wf.SelectJob(3)
	f.wf.SetTranscript("typed text")

	big := transcript.File{Name: "call.txt", MIMEType: "text/plain", Size: 6 << 20, Content: strings.NewReader("x")}
	if err := f.wf.AttachFile(big); !errors.Is(err, transcript.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if s, _ := f.wf.Current(); s.Transcript != "typed text" {
		t.Fatalf("rejected file changed the text: %q", s.Transcript)
	}
	if calls := f.api.callList(); len(calls) != 1 {
		t.Fatalf("network called during intake: %v", calls)
	}

	ok := transcript.File{Name: "call.md", Size: 9, Content: strings.NewReader("from file")}
	if err := f.wf.AttachFile(ok); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if s, _ := f.wf.Current(); s.Transcript != "from file" {
		t.Fatalf("expected file text, got %q", s.Transcript)
	}
}

func TestTranscriptInputRequiresAwaitingState(t *testing.T) {
	f := newFixture(t)
	if err := f.wf.SetTranscript("x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	f.wf.Begin(7, KindQuestions)
	if err := f.wf.SetTranscript("x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.wf.Begin(7, KindQuestions)
	f.wf.Cancel()
	f.wf.Cancel()
	if _, ok := f.wf.Current(); ok {
		t.Fatalf("session still current after cancel")
	}
	if _, err := f.wf.Generate(context.Background(), f.token()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   Kind
		from   State
		to     State
		expect bool
	}{
		{KindQuestions, StateIdle, StateChoosingJob, true},
		{KindQuestions, StateChoosingJob, StateGenerating, true},
		{KindQuestions, StateChoosingJob, StateAwaitingInput, false},
		{KindTranscript, StateChoosingJob, StateAwaitingInput, true},
		{KindTranscript, StateAwaitingInput, StateSubmitting, true},
		{KindTranscript, StateSubmitting, StateFailed, true},
		{KindTranscript, StateDone, StateSubmitting, false},
		{KindTranscript, StateFailed, StateAwaitingInput, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.kind, tt.from, tt.to); got != tt.expect {
			t.Fatalf("%s %s -> %s: expected %v, got %v", tt.kind, tt.from, tt.to, tt.expect, got)
		}
	}
	if !StateDone.IsTerminal() || !StateFailed.IsTerminal() || StateSubmitting.IsTerminal() {
		t.Fatalf("unexpected terminal states")
	}
}
