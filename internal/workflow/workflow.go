// Package workflow sequences the candidate actions: generating interview
// questions, and collecting a transcript to compute a score.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/logger"
	"github.com/spigell/candidate-console/internal/metrics"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/transcript"
	"github.com/spigell/candidate-console/internal/utils"
)

const DefaultQuestionsTotal = 10

var (
	ErrNoOpenJobs        = errors.New("no open jobs available")
	ErrUnknownKind       = errors.New("unknown action kind")
	ErrUnknownJob        = errors.New("unknown job")
	ErrNoSession         = errors.New("no active session")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrStaleSession is returned when a call finished after a newer session
	// for the same candidate and kind started. Its result is discarded.
	ErrStaleSession = errors.New("session superseded")
	// ErrNotCurrent is returned when a call names a session that was
	// cancelled or replaced before the call started.
	ErrNotCurrent = errors.New("session is not current")
)

// Route tells the console what to offer for a candidate's questions action.
type Route int

const (
	RouteGenerate Route = iota
	RouteReview
)

func (r Route) String() string {
	if r == RouteReview {
		return "review"
	}
	return "generate"
}

type API interface {
	GetOpenJobs(ctx context.Context) ([]recruiting.Job, error)
	GenerateQuestions(ctx context.Context, candidateID, jobID, total int) (string, error)
	UploadTranscript(ctx context.Context, candidateID, jobID int, text string) error
	GenerateScore(ctx context.Context, candidateID, jobID int) (*recruiting.ScoreResult, error)
}

// Patcher applies partial updates to candidates.
type Patcher interface {
	Patch(id int, patch store.CandidatePatch) bool
}

type Recorder interface {
	WorkflowTransition(kind, state string)
}

type Config struct {
	QuestionsTotal int
}

type Deps struct {
	API      API
	Store    Patcher
	Sessions *store.SessionIndex
	Logger   *zap.Logger
	Metrics  Recorder
}

// Session is one run of an action for a single candidate.
type Session struct {
	Token             uuid.UUID
	CandidateID       int
	Kind              Kind
	JobID             int
	Transcript        string
	State             State
	Err               error
	QuestionSessionID string
	Score             *recruiting.ScoreResult

	// inflight is set while a backend call for the session runs.
	inflight bool
}

func (s *Session) clone() Session {
	c := *s
	if s.Score != nil {
		score := *s.Score
		c.Score = &score
	}
	return c
}

type latestKey struct {
	candidateID int
	kind        Kind
}

// Workflow holds at most one current session. Starting a new one abandons the
// previous session without cancelling its calls.
type Workflow struct {
	cfg      Config
	api      API
	store    Patcher
	sessions *store.SessionIndex
	logger   *zap.Logger
	metrics  Recorder

	mu      sync.Mutex
	jobs    []recruiting.Job
	current *Session
	latest  map[latestKey]uuid.UUID
}

func New(cfg Config, deps Deps) *Workflow {
	if cfg.QuestionsTotal <= 0 {
		cfg.QuestionsTotal = DefaultQuestionsTotal
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	recorder := deps.Metrics
	if recorder == nil {
		recorder = (*metrics.Metrics)(nil)
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = store.NewSessionIndex()
	}

	return &Workflow{
		cfg:      cfg,
		api:      deps.API,
		store:    deps.Store,
		sessions: sessions,
		logger:   log.Named("workflow"),
		metrics:  recorder,
		latest:   make(map[latestKey]uuid.UUID),
	}
}

// LoadJobs fetches the open jobs. On failure the job list is left as it was.
func (w *Workflow) LoadJobs(ctx context.Context) error {
	jobs, err := w.api.GetOpenJobs(ctx)
	if err != nil {
		w.logger.Warn("failed to load open jobs", zap.Error(err))
		return err
	}

	w.mu.Lock()
	w.jobs = jobs
	w.mu.Unlock()

	w.logger.Debug("open jobs loaded", zap.Int("count", len(jobs)))
	return nil
}

func (w *Workflow) Jobs() []recruiting.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recruiting.Job(nil), w.jobs...)
}

// Route returns RouteReview when a question session is known for the candidate.
func (w *Workflow) Route(candidateID int) Route {
	if w.sessions.Has(candidateID) {
		return RouteReview
	}
	return RouteGenerate
}

// Current returns a copy of the current session.
func (w *Workflow) Current() (Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return Session{}, false
	}
	return w.current.clone(), true
}

// Begin starts a session of the given kind for the candidate and moves it to
// job selection.
func (w *Workflow) Begin(candidateID int, kind Kind) (Session, error) {
	if !kind.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.jobs) == 0 {
		return Session{}, ErrNoOpenJobs
	}

	s := w.start(candidateID, kind)
	return s.clone(), nil
}

// SelectJob sets the job of the current session. A zero id is ignored.
func (w *Workflow) SelectJob(jobID int) (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.current
	if s == nil {
		return Session{}, ErrNoSession
	}
	if jobID == 0 {
		return s.clone(), nil
	}
	if s.State != StateChoosingJob {
		return s.clone(), fmt.Errorf("%w: select job in %s", ErrInvalidTransition, s.State)
	}
	if recruiting.FindJob(w.jobs, jobID) == nil {
		return s.clone(), fmt.Errorf("%w: %d", ErrUnknownJob, jobID)
	}

	s.JobID = jobID
	if err := w.transition(s, afterJob(s.Kind)); err != nil {
		return s.clone(), err
	}

	return s.clone(), nil
}

// Generate requests questions for the session with the token. Only one
// request is issued per session: a call made while another is in flight fails
// with ErrInvalidTransition.
func (w *Workflow) Generate(ctx context.Context, token uuid.UUID) (Session, error) {
	w.mu.Lock()
	s, err := w.lookup(token)
	if err != nil {
		w.mu.Unlock()
		return Session{}, err
	}
	if s.Kind != KindQuestions || s.State != StateGenerating || s.inflight {
		snapshot := s.clone()
		w.mu.Unlock()
		return snapshot, fmt.Errorf("%w: generate in %s", ErrInvalidTransition, s.describe())
	}
	s.inflight = true
	candidateID, jobID := s.CandidateID, s.JobID
	w.mu.Unlock()

	sessionID, err := w.api.GenerateQuestions(ctx, candidateID, jobID, w.cfg.QuestionsTotal)

	w.mu.Lock()
	defer w.mu.Unlock()
	s.inflight = false

	if err != nil {
		return w.fail(s, err)
	}

	s.QuestionSessionID = sessionID
	if err := w.transition(s, StateDone); err != nil {
		return s.clone(), err
	}
	if !w.isLatest(s) {
		w.logger.Info("discarding question session of superseded action",
			zap.Int("candidate_id", candidateID),
			zap.String("session", s.Token.String()),
		)
		return s.clone(), ErrStaleSession
	}

	w.sessions.Set(candidateID, sessionID)
	w.logger.Info("questions generated",
		append(logger.ActionFields(s.Kind.String(), candidateID, jobID, s.Token.String()),
			zap.String("question_session", sessionID))...,
	)

	return s.clone(), nil
}

// SetTranscript replaces the transcript text of the current session.
func (w *Workflow) SetTranscript(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.awaitingInput()
	if err != nil {
		return err
	}
	s.Transcript = text

	return nil
}

// AttachFile validates the file and, when accepted, replaces the transcript
// text with its contents. A rejected file leaves the text untouched.
func (w *Workflow) AttachFile(f transcript.File) error {
	w.mu.Lock()
	if _, err := w.awaitingInput(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	text, err := transcript.Read(f)
	if err != nil {
		w.logger.Debug("transcript file rejected", zap.String("file", f.Name), zap.Error(err))
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.awaitingInput()
	if err != nil {
		return err
	}
	s.Transcript = text
	w.logger.Debug("transcript file attached",
		zap.String("file", f.Name),
		zap.String("preview", utils.TruncateForLog(text, 40)),
	)

	return nil
}

// Submit uploads the transcript of the session with the token when there is
// one and then requests the score. The store is patched only when both steps
// succeed.
func (w *Workflow) Submit(ctx context.Context, token uuid.UUID) (Session, error) {
	w.mu.Lock()
	s, err := w.lookup(token)
	if err != nil {
		w.mu.Unlock()
		return Session{}, err
	}
	if err := w.transition(s, StateSubmitting); err != nil {
		snapshot := s.clone()
		w.mu.Unlock()
		return snapshot, err
	}
	s.inflight = true
	candidateID, jobID, text := s.CandidateID, s.JobID, s.Transcript
	w.mu.Unlock()

	if strings.TrimSpace(text) != "" {
		if err := w.api.UploadTranscript(ctx, candidateID, jobID, text); err != nil {
			w.mu.Lock()
			defer w.mu.Unlock()
			s.inflight = false
			return w.fail(s, err)
		}
	}

	result, err := w.api.GenerateScore(ctx, candidateID, jobID)

	w.mu.Lock()
	defer w.mu.Unlock()
	s.inflight = false

	if err != nil {
		return w.fail(s, err)
	}

	s.Score = result
	if err := w.transition(s, StateDone); err != nil {
		return s.clone(), err
	}
	if !w.isLatest(s) {
		w.logger.Info("discarding score of superseded action",
			zap.Int("candidate_id", candidateID),
			zap.String("session", s.Token.String()),
		)
		return s.clone(), ErrStaleSession
	}

	score := result.Score
	hasTranscript := result.HasTranscript
	w.store.Patch(candidateID, store.CandidatePatch{
		Score:         &score,
		HasTranscript: &hasTranscript,
	})
	w.logger.Info("score generated",
		append(logger.ActionFields(s.Kind.String(), candidateID, jobID, s.Token.String()),
			zap.Float64("score", score),
			zap.Bool("has_transcript", hasTranscript))...,
	)

	return s.clone(), nil
}

// Retry starts a fresh session from a failed one, keeping its candidate, job
// and transcript text.
func (w *Workflow) Retry() (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.current
	if prev == nil {
		return Session{}, ErrNoSession
	}
	if prev.State != StateFailed {
		return prev.clone(), fmt.Errorf("%w: retry in %s", ErrInvalidTransition, prev.State)
	}

	s := w.start(prev.CandidateID, prev.Kind)
	s.JobID = prev.JobID
	s.Transcript = prev.Transcript
	w.transition(s, afterJob(s.Kind))

	return s.clone(), nil
}

// Cancel drops the current session. Calls already in flight still complete.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return
	}
	w.logger.Debug("session cancelled",
		zap.String("session", w.current.Token.String()),
		zap.String("state", w.current.State.String()),
	)
	w.current = nil
}

func (w *Workflow) start(candidateID int, kind Kind) *Session {
	s := &Session{
		Token:       uuid.New(),
		CandidateID: candidateID,
		Kind:        kind,
		State:       StateIdle,
	}
	if prev := w.current; prev != nil && !prev.State.IsTerminal() {
		w.sessionLogger(prev).Debug("abandoning unfinished session",
			zap.String("state", prev.describe()),
		)
	}
	w.latest[latestKey{candidateID, kind}] = s.Token
	w.current = s
	w.transition(s, StateChoosingJob)

	return s
}

// lookup returns the current session when it carries the token.
func (w *Workflow) lookup(token uuid.UUID) (*Session, error) {
	s := w.current
	if s == nil {
		return nil, ErrNoSession
	}
	if s.Token != token {
		return nil, fmt.Errorf("%w: %s", ErrNotCurrent, token)
	}
	return s, nil
}

func (s *Session) describe() string {
	if s.inflight {
		return s.State.String() + " (in flight)"
	}
	return s.State.String()
}

func (w *Workflow) awaitingInput() (*Session, error) {
	s := w.current
	if s == nil {
		return nil, ErrNoSession
	}
	if s.State != StateAwaitingInput {
		return nil, fmt.Errorf("%w: transcript input in %s", ErrInvalidTransition, s.State)
	}
	return s, nil
}

func (w *Workflow) isLatest(s *Session) bool {
	return w.latest[latestKey{s.CandidateID, s.Kind}] == s.Token
}

func (w *Workflow) fail(s *Session, err error) (Session, error) {
	s.Err = err
	w.transition(s, StateFailed)
	w.sessionLogger(s).Warn("action failed", zap.Error(err))
	return s.clone(), err
}

func (w *Workflow) sessionLogger(s *Session) *zap.Logger {
	return logger.WithFields(w.logger, logger.ActionFields(s.Kind.String(), s.CandidateID, s.JobID, s.Token.String())...)
}

// transition must be called with w.mu held.
func (w *Workflow) transition(s *Session, to State) error {
	if !CanTransition(s.Kind, s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}

	from := s.State
	s.State = to
	w.metrics.WorkflowTransition(s.Kind.String(), to.String())
	w.logger.Debug("session transition",
		zap.String("session", s.Token.String()),
		zap.String("kind", s.Kind.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)

	return nil
}
