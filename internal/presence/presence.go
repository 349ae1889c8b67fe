// Package presence keeps the online signal fresh: it polls the roster's
// online status and sends activity heartbeats on a schedule and on user input.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/metrics"
	"github.com/spigell/candidate-console/internal/recruiting"
)

const (
	DefaultPollInterval      = 30 * time.Second
	DefaultHeartbeatInterval = 60 * time.Second
)

const (
	triggerStartup = "startup"
	triggerTimer   = "timer"
)

var (
	ErrAlreadyStarted = errors.New("presence tracker already started")
	ErrStopped        = errors.New("presence tracker stopped")
)

// Event is a user input that counts as activity.
type Event int

const (
	EventPointerDown Event = iota + 1
	EventKeyPress
	EventScroll
)

func (e Event) String() string {
	switch e {
	case EventPointerDown:
		return "pointer"
	case EventKeyPress:
		return "key"
	case EventScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// API is the part of the backend client the tracker talks to.
type API interface {
	GetOnlineStatus(ctx context.Context) ([]recruiting.Presence, error)
	RecordActivity(ctx context.Context, userID int) error
}

// Roster receives presence updates.
type Roster interface {
	ApplyPresence(roster []recruiting.Presence) int
}

type Recorder interface {
	PresencePoll(result string)
	PresenceHeartbeat(trigger, result string)
}

// Scheduler is satisfied by *cron.Cron.
type Scheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

type Config struct {
	Token             string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

type Deps struct {
	API     API
	Store   Roster
	Logger  *zap.Logger
	Metrics Recorder
	// Scheduler defaults to a cron scheduler that skips overlapping runs.
	Scheduler Scheduler
}

type Tracker struct {
	cfg     Config
	api     API
	store   Roster
	logger  *zap.Logger
	metrics Recorder
	sched   Scheduler

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, deps Deps) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("presence")

	recorder := deps.Metrics
	if recorder == nil {
		recorder = (*metrics.Metrics)(nil)
	}

	sched := deps.Scheduler
	if sched == nil {
		cl := cronLogger{logger: logger.Sugar()}
		sched = cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		)
	}

	return &Tracker{
		cfg:     cfg,
		api:     deps.API,
		store:   deps.Store,
		logger:  logger,
		metrics: recorder,
		sched:   sched,
	}
}

// Start registers the poll and heartbeat schedules, fires the first heartbeat
// and poll immediately and starts the scheduler.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}

	if _, err := t.sched.AddFunc(every(t.cfg.PollInterval), t.scheduled(t.poll)); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("schedule presence poll: %w", err)
	}
	if _, err := t.sched.AddFunc(every(t.cfg.HeartbeatInterval), t.scheduled(t.timerHeartbeat)); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("schedule heartbeat: %w", err)
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.started = true
	t.mu.Unlock()

	t.spawn(func(ctx context.Context) { t.logHeartbeat(ctx, triggerStartup) })
	t.spawn(t.poll)

	t.sched.Start()
	t.logger.Info("presence tracker started",
		zap.Duration("poll_interval", t.cfg.PollInterval),
		zap.Duration("heartbeat_interval", t.cfg.HeartbeatInterval),
	)

	return nil
}

// Stop halts the schedules and waits for in-flight calls. Safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	if started {
		<-t.sched.Stop().Done()
	}
	t.wg.Wait()

	t.logger.Info("presence tracker stopped")
}

// Activity sends a heartbeat in the background for the given input event.
func (t *Tracker) Activity(ev Event) {
	t.spawn(func(ctx context.Context) { t.logHeartbeat(ctx, ev.String()) })
}

// PollOnce refreshes presence for the whole roster.
func (t *Tracker) PollOnce(ctx context.Context) error {
	roster, err := t.api.GetOnlineStatus(ctx)
	if err != nil {
		t.metrics.PresencePoll(metrics.ResultError)
		return err
	}

	updated := t.store.ApplyPresence(roster)
	t.metrics.PresencePoll(metrics.ResultSuccess)
	t.logger.Debug("presence polled", zap.Int("entries", len(roster)), zap.Int("updated", updated))

	return nil
}

// Heartbeat reports the token owner as active. A missing or malformed token
// skips the call and is not an error.
func (t *Tracker) Heartbeat(ctx context.Context) error {
	return t.heartbeat(ctx, "manual")
}

func (t *Tracker) heartbeat(ctx context.Context, trigger string) error {
	userID, err := DecodeIdentity(t.cfg.Token)
	if err != nil {
		t.metrics.PresenceHeartbeat(trigger, metrics.ResultSkipped)
		t.logger.Debug("heartbeat skipped", zap.String("trigger", trigger), zap.Error(err))
		return nil
	}

	if err := t.api.RecordActivity(ctx, userID); err != nil {
		t.metrics.PresenceHeartbeat(trigger, metrics.ResultError)
		return err
	}

	t.metrics.PresenceHeartbeat(trigger, metrics.ResultSuccess)
	t.logger.Debug("heartbeat sent", zap.String("trigger", trigger), zap.Int("user_id", userID))

	return nil
}

func (t *Tracker) poll(ctx context.Context) {
	if err := t.PollOnce(ctx); err != nil {
		t.logger.Warn("presence poll failed", zap.Error(err))
	}
}

func (t *Tracker) timerHeartbeat(ctx context.Context) {
	t.logHeartbeat(ctx, triggerTimer)
}

func (t *Tracker) logHeartbeat(ctx context.Context, trigger string) {
	if err := t.heartbeat(ctx, trigger); err != nil {
		t.logger.Warn("heartbeat failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// acquire registers an in-flight call unless the tracker is not running.
func (t *Tracker) acquire() (context.Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.stopped {
		return nil, false
	}
	t.wg.Add(1)

	return t.ctx, true
}

func (t *Tracker) spawn(fn func(ctx context.Context)) {
	ctx, ok := t.acquire()
	if !ok {
		return
	}

	go func() {
		defer t.wg.Done()
		fn(ctx)
	}()
}

// scheduled runs fn synchronously so the scheduler can see overlapping runs.
func (t *Tracker) scheduled(fn func(ctx context.Context)) func() {
	return func() {
		ctx, ok := t.acquire()
		if !ok {
			return
		}
		defer t.wg.Done()
		fn(ctx)
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
