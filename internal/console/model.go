// Package console is the interactive candidate screen.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/spigell/candidate-console/internal/filtering"
	"github.com/spigell/candidate-console/internal/presence"
	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/store"
	"github.com/spigell/candidate-console/internal/transcript"
	"github.com/spigell/candidate-console/internal/view"
	"github.com/spigell/candidate-console/internal/workflow"
)

var (
	pageSizes = []int{5, 10, 20, 50}
	minScores = []float64{0, 25, 50, 75, 90}
)

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeJobs
	modeTranscript
	modeFilePath
	modeDepartments
)

// Backend loads the data the screen starts from.
type Backend interface {
	GetCandidates(ctx context.Context) ([]recruiting.Candidate, error)
	QuestionSessions(ctx context.Context, candidateIDs []int) map[int]string
}

type ActivityTracker interface {
	Activity(ev presence.Event)
}

type Config struct {
	PageSize int
}

type Deps struct {
	Backend  Backend
	Store    *store.Store
	Sessions *store.SessionIndex
	Engine   *view.Engine
	Workflow *workflow.Workflow
	Activity ActivityTracker
	Logger   *zap.Logger
}

type Model struct {
	ctx      context.Context
	backend  Backend
	store    *store.Store
	sessions *store.SessionIndex
	engine   *view.Engine
	workflow *workflow.Workflow
	activity ActivityTracker
	logger   *zap.Logger

	query       view.Query
	proj        view.Projection
	departments []string
	cursor      int
	picker      int
	mode        mode

	search   textinput.Model
	path     textinput.Model
	text     textarea.Model
	attached string

	notice    string
	noticeErr bool
	noticeSeq int
	loading   bool
	width     int

	updates     <-chan uint64
	unsubscribe func()
}

func New(ctx context.Context, cfg Config, deps Deps) Model {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name, role, department, email, skills"

	path := textinput.New()
	path.Prompt = "file: "
	path.Placeholder = "/path/to/transcript.txt"

	text := textarea.New()
	text.Placeholder = "Paste the interview transcript"
	text.ShowLineNumbers = false
	text.CharLimit = 0
	text.MaxHeight = 0
	text.SetHeight(10)

	m := Model{
		ctx:      ctx,
		backend:  deps.Backend,
		store:    deps.Store,
		sessions: deps.Sessions,
		engine:   deps.Engine,
		workflow: deps.Workflow,
		activity: deps.Activity,
		logger:   log.Named("console"),
		query: view.Query{
			Criteria: filtering.NewCriteria(),
			Pager:    view.NewPager(cfg.PageSize),
		},
		search:  search,
		path:    path,
		text:    text,
		loading: true,
	}
	m.updates, m.unsubscribe = m.store.Subscribe()
	m.refresh()

	return m
}

// Close releases the store subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadCandidatesCmd(m.ctx, m.backend),
		loadJobsCmd(m.ctx, m.workflow),
		waitForStore(m.updates),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.text.SetWidth(max(msg.Width-4, 20))
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		m.track(presence.EventKeyPress)
		return m.handleKey(msg)

	case candidatesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.logger.Warn("failed to load candidates", zap.Error(msg.err))
			cmd := m.setNotice(fmt.Sprintf("loading candidates: %v", msg.err), true)
			return m, cmd
		}
		m.store.ReplaceAll(msg.candidates)
		m.refresh()
		ids := make([]int, 0, len(msg.candidates))
		for _, c := range msg.candidates {
			ids = append(ids, c.ID)
		}
		return m, loadSessionsCmd(m.ctx, m.backend, ids)

	case sessionsLoadedMsg:
		m.sessions.Merge(msg.sessions)
		return m, nil

	case jobsLoadedMsg:
		// Failures are logged by the workflow; an empty list shows up when an action starts.
		return m, nil

	case storeChangedMsg:
		m.refresh()
		return m, waitForStore(m.updates)

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.MouseLeft, tea.MouseRight, tea.MouseMiddle:
		m.track(presence.EventPointerDown)
	case tea.MouseWheelUp:
		m.track(presence.EventScroll)
		m.moveCursor(-1)
	case tea.MouseWheelDown:
		m.track(presence.EventScroll)
		m.moveCursor(1)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeJobs:
		return m.handleJobsKey(msg)
	case modeTranscript:
		return m.handleTranscriptKey(msg)
	case modeFilePath:
		return m.handleFilePathKey(msg)
	case modeDepartments:
		return m.handleDepartmentsKey(msg)
	}

	return m.handleTableKey(msg)
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "right", "l", "]":
		m.query.Pager.Next(m.proj.Total)
		m.cursor = 0
		m.refresh()
	case "left", "h", "[":
		m.query.Pager.Prev()
		m.cursor = 0
		m.refresh()
	case "+", "=":
		m.query.Pager.SetSize(cycleInt(pageSizes, m.proj.Size, 1))
		m.cursor = 0
		m.refresh()
	case "-":
		m.query.Pager.SetSize(cycleInt(pageSizes, m.proj.Size, -1))
		m.cursor = 0
		m.refresh()
	case "0":
		m.query.Sort = view.SortSpec{}
		m.refresh()
	case "1", "2", "3", "4", "5":
		field := view.SortFields()[key[0]-'1']
		m.query.Sort = m.query.Sort.Toggle(field)
		m.refresh()
	case "a":
		cmd := m.updateCriteria(func(c *filtering.Criteria) error { return c.ToggleStatus(recruiting.StatusActive) })
		return m, cmd
	case "p":
		cmd := m.updateCriteria(func(c *filtering.Criteria) error { return c.ToggleStatus(recruiting.StatusPending) })
		return m, cmd
	case "m":
		next := cycleFloat(minScores, m.query.Criteria.MinScore)
		cmd := m.updateCriteria(func(c *filtering.Criteria) error { return c.SetMinScore(next) })
		return m, cmd
	case "d":
		if len(m.departments) == 0 {
			cmd := m.setNotice("no departments to filter by", false)
			return m, cmd
		}
		m.mode = modeDepartments
		m.picker = 0
	case "c":
		m.search.SetValue("")
		m.query.Search = ""
		cmd := m.updateCriteria(func(c *filtering.Criteria) error { c.Clear(); return nil })
		return m, cmd
	case "/":
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd
	case "r":
		m.loading = true
		return m, loadCandidatesCmd(m.ctx, m.backend)
	case "g":
		return m.startAction(workflow.KindQuestions)
	case "t":
		return m.startAction(workflow.KindTranscript)
	case "R":
		return m.retry()
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.search.Blur()
		m.mode = modeTable
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if value := m.search.Value(); value != m.query.Search {
		m.query.Search = value
		m.query.Pager.Page = 0
		m.cursor = 0
		m.refresh()
	}

	return m, cmd
}

func (m Model) handleDepartmentsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "d", "q":
		m.mode = modeTable
	case "up", "k":
		if m.picker > 0 {
			m.picker--
		}
	case "down", "j":
		if m.picker < len(m.departments)-1 {
			m.picker++
		}
	case " ", "enter":
		if m.picker < len(m.departments) {
			department := m.departments[m.picker]
			cmd := m.updateCriteria(func(c *filtering.Criteria) error { c.ToggleDepartment(department); return nil })
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleJobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	jobs := m.workflow.Jobs()

	switch msg.String() {
	case "esc", "q":
		m.workflow.Cancel()
		m.mode = modeTable
	case "up", "k":
		if m.picker > 0 {
			m.picker--
		}
	case "down", "j":
		if m.picker < len(jobs)-1 {
			m.picker++
		}
	case "enter":
		if m.picker >= len(jobs) {
			return m, nil
		}
		s, err := m.workflow.SelectJob(jobs[m.picker].ID)
		if err != nil {
			m.mode = modeTable
			cmd := m.setNotice(err.Error(), true)
			return m, cmd
		}
		if s.State == workflow.StateGenerating {
			m.mode = modeTable
			cmd := tea.Batch(m.setNotice("generating questions...", false), generateCmd(m.ctx, m.workflow, s.Token))
			return m, cmd
		}
		cmd := m.openTranscript(s)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.workflow.Cancel()
		m.text.Blur()
		m.mode = modeTable
		return m, nil
	case tea.KeyCtrlS:
		s, ok := m.workflow.Current()
		if !ok {
			m.text.Blur()
			m.mode = modeTable
			return m, nil
		}
		if m.attached == "" {
			if err := m.workflow.SetTranscript(m.text.Value()); err != nil {
				cmd := m.setNotice(err.Error(), true)
				return m, cmd
			}
		}
		m.text.Blur()
		m.mode = modeTable
		cmd := tea.Batch(m.setNotice("scoring...", false), submitCmd(m.ctx, m.workflow, s.Token))
		return m, cmd
	case tea.KeyCtrlO:
		m.text.Blur()
		m.mode = modeFilePath
		m.path.SetValue("")
		cmd := m.path.Focus()
		return m, cmd
	case tea.KeyCtrlE:
		if m.attached != "" {
			m.attached = ""
			cmd := m.text.Focus()
			return m, cmd
		}
	}

	if m.attached != "" {
		return m, nil
	}

	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	return m, cmd
}

func (m Model) handleFilePathKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.path.Blur()
		m.mode = modeTranscript
		cmd := m.focusTranscript()
		return m, cmd
	case tea.KeyEnter:
		path := strings.TrimSpace(m.path.Value())
		m.path.SetValue("")
		if err := m.attachFile(path); err != nil {
			cmd := m.setNotice(err.Error(), true)
			return m, cmd
		}
		m.path.Blur()
		m.mode = modeTranscript
		cmd := m.setNotice("attached "+m.attached, false)
		return m, cmd
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m *Model) attachFile(path string) error {
	f, closer, err := transcript.FromPath(path)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer closer.Close()

	if err := m.workflow.AttachFile(f); err != nil {
		return err
	}
	m.attached = f.Name

	return nil
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, workflow.ErrStaleSession) || errors.Is(msg.err, workflow.ErrNotCurrent) {
		return m, nil
	}

	name := m.candidateName(msg.session.CandidateID)
	if msg.err != nil {
		cmd := m.setNotice(fmt.Sprintf("%s for %s failed: %v (R to retry)", msg.session.Kind, name, msg.err), true)
		return m, cmd
	}

	m.refresh()
	switch msg.session.Kind {
	case workflow.KindQuestions:
		cmd := m.setNotice(fmt.Sprintf("questions ready for %s (session %s)", name, msg.session.QuestionSessionID), false)
		return m, cmd
	default:
		score := 0.0
		if msg.session.Score != nil {
			score = msg.session.Score.Score
		}
		cmd := m.setNotice(fmt.Sprintf("%s scored %.0f", name, score), false)
		return m, cmd
	}
}

func (m Model) startAction(kind workflow.Kind) (tea.Model, tea.Cmd) {
	c, ok := m.selected()
	if !ok {
		return m, nil
	}

	if kind == workflow.KindQuestions && m.workflow.Route(c.ID) == workflow.RouteReview {
		session, _ := m.sessions.Lookup(c.ID)
		cmd := m.setNotice(fmt.Sprintf("%s already has questions, review session %s", c.Name, session), false)
		return m, cmd
	}

	if _, err := m.workflow.Begin(c.ID, kind); err != nil {
		cmd := m.setNotice(err.Error(), true)
		return m, cmd
	}

	m.mode = modeJobs
	m.picker = 0

	return m, nil
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	s, err := m.workflow.Retry()
	if err != nil {
		cmd := m.setNotice(err.Error(), true)
		return m, cmd
	}

	if s.Kind == workflow.KindQuestions {
		cmd := tea.Batch(m.setNotice("generating questions...", false), generateCmd(m.ctx, m.workflow, s.Token))
		return m, cmd
	}

	cmd := m.openTranscript(s)
	return m, cmd
}

func (m *Model) openTranscript(s workflow.Session) tea.Cmd {
	m.mode = modeTranscript
	m.attached = ""
	m.text.SetValue(s.Transcript)
	return m.focusTranscript()
}

func (m *Model) focusTranscript() tea.Cmd {
	if m.attached != "" {
		return nil
	}
	return m.text.Focus()
}

func (m *Model) updateCriteria(fn func(c *filtering.Criteria) error) tea.Cmd {
	criteria := m.query.Criteria.Clone()
	if err := fn(&criteria); err != nil {
		return m.setNotice(err.Error(), true)
	}

	m.query.Criteria = criteria
	m.query.Pager.Page = 0
	m.cursor = 0
	m.refresh()

	return nil
}

// refresh recomputes the projection from the current store snapshot.
func (m *Model) refresh() {
	snap := m.store.Snapshot()
	m.departments = filtering.Departments(snap.Candidates)
	m.proj = m.engine.Project(snap, m.query)

	if m.proj.Pages > 0 && m.query.Pager.Page >= m.proj.Pages {
		m.query.Pager.Page = m.proj.Pages - 1
		m.proj = m.engine.Project(snap, m.query)
	}

	m.cursor = min(m.cursor, max(len(m.proj.Items)-1, 0))
}

func (m *Model) moveCursor(delta int) {
	if len(m.proj.Items) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.proj.Items)-1)
}

func (m Model) selected() (recruiting.Candidate, bool) {
	if m.cursor < 0 || m.cursor >= len(m.proj.Items) {
		return recruiting.Candidate{}, false
	}
	return m.proj.Items[m.cursor], true
}

func (m Model) candidateName(id int) string {
	if c, ok := m.store.Get(id); ok && c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("candidate %d", id)
}

func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return clearNoticeCmd(m.noticeSeq)
}

func (m Model) track(ev presence.Event) {
	if m.activity != nil {
		m.activity.Activity(ev)
	}
}

func cycleInt(values []int, current, step int) int {
	for i, v := range values {
		if v == current {
			return values[(i+step+len(values))%len(values)]
		}
	}
	return values[0]
}

func cycleFloat(values []float64, current float64) float64 {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
