package console

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/spigell/candidate-console/internal/recruiting"
	"github.com/spigell/candidate-console/internal/workflow"
)

const noticeTTL = 5 * time.Second

type (
	candidatesLoadedMsg struct {
		candidates []recruiting.Candidate
		err        error
	}

	sessionsLoadedMsg struct {
		sessions map[int]string
	}

	jobsLoadedMsg struct {
		err error
	}

	storeChangedMsg struct {
		version uint64
	}

	actionDoneMsg struct {
		session workflow.Session
		err     error
	}

	clearNoticeMsg struct {
		seq int
	}
)

func loadCandidatesCmd(ctx context.Context, backend Backend) tea.Cmd {
	return func() tea.Msg {
		candidates, err := backend.GetCandidates(ctx)
		return candidatesLoadedMsg{candidates: candidates, err: err}
	}
}

func loadSessionsCmd(ctx context.Context, backend Backend, ids []int) tea.Cmd {
	return func() tea.Msg {
		return sessionsLoadedMsg{sessions: backend.QuestionSessions(ctx, ids)}
	}
}

func loadJobsCmd(ctx context.Context, wf *workflow.Workflow) tea.Cmd {
	return func() tea.Msg {
		return jobsLoadedMsg{err: wf.LoadJobs(ctx)}
	}
}

// waitForStore blocks until the store reports a change.
func waitForStore(updates <-chan uint64) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		version, ok := <-updates
		if !ok {
			return nil
		}
		return storeChangedMsg{version: version}
	}
}

// generateCmd and submitCmd are bound to the session active when the key was
// pressed, not the one current when the command runs.
func generateCmd(ctx context.Context, wf *workflow.Workflow, token uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		s, err := wf.Generate(ctx, token)
		return actionDoneMsg{session: s, err: err}
	}
}

func submitCmd(ctx context.Context, wf *workflow.Workflow, token uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		s, err := wf.Submit(ctx, token)
		return actionDoneMsg{session: s, err: err}
	}
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}
