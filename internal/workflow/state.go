package workflow

import "fmt"

// Kind is the action a session runs for a candidate.
type Kind string

const (
	KindQuestions  Kind = "questions"
	KindTranscript Kind = "transcript"
)

func (k Kind) Valid() bool {
	return k == KindQuestions || k == KindTranscript
}

func (k Kind) String() string {
	return string(k)
}

type State int

const (
	StateIdle State = iota
	StateChoosingJob
	StateGenerating
	StateAwaitingInput
	StateSubmitting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateChoosingJob:   "choosing_job",
	StateGenerating:    "generating",
	StateAwaitingInput: "awaiting_input",
	StateSubmitting:    "submitting",
	StateDone:          "done",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether the session can make no further progress.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

type edge struct {
	from State
	to   State
}

var transitions = map[Kind]map[edge]struct{}{
	KindQuestions: {
		{StateIdle, StateChoosingJob}:       {},
		{StateChoosingJob, StateGenerating}: {},
		{StateGenerating, StateDone}:        {},
		{StateGenerating, StateFailed}:      {},
	},
	KindTranscript: {
		{StateIdle, StateChoosingJob}:          {},
		{StateChoosingJob, StateAwaitingInput}: {},
		{StateAwaitingInput, StateSubmitting}:  {},
		{StateSubmitting, StateDone}:           {},
		{StateSubmitting, StateFailed}:         {},
	},
}

// CanTransition reports whether a session of the given kind may move from one
// state to another.
func CanTransition(kind Kind, from, to State) bool {
	_, ok := transitions[kind][edge{from, to}]
	return ok
}

// afterJob is the state a session enters once its job is chosen.
func afterJob(kind Kind) State {
	if kind == KindQuestions {
		return StateGenerating
	}
	return StateAwaitingInput
}
