// Package session contains the streaming session state machine and the
// controller that drives one exchange end to end.
package session

import (
	"github.com/tradeatlas/tradechat-go/internal/domain"
)

// ParallelStage tracks the three independently-completing sub-tasks of one
// exchange: the main answer, the detail-page buttons, and the member record
// persistence. AllComplete is derived after every transition and is never
// set directly by an event.
type ParallelStage struct {
	MainComplete   bool
	DetailButtons  []domain.DetailButton
	ButtonsStarted bool
	ButtonsDone    bool
	RecordSaved    bool
	AllComplete    bool
}

// State is the session after reducing some prefix of the event stream.
// It is a plain value: the reducer returns a successor, never mutates in
// place.
//
// ThinkingBuffer and AnswerBuffer are never both non-empty in UI-relevant
// states; the main-answer start transition flushes thinking into a message
// before the answer accumulates.
type State struct {
	SessionID      string
	Status         domain.SessionStatus
	ThinkingBuffer string
	AnswerBuffer   string
	Parallel       ParallelStage
	Bookmark       *domain.BookmarkSignal
	ErrorMessage   string

	// Messages is the append-only conversation log. Finalized messages
	// survive every failure; only transient buffers are discarded.
	Messages []domain.Message

	// Authenticated records whether the caller held a credential when the
	// exchange started. The bookmark signal is never set for an
	// unauthenticated caller regardless of the server payload.
	Authenticated bool
}

// NewState returns the empty PENDING state.
func NewState() State {
	return State{Status: domain.StatusPending}
}

// resetForSubmit clears everything transient for a fresh exchange while
// preserving the conversation log and the assigned session ID.
func (s State) resetForSubmit(authenticated bool) State {
	return State{
		SessionID:     s.SessionID,
		Status:        domain.StatusThinking,
		Messages:      s.Messages,
		Authenticated: authenticated,
	}
}

// Clone returns a deep copy safe to hand to callers that may outlive the
// next transition.
func (s State) Clone() State {
	out := s
	if s.Messages != nil {
		out.Messages = make([]domain.Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	if s.Parallel.DetailButtons != nil {
		out.Parallel.DetailButtons = make([]domain.DetailButton, len(s.Parallel.DetailButtons))
		copy(out.Parallel.DetailButtons, s.Parallel.DetailButtons)
	}
	if s.Bookmark != nil {
		b := *s.Bookmark
		out.Bookmark = &b
	}
	return out
}

// Terminal reports whether the session reached a terminal status.
func (s State) Terminal() bool {
	return s.Status == domain.StatusCompleted || s.Status == domain.StatusFailed
}
