package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
)

// Reducer turns (state, event) into the next state. It performs no I/O;
// the only ambient inputs are the message ID and clock functions, which are
// injectable so tests can pin them.
type Reducer struct {
	NewID func() string
	Now   func() time.Time
}

// NewReducer returns a reducer with UUIDv7 message IDs and the wall clock.
// UUIDv7 keeps message IDs unique and monotonically orderable.
func NewReducer() *Reducer {
	return &Reducer{
		NewID: func() string {
			id, err := uuid.NewV7()
			if err != nil {
				// NewV7 only fails when the randomness source does.
				return "msg_" + uuid.New().String()
			}
			return "msg_" + id.String()
		},
		Now: time.Now,
	}
}

// Reduce applies one protocol event and recomputes the derived AllComplete
// flag. Events are applied in arrival order; deltas concatenate, thinking
// snapshots replace.
func (r *Reducer) Reduce(s State, ev protocol.Event) State {
	switch e := ev.(type) {
	case protocol.SessionAssigned:
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}

	case protocol.SessionInfo:
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}

	case protocol.ThinkingDelta:
		s.ThinkingBuffer = e.Text
		s.Status = domain.StatusThinking

	case protocol.MainAnswerStart:
		if s.ThinkingBuffer != "" {
			s = r.finalize(s, domain.Message{
				Role:    domain.RoleThinking,
				Content: s.ThinkingBuffer,
			})
		}
		s.ThinkingBuffer = ""
		s.Status = domain.StatusResponding

	case protocol.MainAnswerDelta:
		s.AnswerBuffer += e.Text

	case protocol.MainAnswerComplete:
		// finalText wins over the accumulated buffer; the buffer is the
		// fallback when the answer streamed as deltas. Empty on both sides
		// still finalizes an empty message.
		content := e.FinalText
		if content == "" {
			content = s.AnswerBuffer
		}
		s = r.finalize(s, domain.Message{
			Role:        domain.RoleAI,
			Content:     content,
			RelatedInfo: e.RelatedInfo,
			Sources:     e.Sources,
		})
		s.AnswerBuffer = ""
		s.ThinkingBuffer = ""
		s.Parallel.MainComplete = true
		if e.Bookmark != nil && e.Bookmark.Available && s.Authenticated {
			b := *e.Bookmark
			s.Bookmark = &b
		}
		s.Status = domain.StatusCompleted

	case protocol.DetailButtonsStart:
		s.Parallel.ButtonsStarted = true

	case protocol.DetailButtonReady:
		// A button can arrive before its start announcement; either opens
		// the button phase, so AllComplete waits for the done marker.
		s.Parallel.ButtonsStarted = true
		s.Parallel.DetailButtons = insertButton(s.Parallel.DetailButtons, e.Button)

	case protocol.DetailButtonsDone:
		s.Parallel.ButtonsDone = true

	case protocol.MemberRecordSaved:
		s.Parallel.RecordSaved = true

	case protocol.ErrorEvent:
		s.Status = domain.StatusFailed
		s.ErrorMessage = e.Message
		s.ThinkingBuffer = ""
		s.AnswerBuffer = ""
		// The parallel stages keep the stream open past the main answer,
		// so a late error can follow a completed answer; a failed session
		// must not keep offering its bookmark.
		s.Bookmark = nil
	}

	s.Parallel.AllComplete = deriveAllComplete(s)
	return s
}

// finalize appends a message to the conversation log, stamping ID and time.
func (r *Reducer) finalize(s State, msg domain.Message) State {
	msg.ID = r.NewID()
	msg.CreatedAt = r.Now()
	messages := make([]domain.Message, len(s.Messages), len(s.Messages)+1)
	copy(messages, s.Messages)
	s.Messages = append(messages, msg)
	return s
}

// deriveAllComplete recomputes the joint completion of the three parallel
// stages. Record persistence is only required for authenticated sessions;
// the button stage only counts once the server announced it.
func deriveAllComplete(s State) bool {
	if !s.Parallel.MainComplete {
		return false
	}
	if s.Authenticated && !s.Parallel.RecordSaved {
		return false
	}
	if s.Parallel.ButtonsStarted && !s.Parallel.ButtonsDone {
		return false
	}
	return true
}

// insertButton keeps DetailButtons sorted ascending by priority with ties in
// arrival order. A button re-delivered with the same ButtonType replaces the
// earlier entry.
func insertButton(buttons []domain.DetailButton, b domain.DetailButton) []domain.DetailButton {
	out := make([]domain.DetailButton, 0, len(buttons)+1)
	for _, existing := range buttons {
		if existing.ButtonType != b.ButtonType {
			out = append(out, existing)
		}
	}
	pos := len(out)
	for i, existing := range out {
		if b.Priority < existing.Priority {
			pos = i
			break
		}
	}
	out = append(out, domain.DetailButton{})
	copy(out[pos+1:], out[pos:])
	out[pos] = b
	return out
}
