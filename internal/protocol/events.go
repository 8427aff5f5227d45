// Package protocol defines the typed events of the chat streaming protocol
// and decodes SSE payloads into them.
//
// Wire framing (event:/data: lines, connection lifecycle) is the transport's
// concern; this package only maps named event payloads to typed values.
package protocol

import "github.com/tradeatlas/tradechat-go/internal/domain"

// Event is one typed unit of the server-sent stream.
// The set of implementations is closed.
type Event interface {
	eventName() string
}

// SessionAssigned carries the server-assigned session ID. The server may
// re-assert it; the last assertion wins.
type SessionAssigned struct {
	SessionID string
}

// SessionInfo announces the session and the caller's user type at stream
// open, with a human-readable notice.
type SessionInfo struct {
	SessionID string
	UserType  string
	Message   string
}

// ThinkingDelta replaces the reasoning buffer with the latest snapshot.
// Kind distinguishes plain progress from protocol milestones such as the
// parallel-processing start marker.
type ThinkingDelta struct {
	Text string
	Kind string
}

// MainAnswerStart marks the transition from reasoning to the main answer.
type MainAnswerStart struct{}

// MainAnswerDelta appends one increment of the main answer.
type MainAnswerDelta struct {
	Text string
}

// MainAnswerComplete finalizes the main answer. FinalText, when non-empty,
// takes precedence over the locally accumulated buffer.
type MainAnswerComplete struct {
	FinalText   string
	RelatedInfo *domain.RelatedInfo
	Sources     []domain.Source
	Bookmark    *domain.BookmarkSignal
}

// DetailButtonsStart announces how many detail-page buttons are being
// prepared in parallel.
type DetailButtonsStart struct {
	Count int
}

// DetailButtonReady delivers one prepared detail-page button.
type DetailButtonReady struct {
	Button domain.DetailButton
}

// DetailButtonsDone closes the detail-button phase.
type DetailButtonsDone struct {
	PreparationSeconds float64
}

// MemberRecordSaved confirms the member conversation record was persisted.
type MemberRecordSaved struct {
	SessionID string
}

// ErrorEvent is the server's in-band assertion that the exchange failed.
type ErrorEvent struct {
	Message string
	Code    string
}

func (SessionAssigned) eventName() string    { return EventInitialMetadata }
func (SessionInfo) eventName() string        { return EventSessionInfo }
func (ThinkingDelta) eventName() string      { return EventThinking }
func (MainAnswerStart) eventName() string    { return EventMainMessageStart }
func (MainAnswerDelta) eventName() string    { return EventMainMessageData }
func (MainAnswerComplete) eventName() string { return EventMainMessageComplete }
func (DetailButtonsStart) eventName() string { return EventDetailButtonsStart }
func (DetailButtonReady) eventName() string  { return EventDetailButtonReady }
func (DetailButtonsDone) eventName() string  { return EventDetailButtonsDone }
func (MemberRecordSaved) eventName() string  { return EventMemberSession }
func (ErrorEvent) eventName() string         { return EventError }
