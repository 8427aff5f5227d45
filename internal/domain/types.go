// Package domain provides the canonical types shared by the session
// controller, the protocol decoder, and the API client.
package domain

import "time"

// Role identifies who produced a finalized message.
type Role string

const (
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"

	// RoleAI is a finalized answer from the service.
	RoleAI Role = "ai"

	// RoleThinking is a finalized reasoning preamble, fixed in place once
	// the main answer starts.
	RoleThinking Role = "thinking"
)

// SessionStatus is the UI-facing state of the active exchange.
// Exactly one status holds at a time.
type SessionStatus string

const (
	// StatusPending means no exchange is in progress.
	StatusPending SessionStatus = "PENDING"

	// StatusThinking means the service is streaming reasoning text.
	StatusThinking SessionStatus = "THINKING"

	// StatusResponding means the main answer is streaming.
	StatusResponding SessionStatus = "RESPONDING"

	// StatusCompleted means the main answer has been finalized.
	StatusCompleted SessionStatus = "COMPLETED"

	// StatusFailed means the exchange ended in an error.
	StatusFailed SessionStatus = "FAILED"
)

// Source cites a document backing part of an answer.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// RelatedInfo carries the HS classification attached to an answer.
type RelatedInfo struct {
	HSCode   string `json:"hsCode"`
	Category string `json:"category,omitempty"`
}

// Message is one finalized turn of the conversation log.
// Messages are immutable once created and append-only; IDs are UUIDv7 so the
// log orders by ID.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"createdAt"`
	RelatedInfo *RelatedInfo `json:"relatedInfo,omitempty"`
	Sources     []Source     `json:"sources,omitempty"`
}

// DetailButton is one auxiliary detail-page affordance prepared in parallel
// with the main answer. ButtonType is the identity key: a re-delivered
// ButtonType replaces the earlier entry.
type DetailButton struct {
	ButtonType  string `json:"buttonType"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Priority    int    `json:"priority"`
}

// BookmarkSignal is the server's assertion that the answer identified a
// bookmarkable product classification.
type BookmarkSignal struct {
	Available   bool    `json:"available"`
	HSCode      string  `json:"hsCode,omitempty"`
	ProductName string  `json:"productName,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// BookmarkCandidate is what the bookmark collaborator receives.
type BookmarkCandidate struct {
	HSCode   string `json:"hsCode"`
	Category string `json:"category,omitempty"`
}

// ChatContext describes the client environment sent with each exchange.
type ChatContext struct {
	Locale     string `json:"locale"`
	ClientInfo string `json:"clientInfo"`
}

// ChatRequest is the outbound payload that opens a streaming exchange.
type ChatRequest struct {
	Message   string      `json:"message"`
	SessionID string      `json:"sessionId,omitempty"`
	Context   ChatContext `json:"context"`
}
