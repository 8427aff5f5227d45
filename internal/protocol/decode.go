package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tradeatlas/tradechat-go/internal/domain"
)

// SSE event names used by the chat service.
const (
	EventInitialMetadata     = "initial_metadata"
	EventSessionInfo         = "session_info"
	EventThinking            = "thinking"
	EventMainMessageStart    = "main_message_start"
	EventMainMessageData     = "main_message_data"
	EventMainMessageComplete = "main_message_complete"
	EventDetailButtonsStart  = "detail_page_buttons_start"
	EventDetailButtonReady   = "detail_page_button_ready"
	EventDetailButtonsDone   = "detail_page_buttons_complete"
	EventMemberSession       = "member_session"
	EventError               = "error"
)

// Wire payload shapes. main_message_complete carries either a structured
// fullContent field or nothing at all when the answer streamed as deltas;
// both shapes decode into MainAnswerComplete.
type (
	initialMetadataPayload struct {
		SessionID string `json:"sessionId"`
	}

	sessionInfoPayload struct {
		SessionID string `json:"sessionId"`
		UserType  string `json:"userType"`
		Message   string `json:"message"`
	}

	thinkingPayload struct {
		Message string `json:"message"`
		Type    string `json:"type,omitempty"`
	}

	mainMessageDataPayload struct {
		Content string `json:"content"`
	}

	mainMessageCompletePayload struct {
		FullContent  string                 `json:"fullContent,omitempty"`
		RelatedInfo  *domain.RelatedInfo    `json:"relatedInfo,omitempty"`
		Sources      []domain.Source        `json:"sources,omitempty"`
		BookmarkData *domain.BookmarkSignal `json:"bookmarkData,omitempty"`
	}

	detailButtonsStartPayload struct {
		ButtonsCount int `json:"buttonsCount"`
	}

	detailButtonsDonePayload struct {
		TotalPreparationTime float64 `json:"totalPreparationTime"`
	}

	memberSessionPayload struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId,omitempty"`
	}

	errorPayload struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	}
)

// member_session subtype discriminators.
const (
	memberSessionCreated = "session_created"
	memberRecordSaved    = "record_saved"
)

// DecodeEvent converts one named SSE payload into a typed Event.
// Unknown event names are an error so transport bugs surface instead of
// being silently dropped.
func DecodeEvent(name string, data []byte) (Event, error) {
	switch name {
	case EventInitialMetadata:
		var p initialMetadataPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return SessionAssigned{SessionID: p.SessionID}, nil

	case EventSessionInfo:
		var p sessionInfoPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return SessionInfo{SessionID: p.SessionID, UserType: p.UserType, Message: p.Message}, nil

	case EventThinking:
		var p thinkingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ThinkingDelta{Text: p.Message, Kind: p.Type}, nil

	case EventMainMessageStart:
		return MainAnswerStart{}, nil

	case EventMainMessageData:
		var p mainMessageDataPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return MainAnswerDelta{Text: p.Content}, nil

	case EventMainMessageComplete:
		var p mainMessageCompletePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return MainAnswerComplete{
			FinalText:   p.FullContent,
			RelatedInfo: p.RelatedInfo,
			Sources:     p.Sources,
			Bookmark:    p.BookmarkData,
		}, nil

	case EventDetailButtonsStart:
		var p detailButtonsStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return DetailButtonsStart{Count: p.ButtonsCount}, nil

	case EventDetailButtonReady:
		var b domain.DetailButton
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return DetailButtonReady{Button: b}, nil

	case EventDetailButtonsDone:
		var p detailButtonsDonePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return DetailButtonsDone{PreparationSeconds: p.TotalPreparationTime}, nil

	case EventMemberSession:
		var p memberSessionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if p.Type == memberSessionCreated {
			return SessionAssigned{SessionID: p.SessionID}, nil
		}
		return MemberRecordSaved{SessionID: p.SessionID}, nil

	case EventError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ErrorEvent{Message: p.Message, Code: p.Code}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", name)
	}
}

// EncodeEvent renders a typed Event as its wire payload. The simulator uses
// it so tests exercise the same wire shapes the decoder accepts.
func EncodeEvent(ev Event) (name string, data []byte, err error) {
	name = ev.eventName()

	var payload any
	switch e := ev.(type) {
	case SessionAssigned:
		payload = initialMetadataPayload{SessionID: e.SessionID}
	case SessionInfo:
		payload = sessionInfoPayload{SessionID: e.SessionID, UserType: e.UserType, Message: e.Message}
	case ThinkingDelta:
		payload = thinkingPayload{Message: e.Text, Type: e.Kind}
	case MainAnswerStart:
		payload = struct{}{}
	case MainAnswerDelta:
		payload = mainMessageDataPayload{Content: e.Text}
	case MainAnswerComplete:
		payload = mainMessageCompletePayload{
			FullContent:  e.FinalText,
			RelatedInfo:  e.RelatedInfo,
			Sources:      e.Sources,
			BookmarkData: e.Bookmark,
		}
	case DetailButtonsStart:
		payload = detailButtonsStartPayload{ButtonsCount: e.Count}
	case DetailButtonReady:
		payload = e.Button
	case DetailButtonsDone:
		payload = detailButtonsDonePayload{TotalPreparationTime: e.PreparationSeconds}
	case MemberRecordSaved:
		payload = memberSessionPayload{Type: memberRecordSaved, SessionID: e.SessionID}
	case ErrorEvent:
		payload = errorPayload{Message: e.Message, Code: e.Code}
	default:
		return "", nil, fmt.Errorf("unsupported event type %T", ev)
	}

	data, err = json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return name, data, nil
}
