package protocol

import (
	"testing"

	"github.com/tradeatlas/tradechat-go/internal/domain"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "initial metadata",
			event: EventInitialMetadata,
			data:  `{"sessionId":"sess_1"}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(SessionAssigned); got.SessionID != "sess_1" {
					t.Errorf("got %#v", got)
				}
			},
		},
		{
			name:  "thinking with milestone kind",
			event: EventThinking,
			data:  `{"message":"starting parallel stages","type":"thinking_parallel_processing_start"}`,
			check: func(t *testing.T, ev Event) {
				got := ev.(ThinkingDelta)
				if got.Text != "starting parallel stages" || got.Kind != "thinking_parallel_processing_start" {
					t.Errorf("got %#v", got)
				}
			},
		},
		{
			name:  "complete with bookmark metadata",
			event: EventMainMessageComplete,
			data:  `{"fullContent":"HS 0101 applies","bookmarkData":{"available":true,"hsCode":"0101","productName":"live horses","confidence":0.93}}`,
			check: func(t *testing.T, ev Event) {
				got := ev.(MainAnswerComplete)
				if got.FinalText != "HS 0101 applies" {
					t.Errorf("FinalText = %q", got.FinalText)
				}
				if got.Bookmark == nil || !got.Bookmark.Available || got.Bookmark.Confidence != 0.93 {
					t.Errorf("Bookmark = %#v", got.Bookmark)
				}
			},
		},
		{
			name:  "complete with no payload fields",
			event: EventMainMessageComplete,
			data:  `{}`,
			check: func(t *testing.T, ev Event) {
				got := ev.(MainAnswerComplete)
				if got.FinalText != "" || got.Bookmark != nil {
					t.Errorf("got %#v", got)
				}
			},
		},
		{
			name:  "member session created maps to assignment",
			event: EventMemberSession,
			data:  `{"type":"session_created","sessionId":"sess_7"}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(SessionAssigned); got.SessionID != "sess_7" {
					t.Errorf("got %#v", got)
				}
			},
		},
		{
			name:  "member record saved",
			event: EventMemberSession,
			data:  `{"type":"record_saved","sessionId":"sess_7"}`,
			check: func(t *testing.T, ev Event) {
				if _, ok := ev.(MemberRecordSaved); !ok {
					t.Errorf("got %#v", ev)
				}
			},
		},
		{
			name:  "detail button",
			event: EventDetailButtonReady,
			data:  `{"buttonType":"tariff","title":"Tariff rates","url":"/detail/tariff/0101","priority":1}`,
			check: func(t *testing.T, ev Event) {
				got := ev.(DetailButtonReady)
				if got.Button.ButtonType != "tariff" || got.Button.Priority != 1 {
					t.Errorf("got %#v", got.Button)
				}
			},
		},
		{
			name:  "error event",
			event: EventError,
			data:  `{"message":"stream failed","code":"CHAT_BACKEND_DOWN"}`,
			check: func(t *testing.T, ev Event) {
				got := ev.(ErrorEvent)
				if got.Message != "stream failed" || got.Code != "CHAT_BACKEND_DOWN" {
					t.Errorf("got %#v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent(tt.event, []byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestDecodeEvent_UnknownName(t *testing.T) {
	if _, err := DecodeEvent("totally_new_event", []byte(`{}`)); err == nil {
		t.Fatal("DecodeEvent() error = nil, want unknown event to surface")
	}
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	if _, err := DecodeEvent(EventThinking, []byte(`{broken`)); err == nil {
		t.Fatal("DecodeEvent() error = nil, want decode failure")
	}
}

func TestEncodeEvent_RoundTripsThroughDecode(t *testing.T) {
	name, data, err := EncodeEvent(MainAnswerComplete{
		FinalText:   "answer",
		RelatedInfo: &domain.RelatedInfo{HSCode: "0101.21"},
		Bookmark:    &domain.BookmarkSignal{Available: true, HSCode: "0101.21"},
	})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	if name != EventMainMessageComplete {
		t.Errorf("name = %q", name)
	}

	ev, err := DecodeEvent(name, data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	got := ev.(MainAnswerComplete)
	if got.FinalText != "answer" || got.RelatedInfo.HSCode != "0101.21" || !got.Bookmark.Available {
		t.Errorf("round trip mismatch: %#v", got)
	}
}
