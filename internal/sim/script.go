package sim

import (
	"fmt"
	"strings"

	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
)

// ScriptFunc produces the event sequence the simulator streams for one
// exchange. The returned events are written in order, each as its own SSE
// frame.
type ScriptFunc func(req *domain.ChatRequest, sessionID string, member bool) []protocol.Event

// DefaultScript plays a full happy-path exchange: reasoning snapshots, a
// chunked main answer with a bookmark signal, two detail buttons prepared
// out of priority order, and for members a persisted conversation record.
func DefaultScript(req *domain.ChatRequest, sessionID string, member bool) []protocol.Event {
	userType := "GUEST"
	if member {
		userType = "MEMBER"
	}

	answer := fmt.Sprintf("Here is what I found about %q. The closest HS classification is 845011.", req.Message)
	chunks := chunkText(answer, 24)

	events := []protocol.Event{
		protocol.SessionAssigned{SessionID: sessionID},
		protocol.SessionInfo{SessionID: sessionID, UserType: userType, Message: "session ready"},
		protocol.ThinkingDelta{Text: "Analyzing your question", Kind: "progress"},
		protocol.ThinkingDelta{Text: "Looking up trade classifications", Kind: "progress"},
		protocol.ThinkingDelta{Text: "Preparing answer and detail pages", Kind: "parallel_processing"},
		protocol.MainAnswerStart{},
	}
	for _, chunk := range chunks {
		events = append(events, protocol.MainAnswerDelta{Text: chunk})
	}
	events = append(events,
		protocol.MainAnswerComplete{
			RelatedInfo: &domain.RelatedInfo{HSCode: "845011", Category: "Household washing machines"},
			Sources:     []domain.Source{{Title: "HS Nomenclature 2022", URL: "https://example.com/hs/845011"}},
			Bookmark: &domain.BookmarkSignal{
				Available:   member,
				HSCode:      "845011",
				ProductName: "Household washing machines",
				Confidence:  0.91,
			},
		},
		protocol.DetailButtonsStart{Count: 2},
		protocol.DetailButtonReady{Button: domain.DetailButton{
			ButtonType: "tariff_rates",
			Title:      "Tariff rates",
			URL:        "/detail/tariffs/845011",
			Priority:   2,
		}},
		protocol.DetailButtonReady{Button: domain.DetailButton{
			ButtonType: "export_requirements",
			Title:      "Export requirements",
			URL:        "/detail/export/845011",
			Priority:   1,
		}},
		protocol.DetailButtonsDone{PreparationSeconds: 1.2},
	)
	if member {
		events = append(events, protocol.MemberRecordSaved{SessionID: sessionID})
	}
	return events
}

// FailingScript opens normally and then fails the exchange in-band, for
// exercising client failure handling.
func FailingScript(req *domain.ChatRequest, sessionID string, member bool) []protocol.Event {
	return []protocol.Event{
		protocol.SessionAssigned{SessionID: sessionID},
		protocol.ThinkingDelta{Text: "Analyzing your question", Kind: "progress"},
		protocol.ErrorEvent{Message: "backend unavailable", Code: "UPSTREAM_DOWN"},
	}
}

func chunkText(s string, size int) []string {
	var chunks []string
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		if b.Len() > 0 && b.Len()+len(word)+1 > size {
			chunks = append(chunks, b.String()+" ")
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
