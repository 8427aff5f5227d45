package tokens

import (
	"testing"

	"github.com/tradeatlas/tradechat-go/internal/domain"
)

func TestEstimator_Count(t *testing.T) {
	e, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}

	n, err := e.Count("What is the HS code for live horses?")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n == 0 {
		t.Error("Count() = 0 for non-empty text")
	}

	empty, err := e.Count("")
	if err != nil {
		t.Fatalf("Count(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("Count(empty) = %d, want 0", empty)
	}
}

func TestEstimator_CountConversation(t *testing.T) {
	e, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}

	log := []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAI, Content: "Hi there"},
	}

	withoutPending, err := e.CountConversation(log, "")
	if err != nil {
		t.Fatalf("CountConversation() error = %v", err)
	}
	withPending, err := e.CountConversation(log, "next question")
	if err != nil {
		t.Fatalf("CountConversation() error = %v", err)
	}

	if withPending <= withoutPending {
		t.Errorf("pending submission should add tokens: %d <= %d", withPending, withoutPending)
	}
	if withoutPending <= 2*perMessageOverhead {
		t.Errorf("CountConversation() = %d, want content plus overhead", withoutPending)
	}
}
