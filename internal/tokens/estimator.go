// Package tokens estimates how many tokens a submission will consume, so
// the client can show prompt size and reject oversized questions before
// they reach the network.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tradeatlas/tradechat-go/internal/domain"
)

// perMessageOverhead approximates the framing tokens the backend adds
// around each conversation turn.
const perMessageOverhead = 4

// Estimator counts tokens with the cl100k_base encoding, which is close
// enough for a pre-flight size check against any current chat model.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator builds an estimator. The tokenizer tables load once here.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the token count of a single text.
func (e *Estimator) Count(text string) (int, error) {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

// CountConversation estimates the size of a whole conversation log plus a
// pending submission, including per-message framing overhead.
func (e *Estimator) CountConversation(messages []domain.Message, pending string) (int, error) {
	total := 0
	for _, msg := range messages {
		n, err := e.Count(msg.Content)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	if pending != "" {
		n, err := e.Count(pending)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	return total, nil
}
