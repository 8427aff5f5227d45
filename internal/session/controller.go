package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/tradeatlas/tradechat-go/internal/apiclient"
	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
)

// Streamer opens one streaming chat exchange. *apiclient.Client satisfies it.
type Streamer interface {
	OpenChatStream(ctx context.Context, req *domain.ChatRequest) (<-chan apiclient.StreamResult, error)
}

// Bookmarker is the external bookmark-creation collaborator provided by the
// surrounding application.
type Bookmarker interface {
	CreateBookmark(ctx context.Context, candidate domain.BookmarkCandidate) error
}

// Callbacks surface lifecycle notifications to the UI layer. Every callback
// runs outside the controller lock; handlers must read current values via
// Snapshot rather than cling to state captured at registration time.
type Callbacks struct {
	// OnStateChange fires after every state transition.
	OnStateChange func()

	// OnSessionInfo fires when the server announces the session and
	// caller's user type.
	OnSessionInfo func(info protocol.SessionInfo)

	// OnCompleted fires when the main answer is finalized.
	OnCompleted func()

	// OnClosed fires when the stream ends gracefully.
	OnClosed func()

	// OnError fires on in-band protocol errors and stream-level failures.
	OnError func(err error)
}

// Option configures the controller.
type Option func(*Controller)

// WithBookmarker installs the bookmark-creation collaborator.
func WithBookmarker(b Bookmarker) Option {
	return func(c *Controller) { c.bookmarker = b }
}

// WithCallbacks installs the lifecycle callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) { c.cb = cb }
}

// WithContext sets the locale and client info sent with each exchange.
func WithContext(chatCtx domain.ChatContext) Option {
	return func(c *Controller) { c.chatCtx = chatCtx }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller orchestrates one exchange at a time: it opens the stream,
// feeds every received event through the reducer, materializes finalized
// messages, and exposes the result to the UI layer.
//
// All state mutation is serialized behind one mutex, so events are reduced
// one at a time in arrival order. Each submission carries a generation
// marker; events from an abandoned stream are discarded once a newer
// generation has started.
type Controller struct {
	mu         sync.Mutex
	state      State
	streaming  bool
	generation uint64
	cancel     context.CancelFunc

	streamer      Streamer
	bookmarker    Bookmarker
	authenticated func() bool
	reducer       *Reducer
	chatCtx       domain.ChatContext
	cb            Callbacks
	logger        *slog.Logger
}

// NewController creates a controller. authenticated reports whether the
// caller currently holds a credential; it is consulted at submission and at
// bookmark time, never cached beyond one exchange.
func NewController(streamer Streamer, authenticated func() bool, opts ...Option) *Controller {
	c := &Controller{
		state:         NewState(),
		streamer:      streamer,
		authenticated: authenticated,
		reducer:       NewReducer(),
		chatCtx:       domain.ChatContext{Locale: "ko", ClientInfo: "tradechat-go"},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a deep copy of the current session state. Event handlers
// must use it for every read so they observe current, not captured, values.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Streaming reports whether an exchange is currently open.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Submit starts a new exchange for text. It resets transient session state,
// appends the user message optimistically (never rolled back), opens the
// stream, and consumes events in the background until the stream ends.
//
// Submitting while a previous exchange is still open abandons that stream:
// its late events are ignored once this generation has started.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return &domain.PreconditionError{Message: "message must not be empty"}
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.state = c.state.resetForSubmit(c.authenticated())
	c.state = c.reducer.finalize(c.state, domain.Message{
		Role:    domain.RoleUser,
		Content: text,
	})
	c.streaming = true

	req := &domain.ChatRequest{
		Message:   text,
		SessionID: c.state.SessionID,
		Context:   c.chatCtx,
	}
	c.mu.Unlock()

	c.notifyStateChange()

	events, err := c.streamer.OpenChatStream(streamCtx, req)
	if err != nil {
		// Re-read shared state: another submission may have started while
		// the open was in flight.
		c.mu.Lock()
		if gen == c.generation {
			c.failLocked(err)
			c.mu.Unlock()
			c.notifyError(err)
			c.notifyStateChange()
		} else {
			c.mu.Unlock()
		}
		return err
	}

	go c.consume(gen, events)
	return nil
}

// consume applies stream results one at a time until the channel closes.
func (c *Controller) consume(gen uint64, events <-chan apiclient.StreamResult) {
	for res := range events {
		c.apply(gen, res)
	}
	c.closed(gen)
}

func (c *Controller) apply(gen uint64, res apiclient.StreamResult) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	if res.Err != nil {
		c.failLocked(res.Err)
		c.mu.Unlock()
		c.notifyError(res.Err)
		c.notifyStateChange()
		return
	}

	c.state = c.reducer.Reduce(c.state, res.Event)
	// An in-band error ends the exchange now, not when the server gets
	// around to closing the connection.
	if c.state.Status == domain.StatusFailed {
		c.streaming = false
	}
	c.mu.Unlock()

	switch e := res.Event.(type) {
	case protocol.SessionInfo:
		if c.cb.OnSessionInfo != nil {
			c.cb.OnSessionInfo(e)
		}
	case protocol.MainAnswerComplete:
		if c.cb.OnCompleted != nil {
			c.cb.OnCompleted()
		}
	case protocol.ErrorEvent:
		c.notifyError(&domain.ProtocolError{Message: e.Message})
	}
	c.notifyStateChange()
}

// closed handles graceful stream termination. A session that never
// completed produced no usable answer and reverts to PENDING; terminal
// states stay put until the next submission.
func (c *Controller) closed(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.streaming = false
	if !c.state.Terminal() {
		c.state.Status = domain.StatusPending
		c.state.ThinkingBuffer = ""
		c.state.AnswerBuffer = ""
	}
	c.mu.Unlock()

	if c.cb.OnClosed != nil {
		c.cb.OnClosed()
	}
	c.notifyStateChange()
}

// failLocked resolves the session to FAILED. Finalized messages are kept;
// only transient buffers are discarded. Caller holds the lock.
func (c *Controller) failLocked(err error) {
	c.streaming = false
	c.state.Status = domain.StatusFailed
	c.state.ErrorMessage = err.Error()
	c.state.ThinkingBuffer = ""
	c.state.AnswerBuffer = ""
	c.state.Bookmark = nil
	c.logger.Warn("exchange failed", slog.String("error", err.Error()))
}

// CreateBookmark delegates the current bookmark signal to the collaborator.
// It fails fast with a precondition error, never contacting the
// collaborator, when no eligible signal is present or the caller is not
// authenticated. On success the signal is cleared; on failure state is left
// unchanged.
func (c *Controller) CreateBookmark(ctx context.Context) error {
	c.mu.Lock()
	gen := c.generation
	sig := c.state.Bookmark
	eligible := sig != nil && sig.Available && c.authenticated()
	if !eligible {
		c.mu.Unlock()
		return &domain.PreconditionError{Message: "no eligible bookmark signal"}
	}
	candidate := domain.BookmarkCandidate{
		HSCode:   sig.HSCode,
		Category: sig.ProductName,
	}
	c.mu.Unlock()

	if c.bookmarker == nil {
		return &domain.PreconditionError{Message: "no bookmark collaborator configured"}
	}
	if err := c.bookmarker.CreateBookmark(ctx, candidate); err != nil {
		return err
	}

	// The collaborator call suspended us; only clear the signal if no newer
	// submission replaced it in the meantime.
	c.mu.Lock()
	if gen == c.generation {
		c.state.Bookmark = nil
	}
	c.mu.Unlock()

	c.notifyStateChange()
	return nil
}

// Clear drops the conversation log and resets the session to PENDING.
// Any open stream is abandoned. Idempotent.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = NewState()
	c.streaming = false
	c.mu.Unlock()

	c.notifyStateChange()
}

func (c *Controller) notifyStateChange() {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange()
	}
}

func (c *Controller) notifyError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
