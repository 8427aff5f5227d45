// Command tradechat is an interactive terminal client for the trade-chat
// service. It streams one exchange at a time, renders reasoning progress and
// the main answer as they arrive, and supports bookmarking the classified
// product once an exchange completes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/tradeatlas/tradechat-go/internal/apiclient"
	"github.com/tradeatlas/tradechat-go/internal/auth"
	"github.com/tradeatlas/tradechat-go/internal/bookmark"
	"github.com/tradeatlas/tradechat-go/internal/config"
	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
	"github.com/tradeatlas/tradechat-go/internal/session"
	"github.com/tradeatlas/tradechat-go/internal/telemetry"
	"github.com/tradeatlas/tradechat-go/internal/tokens"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	// Logs go to stderr so stdout stays clean for the conversation.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("tradechat", logger, telemetry.WithWriter(os.Stderr))
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store := auth.NewTokenStore()
	store.SetAccessToken(os.Getenv("TRADECHAT_ACCESS_TOKEN"))
	store.SetRefreshToken(os.Getenv("TRADECHAT_REFRESH_TOKEN"))

	failures := auth.NewFailureHandler(store,
		func() string { return "/chat" },
		func(saved string) {
			fmt.Println("\n! Your session has expired. Please sign in again.")
		},
		logger,
	)

	client := apiclient.NewClient(store,
		apiclient.WithBaseURL(cfg.API.BaseURL),
		apiclient.WithLogger(logger),
		apiclient.WithTracing(),
		apiclient.WithAuthFailureHandler(failures),
	)

	bookmarks, err := bookmark.New(cfg.Bookmarks.Path)
	if err != nil {
		log.Fatalf("Failed to open bookmark store: %v", err)
	}
	defer bookmarks.Close()

	estimator, err := tokens.NewEstimator()
	if err != nil {
		log.Fatalf("Failed to initialize token estimator: %v", err)
	}

	r := newRenderer()
	var ctrl *session.Controller
	ctrl = session.NewController(client, store.Authenticated,
		session.WithBookmarker(bookmarks),
		session.WithContext(domain.ChatContext{
			Locale:     cfg.Chat.Locale,
			ClientInfo: cfg.Chat.ClientInfo,
		}),
		session.WithLogger(logger),
		session.WithCallbacks(session.Callbacks{
			OnStateChange: func() { r.render(ctrl.Snapshot()) },
			OnSessionInfo: func(info protocol.SessionInfo) {
				logger.Info("session established",
					slog.String("session_id", info.SessionID),
					slog.String("user_type", info.UserType),
				)
			},
			OnCompleted: func() { r.completed(ctrl.Snapshot()) },
			OnClosed:    func() { r.closed(ctrl.Snapshot()) },
			OnError:     func(err error) { r.failed(err) },
		}),
	)

	fmt.Println("tradechat - ask about trade classifications, tariffs, and export rules")
	fmt.Println("commands: /bookmark  /clear  /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/clear":
			ctrl.Clear()
			fmt.Println("conversation cleared")
			continue
		case line == "/bookmark":
			if err := ctrl.CreateBookmark(context.Background()); err != nil {
				fmt.Printf("bookmark failed: %v\n", err)
			} else {
				fmt.Println("bookmarked")
			}
			continue
		}

		snap := ctrl.Snapshot()
		count, err := estimator.CountConversation(snap.Messages, line)
		if err == nil && count > cfg.Chat.MaxPromptTokens {
			fmt.Printf("message too long: conversation is ~%d tokens, limit is %d (try /clear)\n",
				count, cfg.Chat.MaxPromptTokens)
			continue
		}

		r.reset()
		if err := ctrl.Submit(context.Background(), line); err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		r.wait()
	}
}

// renderer turns state snapshots into incremental terminal output. Only the
// not-yet-printed suffix of the answer buffer is written on each change.
type renderer struct {
	mu       sync.Mutex
	printed  int
	thinking bool
	done     chan struct{}
}

func newRenderer() *renderer {
	return &renderer{done: make(chan struct{})}
}

func (r *renderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printed = 0
	r.thinking = false
	r.done = make(chan struct{})
}

func (r *renderer) render(snap session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch snap.Status {
	case domain.StatusThinking:
		if snap.ThinkingBuffer != "" {
			fmt.Printf("\r\033[K.. %s", snap.ThinkingBuffer)
			r.thinking = true
		}
	case domain.StatusResponding:
		if r.thinking {
			fmt.Print("\r\033[K")
			r.thinking = false
		}
		if len(snap.AnswerBuffer) > r.printed {
			fmt.Print(snap.AnswerBuffer[r.printed:])
			r.printed = len(snap.AnswerBuffer)
		}
	}
}

func (r *renderer) completed(snap session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.thinking {
		fmt.Print("\r\033[K")
		r.thinking = false
	}
	if len(snap.Messages) > 0 {
		last := snap.Messages[len(snap.Messages)-1]
		if last.Role == domain.RoleAI && len(last.Content) > r.printed {
			fmt.Print(last.Content[r.printed:])
			r.printed = len(last.Content)
		}
	}
	fmt.Println()
}

func (r *renderer) closed(snap session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, btn := range snap.Parallel.DetailButtons {
		fmt.Printf("  [%s] %s\n", btn.ButtonType, btn.Title)
	}
	if snap.Bookmark != nil && snap.Bookmark.Available {
		fmt.Printf("  (bookmark available for HS %s, /bookmark to save)\n", snap.Bookmark.HSCode)
	}

	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *renderer) failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.thinking {
		fmt.Print("\r\033[K")
		r.thinking = false
	}
	fmt.Printf("exchange failed: %v\n", err)

	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *renderer) wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	<-done
}
