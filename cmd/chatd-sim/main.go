// Command chatd-sim runs the local trade-chat backend simulator. It serves
// the streaming chat endpoint and the token-refresh endpoint with scripted
// exchanges, and prints a credential pair on startup for member sessions.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradeatlas/tradechat-go/internal/sim"
)

func main() {
	_ = godotenv.Load()

	port := flag.Int("port", 8081, "listen port")
	frameDelay := flag.Duration("frame-delay", 80*time.Millisecond, "pause between SSE frames")
	tokenTTL := flag.Int("token-ttl", 0, "requests before an access token expires (0 = never)")
	fail := flag.Bool("fail", false, "fail every exchange in-band")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	opts := []sim.Option{
		sim.WithLogger(logger),
		sim.WithFrameDelay(*frameDelay),
		sim.WithTokenTTL(*tokenTTL),
	}
	if *fail {
		opts = append(opts, sim.WithScript(sim.FailingScript))
	}

	srv := sim.New(opts...)

	access, refresh := srv.Issue()
	fmt.Printf("export TRADECHAT_ACCESS_TOKEN=%s\n", access)
	fmt.Printf("export TRADECHAT_REFRESH_TOKEN=%s\n", refresh)

	logger.Info("starting simulator", slog.Int("port", *port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), srv.Router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
