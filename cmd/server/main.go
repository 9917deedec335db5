// cmd/server/main.go
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/hyunwoo-s/soupgame/internal/arbiter"
	"github.com/hyunwoo-s/soupgame/internal/catalog"
	"github.com/hyunwoo-s/soupgame/internal/config"
	"github.com/hyunwoo-s/soupgame/internal/handlers"
	"github.com/hyunwoo-s/soupgame/internal/middleware"
	"github.com/hyunwoo-s/soupgame/internal/room"
	"github.com/hyunwoo-s/soupgame/internal/single"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if os.Getenv("SOUP_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cat, err := catalog.Load()
	if err != nil {
		logger.Fatalf("failed to load scenario catalog: %v", err)
	}
	logger.Infof("loaded %d scenarios", cat.Len())

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, single-player arbiter will answer SKIP")
	}
	arb := arbiter.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ArbiterTimeout)

	registry := room.NewRegistry(logger, room.Options{
		HintBudget: cfg.RoomHints,
		MaxGuesses: cfg.MaxGuesses,
		Draw:       cat.Random,
	})
	sessions := single.NewManager(logger, arb, cat.Random, cfg.SingleHints, cfg.ArbiterTimeout)

	srv := handlers.NewServer(logger, registry, sessions, cat.Random)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.HealthzHandler)
	mux.Handle("/ws", middleware.LogMiddleware(logger)(srv.WSHandler()))

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
