package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/internal/server"
	"github.com/auralabs/aura-core/internal/turn"
	"github.com/auralabs/aura-core/pkg/assistant"
	ollamaprov "github.com/auralabs/aura-core/pkg/assistant/providers/ollama"
	"github.com/auralabs/aura-core/pkg/intent"
	xio "github.com/auralabs/aura-core/pkg/io"
	memoryregistry "github.com/auralabs/aura-core/pkg/io/registry/memory"
	"github.com/auralabs/aura-core/pkg/io/stt/whisper"
	"github.com/auralabs/aura-core/pkg/io/tts/piper"
	"github.com/auralabs/aura-core/pkg/logger"
)

// Entry point for the meeting assistant. Wires the collaborators around the
// turn-taking core and exposes the websocket media gateway.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	lg := logger.New(cfg.Debug)
	lg.Info("Logger initialized")

	deviceRegistry := memoryregistry.New()
	publisher := xio.New(deviceRegistry)

	var generator assistant.Generator
	if cfg.Ollama.Enabled {
		generator = ollamaprov.New(cfg.Ollama, lg)
	} else {
		generator = assistant.NewOpenAI(cfg.AssistantKeys)
	}

	tts := piper.New(cfg.Voice.TtsURL)
	tts.Voice = cfg.Voice.Voice

	collab := turn.Collaborators{
		Recognizer:  whisper.New(cfg.Voice.SttURL, cfg.Audio.SampleRate, cfg.Turn.WakeWord, lg),
		Classifier:  intent.NewRuleClassifier(cfg.Turn.WakeWord),
		Generator:   generator,
		Synthesizer: tts,
		Sender:      publisher,
		Notifier:    publisher,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := turn.NewSessionRegistry(ctx, cfg, collab, lg)

	router := gin.Default()
	server.InitializeRoutes(router, server.Dependencies{
		Settings: cfg,
		Sessions: sessions,
		Devices:  deviceRegistry,
		Logger:   lg,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalf("Server exiting %v", err)
		}
	}()
	lg.Infof("Listening on %s", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sessions.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("Shutdown err %v", err)
	}
	lg.Info("Shutdown system")
}
