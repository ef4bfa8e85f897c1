package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/exterior-stylist/agent"
	"github.com/raine/exterior-stylist/config"
	"github.com/raine/exterior-stylist/imageref"
	"github.com/raine/exterior-stylist/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()
	cfg := config.FromEnv()

	// Context cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver := imageref.NewResolver(imageref.ResolverOpts{})

	var (
		ag  agent.Agent
		gen agent.ImageGenerator
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			log.Fatal().Msg("GEMINI_API_KEY is not set")
		}
		gemini, err := agent.NewGeminiAgent(ctx, resolver)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize gemini agent")
		}
		ag, gen = gemini, gemini
	case config.ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			log.Fatal().Msg("OPENAI_API_KEY is not set")
		}
		oa := agent.NewOpenAIAgent()
		ag, gen = oa, oa
	default:
		log.Fatal().Str("provider", cfg.Provider).Msg("unknown agent provider")
	}
	log.Info().Str("provider", cfg.Provider).Msg("agent initialized")

	srv := server.New(server.Config{
		ListenAddr:     cfg.ListenAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, ag, gen, resolver)

	httpServer := srv.HTTPServer()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
}
