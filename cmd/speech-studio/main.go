package main

import (
	"SpeechStudio/internal/app/generator"
	"SpeechStudio/internal/app/web"
	"SpeechStudio/internal/config"
	"SpeechStudio/internal/service/credential"
	"SpeechStudio/internal/service/notify"
	"SpeechStudio/internal/service/tts/openai"
	"SpeechStudio/internal/service/tts/player"
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Веб-панель синтеза речи: страница на SERVER_BIND_ADDR, звук через динамики этой машины.
func main() {
	cfg := config.NewConfig()

	var logger *zap.Logger
	var err error
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		_ = logger.Sync()
	}()

	sugar.Infow("Starting speech studio",
		"DebugMode", cfg.DebugMode,
		"credentialBackend", cfg.Credential.Backend,
		"playbackOutput", cfg.Playback.Output,
		"voice", cfg.OpenAITTS.Voice,
		"model", cfg.OpenAITTS.Model,
	)

	store, closeStore, err := credential.FromConfig(cfg.Credential)
	if err != nil {
		sugar.Fatalw("Failed to init credential store", "error", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			sugar.Warnw("Failed to close credential store", "error", err)
		}
	}()

	out, err := player.OutputFromConfig(cfg.Playback)
	if err != nil {
		sugar.Fatalw("Failed to init audio output", "error", err)
	}
	playback := player.NewController(out, sugar)
	defer func() {
		if err := playback.Close(); err != nil {
			sugar.Warnw("Failed to release audio", "error", err)
		}
	}()

	hub := web.NewHub(sugar, nil)
	prompter := web.NewPrompter(hub)
	synth := openai.New(cfg.OpenAITTS, sugar)
	gen := generator.New(store, synth, playback, prompter, notify.Multi{hub, notify.Log{Logger: sugar}}, sugar)
	srv := web.NewServer(*cfg, gen, playback, hub, prompter, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		sugar.Fatalw("Failed to start server", "error", err)
	}
	<-ctx.Done()
	sugar.Infow("Shutting down")
	if err := srv.Stop(context.Background()); err != nil {
		sugar.Warnw("Server stop failed", "error", err)
	}
}
