package main

import (
	"SpeechStudio/internal/app/generator"
	"SpeechStudio/internal/config"
	"SpeechStudio/internal/service/credential"
	"SpeechStudio/internal/service/notify"
	"SpeechStudio/internal/service/presets"
	"SpeechStudio/internal/service/tts/openai"
	"SpeechStudio/internal/service/tts/player"
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Синтез из терминала: озвучивает -text (или заготовку -preset) через динамики
// и по флагу -save сохраняет файл в DOWNLOAD_DIR.
func main() {
	os.Exit(run())
}

func run() int {
	text := flag.String("text", "", "текст для озвучивания")
	presetID := flag.String("preset", "", "ID заготовки: story|joke|ad|languages|movie|character|podcast|meditation")
	save := flag.Bool("save", false, "сохранить аудио в каталог загрузок")
	cfg := config.NewConfig()

	var logger *zap.Logger
	var err error
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		// В терминальном режиме пользователю достаточно уведомлений
		logger = zap.NewNop()
	}
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		_ = logger.Sync()
	}()

	input := *text
	if *presetID != "" {
		if _, ok := presets.Lookup(*presetID); !ok {
			fmt.Fprintf(os.Stderr, "unknown preset %q\n", *presetID)
			return 2
		}
		input = presets.Apply(input, *presetID)
	}

	store, closeStore, err := credential.FromConfig(cfg.Credential)
	if err != nil {
		fmt.Fprintln(os.Stderr, "credential store:", err)
		return 1
	}
	defer func() {
		_ = closeStore()
	}()

	out, err := player.OutputFromConfig(cfg.Playback)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio output:", err)
		return 1
	}
	playback := player.NewController(out, sugar)
	defer func() {
		_ = playback.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := notify.NewConsole(os.Stdout)
	gen := generator.New(store, openai.New(cfg.OpenAITTS, sugar), playback,
		&terminalPrompter{in: os.Stdin, out: os.Stdout}, console, sugar)

	res := gen.Generate(ctx, generator.Params{
		Text:  input,
		Voice: cfg.OpenAITTS.Voice,
		Model: cfg.OpenAITTS.Model,
		Speed: cfg.OpenAITTS.Speed,
	})
	if res.Abandoned || res.Err != nil {
		return 1
	}

	if *save {
		saver := player.DirSaver{Dir: cfg.DownloadDir}
		name, err := playback.Download(res.Handle, cfg.DownloadName, saver)
		if err != nil {
			console.Notify(notify.FromError(err))
			return 1
		}
		fmt.Println("Saved", saver.Path(name))
	}

	if strings.EqualFold(cfg.Playback.Output, "none") {
		return 0
	}
	if err := playUntilEnd(ctx, playback, res.Handle); err != nil {
		console.Notify(notify.FromError(err))
		return 1
	}
	return 0
}

// playUntilEnd запускает воспроизведение и ждёт окончания дорожки или сигнала.
func playUntilEnd(ctx context.Context, playback *player.Controller, h *player.Handle) error {
	ended := make(chan struct{})
	var once sync.Once
	playback.OnChange(func(st player.Status) {
		if !st.Playing {
			once.Do(func() { close(ended) })
		}
	})
	if err := playback.Play(h); err != nil {
		return err
	}
	select {
	case <-ended:
	case <-ctx.Done():
		return playback.Pause(h)
	}
	return nil
}

// terminalPrompter спрашивает ключ в терминале. Пустая строка отменяет генерацию.
type terminalPrompter struct {
	in  io.Reader
	out io.Writer
}

func (p *terminalPrompter) PromptCredential(ctx context.Context) (string, error) {
	fmt.Fprintln(p.out, "Get your API key from https://platform.openai.com/api-keys")
	fmt.Fprint(p.out, "API Key (empty to cancel): ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.in).ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", r.err
		}
		key := strings.TrimSpace(r.line)
		if key == "" {
			return "", generator.ErrAbandoned
		}
		return key, nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", generator.ErrAbandoned
	}
}
