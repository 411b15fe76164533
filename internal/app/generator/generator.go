package generator

import (
	"SpeechStudio/internal/service/credential"
	"SpeechStudio/internal/service/notify"
	"SpeechStudio/internal/service/tts"
	"SpeechStudio/internal/service/tts/player"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State состояние оркестратора генерации.
type State string

const (
	StateIdle               State = "Idle"
	StateValidating         State = "Validating"
	StateAwaitingCredential State = "AwaitingCredential"
	StateRequesting         State = "Requesting"
	StateSucceeded          State = "Succeeded"
	StateFailed             State = "Failed"
)

// ErrAbandoned возвращается CredentialPrompter, если пользователь закрыл запрос ключа.
var ErrAbandoned = errors.New("credential prompt abandoned")

// CredentialPrompter запрашивает ключ у пользователя (модальное окно, терминал).
// Пустая строка или ErrAbandoned — пользователь отказался.
type CredentialPrompter interface {
	PromptCredential(ctx context.Context) (string, error)
}

// Loader часть Playback Controller, нужная оркестратору.
type Loader interface {
	Load(audio *tts.Audio) (*player.Handle, error)
}

// Params снимок параметров интерфейса на момент нажатия кнопки.
type Params struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Model string  `json:"model"`
	Speed float64 `json:"speed"`
}

// Transition переход состояния для подписчиков (UI, журнал).
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Kind tts.Kind  `json:"kind,omitempty"`
	At   time.Time `json:"at"`
}

// Outcome итог одного вызова Generate.
type Outcome struct {
	// Final последнее содержательное состояние перед возвратом в Idle:
	// Succeeded, Failed или Idle (отказ от ввода ключа / проигнорированный вызов).
	Final     State
	Err       *tts.Error
	Handle    *player.Handle
	Ignored   bool // генерация уже идёт
	Abandoned bool // пользователь не ввёл ключ
}

// Generator координирует хранилище ключа, клиента синтеза и плеер.
// Одновременно выполняется не больше одной генерации: лишние вызовы игнорируются.
type Generator struct {
	store    credential.Store
	synth    tts.Synthesizer
	playback Loader
	prompter CredentialPrompter
	notifier notify.Notifier
	logger   *zap.SugaredLogger

	running atomic.Bool
	mu      sync.Mutex
	state   State
	subs    []func(Transition)
}

func New(store credential.Store, synth tts.Synthesizer, playback Loader, prompter CredentialPrompter, notifier notify.Notifier, logger *zap.SugaredLogger) *Generator {
	if notifier == nil {
		notifier = notify.Log{Logger: logger}
	}
	return &Generator{
		store:    store,
		synth:    synth,
		playback: playback,
		prompter: prompter,
		notifier: notifier,
		logger:   logger,
		state:    StateIdle,
	}
}

// Subscribe добавляет получателя переходов. Вызывается синхронно в порядке переходов.
func (g *Generator) Subscribe(fn func(Transition)) {
	g.mu.Lock()
	g.subs = append(g.subs, fn)
	g.mu.Unlock()
}

// State текущее состояние.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Busy true, пока идёт генерация: UI блокирует кнопку.
func (g *Generator) Busy() bool { return g.running.Load() }

// SaveCredential явное сохранение ключа из модального окна.
func (g *Generator) SaveCredential(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return tts.StorageError(errors.New("empty API key"))
	}
	if err := g.store.Save(ctx, secret); err != nil {
		return tts.StorageError(err)
	}
	g.logger.Infow("API key saved")
	return nil
}

// HasCredential сообщает, сохранён ли ключ. Значение наружу не отдаётся.
func (g *Generator) HasCredential(ctx context.Context) (bool, error) {
	_, ok, err := g.store.Load(ctx)
	if err != nil {
		return false, tts.StorageError(err)
	}
	return ok, nil
}

// Generate проводит одну генерацию: Validating → [AwaitingCredential] → Requesting → Succeeded|Failed → Idle.
// Ошибки не возвращаются: они отражены в Outcome и отправлены пользователю через Notifier.
func (g *Generator) Generate(ctx context.Context, p Params) Outcome {
	if !g.running.CompareAndSwap(false, true) {
		g.logger.Infow("Skipping generate: another generation is in flight")
		return Outcome{Final: g.State(), Ignored: true}
	}
	defer g.running.Store(false)

	started := time.Now()
	out := g.run(ctx, p)
	g.logger.Infow("Generate done", "final", out.Final, "abandoned", out.Abandoned, "duration", time.Since(started).String())
	g.transition(StateIdle, "")
	return out
}

func (g *Generator) run(ctx context.Context, p Params) Outcome {
	g.transition(StateValidating, "")
	req, err := tts.NewRequest(p.Text, p.Voice, p.Model, p.Speed)
	if err != nil {
		return g.fail(err)
	}

	secret, ok, err := g.store.Load(ctx)
	if err != nil {
		return g.fail(tts.StorageError(err))
	}
	if !ok || strings.TrimSpace(secret) == "" {
		g.transition(StateAwaitingCredential, "")
		g.notifier.Notify(notify.CredentialRequired())
		secret, err = g.acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrAbandoned) {
				g.logger.Infow("Credential prompt abandoned")
				return Outcome{Final: StateIdle, Abandoned: true}
			}
			return g.fail(err)
		}
	}

	g.transition(StateRequesting, "")
	g.logger.Infow("Requesting speech", "request", req.String(), "hasCredential", secret != "")
	audio, err := g.synth.Synthesize(ctx, req, secret)
	if err != nil {
		// Ключ при InvalidCredential не удаляем: пользователь исправит его сам
		return g.fail(err)
	}

	h, err := g.playback.Load(audio)
	if err != nil {
		return g.fail(err)
	}
	g.transition(StateSucceeded, "")
	g.notifier.Notify(notify.Success())
	return Outcome{Final: StateSucceeded, Handle: h}
}

// acquire запрашивает ключ и сохраняет его. Пустой ввод равносилен отказу.
func (g *Generator) acquire(ctx context.Context) (string, error) {
	if g.prompter == nil {
		return "", ErrAbandoned
	}
	secret, err := g.prompter.PromptCredential(ctx)
	if err != nil {
		if errors.Is(err, ErrAbandoned) || errors.Is(err, context.Canceled) {
			return "", ErrAbandoned
		}
		return "", err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrAbandoned
	}
	if err := g.store.Save(ctx, secret); err != nil {
		return "", tts.StorageError(err)
	}
	g.logger.Infow("API key saved from prompt")
	return secret, nil
}

func (g *Generator) fail(err error) Outcome {
	te := tts.AsError(err)
	g.transition(StateFailed, te.Kind)
	g.logger.Warnw("Generate failed", "kind", te.Kind, "status", te.Status, "error", te.Err)
	g.notifier.Notify(notify.FromError(te))
	return Outcome{Final: StateFailed, Err: te}
}

func (g *Generator) transition(to State, kind tts.Kind) {
	g.mu.Lock()
	tr := Transition{From: g.state, To: to, Kind: kind, At: time.Now()}
	g.state = to
	subs := append([]func(Transition){}, g.subs...)
	g.mu.Unlock()

	g.logger.Infow("State", "from", tr.From, "to", tr.To, "kind", kind)
	for _, fn := range subs {
		fn(tr)
	}
}
