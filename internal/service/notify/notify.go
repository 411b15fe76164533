package notify

import (
	"SpeechStudio/internal/service/tts"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Report уведомление для пользователя (аналог toast).
type Report struct {
	Level       Level    `json:"level"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        tts.Kind `json:"kind,omitempty"`
	Status      int      `json:"status,omitempty"`
}

// Notifier доставляет уведомление пользователю. Реализации не должны паниковать и блокировать надолго.
type Notifier interface {
	Notify(r Report)
}

// Success уведомление об успешной генерации.
func Success() Report {
	return Report{
		Level:       LevelSuccess,
		Title:       "Speech generated successfully!",
		Description: "You can now play or download your audio.",
	}
}

// CredentialRequired приглашение ввести ключ.
func CredentialRequired() Report {
	return Report{
		Level:       LevelInfo,
		Title:       "OpenAI API Key Required",
		Description: "Enter your OpenAI API key to enable text-to-speech functionality.",
	}
}

// FromError строит уведомление из классифицированной ошибки.
func FromError(err error) Report {
	te := tts.AsError(err)
	if te == nil {
		return Report{Level: LevelInfo}
	}
	return Report{
		Level:       LevelError,
		Title:       te.Title(),
		Description: te.Description(),
		Kind:        te.Kind,
		Status:      te.Status,
	}
}

// Func адаптер функции к Notifier.
type Func func(Report)

func (f Func) Notify(r Report) { f(r) }

// Multi рассылает уведомление всем получателям по порядку.
type Multi []Notifier

func (m Multi) Notify(r Report) {
	for _, n := range m {
		if n != nil {
			n.Notify(r)
		}
	}
}

// Log пишет уведомления в журнал.
type Log struct {
	Logger *zap.SugaredLogger
}

func (l Log) Notify(r Report) {
	if l.Logger == nil {
		return
	}
	switch r.Level {
	case LevelError:
		l.Logger.Warnw(r.Title, "description", r.Description, "kind", r.Kind, "status", r.Status)
	default:
		l.Logger.Infow(r.Title, "description", r.Description)
	}
}

// Console печатает уведомления для терминального режима.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Notify(r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := "•"
	switch r.Level {
	case LevelSuccess:
		prefix = "✓"
	case LevelError:
		prefix = "✗"
	}
	if r.Description != "" {
		fmt.Fprintf(c.w, "%s %s %s\n", prefix, r.Title, r.Description)
		return
	}
	fmt.Fprintf(c.w, "%s %s\n", prefix, r.Title)
}
