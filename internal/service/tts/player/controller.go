package player

import (
	"SpeechStudio/internal/service/tts"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDownloadName базовое имя сохраняемого аудио.
const DefaultDownloadName = "speech.mp3"

const stampLayout = "20060102-150405.000"

var errStaleHandle = errors.New("player: handle was released")

// Handle отзываемая ссылка на последнее синтезированное аудио.
// Живёт до следующего Load или явного Release.
type Handle struct {
	ID          string
	Format      string
	ContentType string
	CreatedAt   time.Time

	payload  []byte
	released bool
}

// Size размер полезной нагрузки; 0 после освобождения.
func (h *Handle) Size() int { return len(h.payload) }

// FileName имя для сохранения: база из suggested, метка времени генерации и расширение формата.
func (h *Handle) FileName(suggested string) string {
	base := filepath.Base(strings.TrimSpace(suggested))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = DefaultDownloadName
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "speech"
	}
	format := h.Format
	if format == "" {
		format = "mp3"
	}
	return fmt.Sprintf("%s-%s.%s", stem, h.CreatedAt.Format(stampLayout), format)
}

// Status снимок состояния воспроизведения для UI.
type Status struct {
	HandleID string `json:"handleId,omitempty"`
	Playing  bool   `json:"playing"`
}

// Controller владеет единственным активным Handle и выводом звука.
// Новый Load сначала освобождает предыдущий ресурс.
type Controller struct {
	out    Output
	logger *zap.SugaredLogger
	now    func() time.Time

	mu        sync.Mutex
	current   *Handle
	opened    bool // out декодировал current
	playing   bool
	lastStamp time.Time
	onChange  func(Status)
}

func NewController(out Output, logger *zap.SugaredLogger) *Controller {
	if out == nil {
		out = Discard{}
	}
	return &Controller{out: out, logger: logger, now: time.Now}
}

// OnChange регистрирует получателя изменений состояния (вызывается вне блокировки).
func (c *Controller) OnChange(fn func(Status)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Load оборачивает аудио в новый Handle, освобождая предыдущий.
func (c *Controller) Load(audio *tts.Audio) (*Handle, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, tts.PlaybackError(errors.New("empty audio payload"))
	}

	c.mu.Lock()
	if err := c.releaseLocked(c.current); err != nil && c.logger != nil {
		c.logger.Warnw("Failed to close previous audio", "error", err)
	}
	// Метка времени строго растёт, чтобы имена файлов не совпадали
	stamp := c.now().Truncate(time.Millisecond)
	if !stamp.After(c.lastStamp) {
		stamp = c.lastStamp.Add(time.Millisecond)
	}
	c.lastStamp = stamp

	format := audio.Format
	if format == "" {
		format = tts.FormatFromContentType(audio.ContentType)
	}
	h := &Handle{
		ID:          uuid.NewString(),
		Format:      format,
		ContentType: audio.ContentType,
		CreatedAt:   stamp,
		payload:     audio.Data,
	}
	c.current = h
	st := c.statusLocked()
	fn := c.onChange
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Infow("Audio loaded", "handle", h.ID, "bytes", len(audio.Data), "format", format)
	}
	notify(fn, st)
	return h, nil
}

// Play запускает воспроизведение; повторный Play во время игры ничего не делает.
func (c *Controller) Play(h *Handle) error {
	c.mu.Lock()
	if err := c.checkLocked(h); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.playing {
		c.mu.Unlock()
		return nil
	}
	if !c.opened {
		if err := c.out.Open(h.Format, h.payload); err != nil {
			c.mu.Unlock()
			return tts.PlaybackError(fmt.Errorf("decode %s: %w", h.Format, err))
		}
		c.opened = true
	}
	if err := c.out.Resume(c.endedFunc(h)); err != nil {
		c.mu.Unlock()
		return tts.PlaybackError(err)
	}
	c.playing = true
	st := c.statusLocked()
	fn := c.onChange
	c.mu.Unlock()

	notify(fn, st)
	return nil
}

// Pause ставит на паузу; Pause на паузе ничего не делает.
func (c *Controller) Pause(h *Handle) error {
	c.mu.Lock()
	if err := c.checkLocked(h); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.playing {
		c.mu.Unlock()
		return nil
	}
	if err := c.out.Pause(); err != nil {
		c.mu.Unlock()
		return tts.PlaybackError(err)
	}
	c.playing = false
	st := c.statusLocked()
	fn := c.onChange
	c.mu.Unlock()

	notify(fn, st)
	return nil
}

// Toggle переключает play/pause, как кнопка в интерфейсе.
func (c *Controller) Toggle(h *Handle) error {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	if playing {
		return c.Pause(h)
	}
	return c.Play(h)
}

// Download отдаёт полезную нагрузку saver'у под именем с меткой времени генерации.
func (c *Controller) Download(h *Handle, suggestedName string, saver Saver) (string, error) {
	c.mu.Lock()
	if err := c.checkLocked(h); err != nil {
		c.mu.Unlock()
		return "", err
	}
	payload, ct := h.payload, h.ContentType
	name := h.FileName(suggestedName)
	c.mu.Unlock()

	if ct == "" {
		ct = "audio/mpeg"
	}
	if err := saver.Save(name, ct, bytes.NewReader(payload)); err != nil {
		return "", tts.PlaybackError(fmt.Errorf("save %s: %w", name, err))
	}
	return name, nil
}

// Release освобождает ресурс Handle. Повторный вызов ничего не делает.
func (c *Controller) Release(h *Handle) error {
	c.mu.Lock()
	err := c.releaseLocked(h)
	st := c.statusLocked()
	fn := c.onChange
	c.mu.Unlock()

	notify(fn, st)
	return err
}

// Close освобождает текущий Handle при завершении работы.
func (c *Controller) Close() error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	return c.Release(cur)
}

// Current активный Handle или nil.
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Lookup возвращает активный Handle по ID.
func (c *Controller) Lookup(id string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.ID != id {
		return nil, false
	}
	return c.current, true
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	st := Status{Playing: c.playing}
	if c.current != nil {
		st.HandleID = c.current.ID
	}
	return st
}

func (c *Controller) checkLocked(h *Handle) error {
	if h == nil || h.released || h != c.current {
		return tts.PlaybackError(errStaleHandle)
	}
	return nil
}

func (c *Controller) releaseLocked(h *Handle) error {
	if h == nil || h.released {
		return nil
	}
	h.released = true
	h.payload = nil
	if h != c.current {
		return nil
	}
	var err error
	if c.opened {
		err = c.out.Close()
	}
	c.current, c.opened, c.playing = nil, false, false
	return err
}

func (c *Controller) endedFunc(h *Handle) func() {
	return func() {
		c.mu.Lock()
		if c.current != h || !c.playing {
			c.mu.Unlock()
			return
		}
		c.playing = false
		st := c.statusLocked()
		fn := c.onChange
		c.mu.Unlock()
		notify(fn, st)
	}
}

func notify(fn func(Status), st Status) {
	if fn != nil {
		fn(st)
	}
}
