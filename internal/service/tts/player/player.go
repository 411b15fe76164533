package player

import (
	"SpeechStudio/internal/config"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Output низкоуровневый вывод звука — аналог audio-элемента страницы.
// Open декодирует полезную нагрузку и заменяет ранее открытую, Resume запускает
// или продолжает воспроизведение, onEnd вызывается, когда дорожка доиграла.
type Output interface {
	Open(format string, payload []byte) error
	Resume(onEnd func()) error
	Pause() error
	Close() error
}

var errNotOpen = errors.New("player: nothing is open")

// Speaker реализует Output через системный звук и поддерживает mp3 и wav.
type Speaker struct {
	volumeDB float64

	mu     sync.Mutex
	rate   beep.SampleRate // частота, с которой инициализирован speaker; 0 — не инициализирован
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	queued bool  // стрим отдан в speaker и ещё не доиграл
	gen    int64 // поколение открытой дорожки, защищает от поздних колбэков
}

// New создаёт вывод без изменения громкости (0 dB).
func New() *Speaker { return &Speaker{volumeDB: 0} }

// NewWithVolume создаёт вывод с предустановленной громкостью в dB (отрицательные — тише).
func NewWithVolume(db float64) *Speaker { return &Speaker{volumeDB: db} }

func (s *Speaker) Open(format string, payload []byte) error {
	streamer, f, err := decode(format, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.stream, s.format = streamer, f
	s.gen++
	return nil
}

func (s *Speaker) Resume(onEnd func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return errNotOpen
	}
	if s.queued {
		speaker.Lock()
		s.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	if s.rate != s.format.SampleRate {
		if err := speaker.Init(s.format.SampleRate, s.format.SampleRate.N(time.Second/10)); err != nil {
			return err
		}
		s.rate = s.format.SampleRate
	}

	// Дорожка доиграла — начинаем сначала
	if s.stream.Position() >= s.stream.Len() {
		if err := s.stream.Seek(0); err != nil {
			return err
		}
	}

	vol := &effects.Volume{
		Streamer: s.stream,
		Base:     2,
		Volume:   s.volumeDB,
		Silent:   false,
	}
	s.ctrl = &beep.Ctrl{Streamer: vol, Paused: false}
	s.queued = true
	gen := s.gen
	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		// Колбэк вызывается под блокировкой speaker, поэтому уходим в отдельную горутину
		go s.finished(gen, onEnd)
	})))
	return nil
}

func (s *Speaker) finished(gen int64, onEnd func()) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.queued = false
	s.mu.Unlock()
	if onEnd != nil {
		onEnd()
	}
}

func (s *Speaker) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return errNotOpen
	}
	if s.queued {
		speaker.Lock()
		s.ctrl.Paused = true
		speaker.Unlock()
	}
	return nil
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Speaker) closeLocked() error {
	if s.stream == nil {
		return nil
	}
	if s.queued {
		speaker.Clear()
		s.queued = false
	}
	err := s.stream.Close()
	s.stream, s.ctrl = nil, nil
	s.gen++
	return err
}

// decode разбирает полезную нагрузку в seekable-стрим.
func decode(format string, payload []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(format) {
	case "wav":
		return wav.Decode(bytes.NewReader(payload))
	case "mp3", "":
		return mp3.Decode(readSeekNopCloser{bytes.NewReader(payload)})
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported format %q for direct playback; use mp3 or wav", format)
	}
}

// readSeekNopCloser сохраняет Seek у bytes.Reader, в отличие от io.NopCloser.
type readSeekNopCloser struct{ io.ReadSeeker }

func (readSeekNopCloser) Close() error { return nil }

// Discard Output без звука: для серверов без аудиоустройства.
type Discard struct{}

func (Discard) Open(string, []byte) error { return nil }
func (Discard) Resume(onEnd func()) error { return nil }
func (Discard) Pause() error { return nil }
func (Discard) Close() error { return nil }

// OutputFromConfig выбирает вывод: системный звук или Discard.
func OutputFromConfig(cfg config.PlaybackConfig) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "speaker":
		return NewWithVolume(cfg.VolumeDB), nil
	case "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("player: unknown output %q", cfg.Output)
	}
}
