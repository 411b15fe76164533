package tts

import (
	"fmt"
	"strings"
)

const (
	MinSpeed  = 0.25
	MaxSpeed  = 4.0
	SpeedStep = 0.25
)

// Voice элемент каталога голосов.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Model элемент каталога моделей.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Recommended bool   `json:"recommended"`
}

var voices = []Voice{
	{ID: "alloy", Name: "Alloy", Description: "Neutral, balanced voice"},
	{ID: "echo", Name: "Echo", Description: "Warm, engaging tone"},
	{ID: "fable", Name: "Fable", Description: "Expressive storytelling voice"},
	{ID: "onyx", Name: "Onyx", Description: "Deep, authoritative voice"},
	{ID: "nova", Name: "Nova", Description: "Bright, energetic voice"},
	{ID: "shimmer", Name: "Shimmer", Description: "Gentle, soothing voice"},
}

var models = []Model{
	{ID: "tts-1", Name: "Standard TTS", Description: "Fast, efficient synthesis"},
	{ID: "tts-1-hd", Name: "HD TTS", Description: "Higher quality, more natural", Recommended: true},
}

// Voices возвращает копию каталога голосов в порядке отображения.
func Voices() []Voice { return append([]Voice(nil), voices...) }

// Models возвращает копию каталога моделей в порядке отображения.
func Models() []Model { return append([]Model(nil), models...) }

func LookupVoice(id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

func LookupModel(id string) (Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Request проверенный набор параметров одного синтеза. Поля неэкспортируемые:
// после NewRequest значение не меняется.
type Request struct {
	text  string
	voice string
	model string
	speed float64
}

// NewRequest проверяет параметры и собирает снимок запроса.
// Пустой или состоящий из пробелов текст — EmptyInput, остальные нарушения — InvalidRequest.
func NewRequest(text, voice, model string, speed float64) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, ErrEmptyInput
	}
	if _, ok := LookupVoice(voice); !ok {
		return Request{}, InvalidRequest(fmt.Errorf("unknown voice %q", voice))
	}
	if _, ok := LookupModel(model); !ok {
		return Request{}, InvalidRequest(fmt.Errorf("unknown model %q", model))
	}
	if !ValidSpeed(speed) {
		return Request{}, InvalidRequest(fmt.Errorf("speed %.2f out of range [%.2f, %.2f]", speed, MinSpeed, MaxSpeed))
	}
	return Request{text: text, voice: voice, model: model, speed: speed}, nil
}

// ValidSpeed true для скорости из [MinSpeed, MaxSpeed]; NaN не проходит.
func ValidSpeed(speed float64) bool {
	return speed >= MinSpeed && speed <= MaxSpeed
}

func (r Request) Text() string { return r.text }
func (r Request) Voice() string { return r.voice }
func (r Request) Model() string { return r.model }
func (r Request) Speed() float64 { return r.speed }
func (r Request) IsZero() bool { return r.text == "" }
func (r Request) String() string {
	// Текст не печатаем целиком: он может быть длинным.
	return fmt.Sprintf("voice=%s model=%s speed=%.2f chars=%d", r.voice, r.model, r.speed, len([]rune(r.text)))
}
