package tts

import (
	"context"
	"strings"
)

// Synthesizer абстракция TTS. Выполняет ровно одну попытку синтеза и возвращает аудио,
// воспроизведение — забота вызывающего. credential передаётся на каждый вызов и нигде не сохраняется.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request, credential string) (*Audio, error)
}

// Audio бинарный результат синтеза.
type Audio struct {
	Data        []byte
	ContentType string // как пришло от сервиса, напр. audio/mpeg
	Format      string // mp3|wav|opus|aac|flac|pcm, выводится из ContentType
}

// FormatFromContentType сопоставляет MIME-тип ответа с форматом для плеера.
// Неизвестный тип считается mp3: это формат ответа сервиса по умолчанию.
func FormatFromContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/opus", "audio/ogg":
		return "opus"
	case "audio/aac":
		return "aac"
	case "audio/flac":
		return "flac"
	case "audio/pcm", "audio/l16":
		return "pcm"
	default:
		return "mp3"
	}
}
