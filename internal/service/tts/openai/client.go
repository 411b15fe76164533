package openai

import (
	"SpeechStudio/internal/config"
	"SpeechStudio/internal/service/tts"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

var _ tts.Synthesizer = (*Client)(nil)

// Client выполняет синтез речи через эндпоинт audio/speech.
// Ровно одна попытка на вызов: ретраи SDK отключены, собственный таймаут не задаётся.
type Client struct {
	speech oai.AudioSpeechService
	logger *zap.SugaredLogger
}

// New создаёт клиента. Дополнительные опции SDK (например, option.WithHTTPClient в тестах)
// применяются после базовых.
func New(cfg config.OpenAITTSConfig, logger *zap.SugaredLogger, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	return &Client{
		speech: oai.NewAudioSpeechService(append(base, opts...)...),
		logger: logger,
	}
}

// Synthesize отправляет один POST и возвращает тело ответа как есть.
// 401 — InvalidCredential, прочие неуспешные статусы — RequestFailed, отсутствие ответа — NetworkError.
func (c *Client) Synthesize(ctx context.Context, req tts.Request, credential string) (*tts.Audio, error) {
	if req.IsZero() {
		return nil, tts.ErrEmptyInput
	}

	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(req.Model()),
		Input: req.Text(),
		Voice: oai.AudioSpeechNewParamsVoice(req.Voice()),
		Speed: oai.Float(req.Speed()),
	}

	// Сырой ответ нужен для классификации: SDK не всегда может разобрать тело ошибки
	var raw *http.Response
	started := time.Now()
	resp, err := c.speech.New(ctx, params,
		option.WithAPIKey(credential),
		option.WithResponseInto(&raw),
	)
	if err != nil {
		return nil, c.classify(err, raw, started)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logFailure(resp.StatusCode, started)
		return nil, tts.FromStatus(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.NetworkError(fmt.Errorf("openai tts: read body: %w", err))
	}
	ct := resp.Header.Get("Content-Type")
	if c.logger != nil {
		c.logger.Infow("OpenAI TTS synthesize completed",
			"status", resp.StatusCode,
			"bytes", len(data),
			"contentType", ct,
			"request", req.String(),
			"took", time.Since(started).String(),
		)
	}
	return &tts.Audio{Data: data, ContentType: ct, Format: tts.FormatFromContentType(ct)}, nil
}

func (c *Client) classify(err error, raw *http.Response, started time.Time) error {
	if raw != nil {
		c.logFailure(raw.StatusCode, started)
		var apiErr *oai.Error
		if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
			err = errors.New(apiErr.Message)
		}
		return tts.FromStatus(raw.StatusCode, err)
	}
	if c.logger != nil {
		c.logger.Warnw("OpenAI TTS request got no response", "error", err, "took", time.Since(started).String())
	}
	return tts.NetworkError(err)
}

func (c *Client) logFailure(status int, started time.Time) {
	if c.logger != nil {
		c.logger.Warnw("OpenAI TTS request failed", "status", status, "took", time.Since(started).String())
	}
}
