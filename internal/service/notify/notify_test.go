package notify

import (
	"SpeechStudio/internal/service/tts"
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestFromError(t *testing.T) {
	r := FromError(tts.FromStatus(http.StatusBadGateway, nil))
	assert.Equal(t, LevelError, r.Level)
	assert.Equal(t, tts.KindRequestFailed, r.Kind)
	assert.Equal(t, http.StatusBadGateway, r.Status)
	assert.Contains(t, r.Description, "502")

	r = FromError(tts.ErrEmptyInput)
	assert.Equal(t, "Please enter some text", r.Title)

	assert.Equal(t, LevelInfo, FromError(nil).Level)
}

func TestConsoleAndMulti(t *testing.T) {
	var buf bytes.Buffer
	var got []Report
	m := Multi{NewConsole(&buf), Func(func(r Report) { got = append(got, r) }), Log{Logger: zaptest.NewLogger(t).Sugar()}, nil}

	m.Notify(Success())
	m.Notify(FromError(tts.InvalidCredential(nil)))

	assert.Len(t, got, 2)
	assert.Equal(t, "✓ Speech generated successfully! You can now play or download your audio.\n"+
		"✗ Failed to generate speech Please check your API key and try again.\n", buf.String())
}
