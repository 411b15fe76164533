package tts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestRejectsBlankText(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n", "   \r\n  "} {
		_, err := NewRequest(text, "alloy", "tts-1-hd", 1.0)
		require.ErrorIs(t, err, ErrEmptyInput, "text %q", text)
		assert.Equal(t, KindEmptyInput, KindOf(err))
	}
}

func TestNewRequestValidatesCatalogAndSpeed(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		model string
		speed float64
	}{
		{name: "unknown voice", voice: "ballad", model: "tts-1", speed: 1},
		{name: "unknown model", voice: "alloy", model: "gpt-4o-mini-tts", speed: 1},
		{name: "too slow", voice: "alloy", model: "tts-1", speed: 0.2},
		{name: "too fast", voice: "alloy", model: "tts-1", speed: 4.25},
		{name: "nan", voice: "alloy", model: "tts-1", speed: math.NaN()},
		{name: "inf", voice: "alloy", model: "tts-1", speed: math.Inf(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRequest("hello", tc.voice, tc.model, tc.speed)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestNewRequestKeepsValues(t *testing.T) {
	req, err := NewRequest("Hello world", "alloy", "tts-1-hd", 0.25)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", req.Text())
	assert.Equal(t, "alloy", req.Voice())
	assert.Equal(t, "tts-1-hd", req.Model())
	assert.Equal(t, 0.25, req.Speed())
	assert.NotContains(t, req.String(), "Hello")
}

func TestCatalogs(t *testing.T) {
	ids := []string{}
	for _, v := range Voices() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}, ids)

	hd, ok := LookupModel("tts-1-hd")
	require.True(t, ok)
	assert.True(t, hd.Recommended)

	// копия не должна менять каталог
	vs := Voices()
	vs[0].ID = "changed"
	_, ok = LookupVoice("alloy")
	assert.True(t, ok)
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(http.StatusUnauthorized, errors.New("bad key"))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	err = FromStatus(http.StatusTooManyRequests, nil)
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, http.StatusTooManyRequests, AsError(err).Status)
	assert.Contains(t, AsError(err).Description(), "429")
}

func TestAsErrorClassifiesUnknownErrors(t *testing.T) {
	assert.Nil(t, AsError(nil))
	assert.Equal(t, Kind(""), KindOf(nil))

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.Equal(t, KindNetworkError, KindOf(fmt.Errorf("post: %w", opErr)))
	assert.Equal(t, KindNetworkError, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindRequestFailed, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("generate: %w", PlaybackError(errors.New("bad frame")))
	assert.Equal(t, KindPlaybackError, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrPlayback)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Please enter some text", ErrEmptyInput.Title())
	assert.Equal(t, "Enter the text you want to convert to speech.", ErrEmptyInput.Description())
	cred := AsError(InvalidCredential(nil))
	assert.Equal(t, "Failed to generate speech", cred.Title())
	assert.Equal(t, "Please check your API key and try again.", cred.Description())
}

func TestFormatFromContentType(t *testing.T) {
	assert.Equal(t, "mp3", FormatFromContentType("audio/mpeg"))
	assert.Equal(t, "wav", FormatFromContentType("audio/wav"))
	assert.Equal(t, "mp3", FormatFromContentType(""))
}
