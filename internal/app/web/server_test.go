package web

import (
	"SpeechStudio/internal/app/generator"
	"SpeechStudio/internal/config"
	"SpeechStudio/internal/service/credential"
	"SpeechStudio/internal/service/notify"
	"SpeechStudio/internal/service/tts"
	"SpeechStudio/internal/service/tts/player"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSynth struct {
	mu      sync.Mutex
	calls   int
	gotKey  string
	audio   *tts.Audio
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *stubSynth) Synthesize(_ context.Context, _ tts.Request, credential string) (*tts.Audio, error) {
	s.mu.Lock()
	s.calls++
	s.gotKey = credential
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if release != nil {
		<-release
	}
	return s.audio, s.err
}

func (s *stubSynth) seen() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.gotKey
}

type testEnv struct {
	srv      *httptest.Server
	server   *Server
	store    *credential.MemoryStore
	synth    *stubSynth
	prompter *Prompter
	playback *player.Controller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	cfg := *config.Defaults()

	env := &testEnv{
		store: credential.NewMemoryStore(),
		synth: &stubSynth{audio: &tts.Audio{Data: []byte("ID3-audio"), ContentType: "audio/mpeg", Format: "mp3"}},
	}
	hub := NewHub(logger, nil)
	env.prompter = NewPrompter(hub)
	env.playback = player.NewController(player.Discard{}, logger)
	gen := generator.New(env.store, env.synth, env.playback, env.prompter, hub, logger)
	env.server = NewServer(cfg, gen, env.playback, hub, env.prompter, logger)

	env.srv = httptest.NewServer(env.server.Handler())
	t.Cleanup(func() {
		env.prompter.Stop()
		hub.Close()
		env.srv.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decodeOutcome(t *testing.T, b []byte) outcomeView {
	t.Helper()
	var v outcomeView
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

const helloBody = `{"text":"Hello world","voice":"alloy","model":"tts-1-hd","speed":1}`

func TestGenerateAndDownload(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.Save(context.Background(), "sk-test"))

	resp, b := e.do(t, http.MethodPost, "/api/generate", helloBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeOutcome(t, b)
	assert.Equal(t, generator.StateSucceeded, out.State)
	assert.Nil(t, out.Error)
	require.NotNil(t, out.Handle)
	assert.Equal(t, len("ID3-audio"), out.Handle.Size)
	_, key := e.synth.seen()
	assert.Equal(t, "sk-test", key)

	resp, b = e.do(t, http.MethodGet, "/api/playback/download", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte("ID3-audio"), b)

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Regexp(t, `^speech-\d{8}-\d{6}\.\d{3}\.mp3$`, params["filename"])
}

func TestGenerateBlankTextReportsEmptyInput(t *testing.T) {
	e := newTestEnv(t)
	resp, b := e.do(t, http.MethodPost, "/api/generate", `{"text":"   "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeOutcome(t, b)
	assert.Equal(t, generator.StateFailed, out.State)
	require.NotNil(t, out.Error)
	assert.Equal(t, tts.KindEmptyInput, out.Error.Kind)
	calls, _ := e.synth.seen()
	assert.Zero(t, calls)
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	e := newTestEnv(t)
	resp, b := e.do(t, http.MethodPost, "/api/generate", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(b), string(tts.KindInvalidRequest))
}

func TestCredentialPromptAnsweredFromPage(t *testing.T) {
	e := newTestEnv(t)

	done := make(chan outcomeView, 1)
	go func() {
		_, b := e.do(t, http.MethodPost, "/api/generate", helloBody)
		var v outcomeView
		_ = json.Unmarshal(b, &v)
		done <- v
	}()

	require.Eventually(t, e.prompter.Pending, 5*time.Second, 10*time.Millisecond)
	calls, _ := e.synth.seen()
	assert.Zero(t, calls)

	resp, _ := e.do(t, http.MethodPost, "/api/credential", `{"apiKey":"  sk-page  "}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case out := <-done:
		assert.Equal(t, generator.StateSucceeded, out.State)
	case <-time.After(5 * time.Second):
		t.Fatal("generate did not finish")
	}
	_, key := e.synth.seen()
	assert.Equal(t, "sk-page", key)

	_, b := e.do(t, http.MethodGet, "/api/credential", "")
	assert.JSONEq(t, `{"present":true}`, string(b))
}

func TestCredentialPromptAbandoned(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodDelete, "/api/credential/prompt", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	done := make(chan outcomeView, 1)
	go func() {
		_, b := e.do(t, http.MethodPost, "/api/generate", helloBody)
		var v outcomeView
		_ = json.Unmarshal(b, &v)
		done <- v
	}()
	require.Eventually(t, e.prompter.Pending, 5*time.Second, 10*time.Millisecond)

	resp, _ = e.do(t, http.MethodDelete, "/api/credential/prompt", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case out := <-done:
		assert.True(t, out.Abandoned)
		assert.Equal(t, generator.StateIdle, out.State)
		assert.Nil(t, out.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("generate did not finish")
	}
	calls, _ := e.synth.seen()
	assert.Zero(t, calls)

	_, b := e.do(t, http.MethodGet, "/api/credential", "")
	assert.JSONEq(t, `{"present":false}`, string(b))
}

func TestCredentialSavedDirectly(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/credential", `{"apiKey":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, b := e.do(t, http.MethodPost, "/api/credential", `{"apiKey":"sk-direct"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, string(b), "sk-direct")

	v, ok, err := e.store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-direct", v)

	_, b = e.do(t, http.MethodGet, "/api/credential", "")
	assert.NotContains(t, string(b), "sk-direct")
}

func TestGenerateWhileBusyIsConflict(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.Save(context.Background(), "sk-test"))
	e.synth.entered = make(chan struct{})
	e.synth.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.do(t, http.MethodPost, "/api/generate", helloBody)
	}()
	select {
	case <-e.synth.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first generation did not reach the request")
	}

	resp, b := e.do(t, http.MethodPost, "/api/generate", helloBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	out := decodeOutcome(t, b)
	assert.True(t, out.Ignored)
	assert.Equal(t, generator.StateRequesting, out.State)

	close(e.synth.release)
	<-done
	calls, _ := e.synth.seen()
	assert.Equal(t, 1, calls)
}

func TestPlaybackEndpoints(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/playback/play", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/playback/download", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, e.store.Save(context.Background(), "sk-test"))
	e.do(t, http.MethodPost, "/api/generate", helloBody)

	resp, b := e.do(t, http.MethodPost, "/api/playback/play", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st player.Status
	require.NoError(t, json.Unmarshal(b, &st))
	assert.True(t, st.Playing)

	// Повторный play ничего не меняет
	_, b = e.do(t, http.MethodPost, "/api/playback/play", "")
	require.NoError(t, json.Unmarshal(b, &st))
	assert.True(t, st.Playing)

	_, b = e.do(t, http.MethodPost, "/api/playback/pause", "")
	require.NoError(t, json.Unmarshal(b, &st))
	assert.False(t, st.Playing)
}

func TestCatalogAndPresets(t *testing.T) {
	e := newTestEnv(t)

	_, b := e.do(t, http.MethodGet, "/api/catalog", "")
	var c catalogView
	require.NoError(t, json.Unmarshal(b, &c))
	assert.Len(t, c.Voices, 6)
	assert.Len(t, c.Models, 2)
	assert.Equal(t, sliderView{Min: 0.25, Max: 4, Step: 0.25, Default: 1}, c.Sliders["speed"])
	assert.Equal(t, "alloy", c.Defaults.Voice)

	_, b = e.do(t, http.MethodGet, "/api/presets", "")
	var ps []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(b, &ps))
	assert.Len(t, ps, 8)
}

func TestPageRenders(t *testing.T) {
	e := newTestEnv(t)
	resp, b := e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(b)
	for _, s := range []string{"Text to Speech", "Voice Isolator", "Tell a silly joke", "Generate Speech", "OpenAI API Key Required"} {
		assert.Contains(t, page, s)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebsocketSnapshotAndEvents(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.Save(context.Background(), "sk-test"))

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	for range 3 {
		types = append(types, readEvent(t, conn).Type)
	}
	assert.Equal(t, []string{EventState, EventPlayback, EventCredential}, types)

	e.do(t, http.MethodPost, "/api/generate", helloBody)

	var notification *Event
	for notification == nil {
		ev := readEvent(t, conn)
		if ev.Type == EventNotification {
			notification = &ev
		}
	}
	data, ok := notification.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Speech generated successfully!", data["title"])
}

func TestHubNotifyReachesPage(t *testing.T) {
	e := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	for range 3 {
		readEvent(t, conn)
	}

	e.server.hub.Notify(notify.FromError(tts.NetworkError(assert.AnError)))

	ev := readEvent(t, conn)
	require.Equal(t, EventNotification, ev.Type)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", data["level"])
}

func TestServerStartServesAndStops(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	cfg := *config.Defaults()
	cfg.Server.BindAddr = "127.0.0.1:0"

	hub := NewHub(logger, nil)
	prompter := NewPrompter(hub)
	playback := player.NewController(player.Discard{}, logger)
	gen := generator.New(credential.NewMemoryStore(), &stubSynth{}, playback, prompter, hub, logger)
	s := NewServer(cfg, gen, playback, hub, prompter, logger)

	require.NoError(t, s.Start())
	require.NotEqual(t, "127.0.0.1:0", s.Addr())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + s.Addr() + "/api/catalog")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	client.Transport = &http.Transport{DisableKeepAlives: true}
	_, err = client.Get("http://" + s.Addr() + "/api/catalog")
	assert.Error(t, err)
}

func TestServerStartReportsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	logger := zaptest.NewLogger(t).Sugar()
	cfg := *config.Defaults()
	cfg.Server.BindAddr = ln.Addr().String()

	hub := NewHub(logger, nil)
	prompter := NewPrompter(hub)
	playback := player.NewController(player.Discard{}, logger)
	gen := generator.New(credential.NewMemoryStore(), &stubSynth{}, playback, prompter, hub, logger)
	s := NewServer(cfg, gen, playback, hub, prompter, logger)

	require.Error(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
}
