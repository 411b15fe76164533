package web

import (
	"SpeechStudio/internal/app/generator"
	"SpeechStudio/internal/config"
	"SpeechStudio/internal/service/presets"
	"SpeechStudio/internal/service/tts"
	"SpeechStudio/internal/service/tts/player"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// Server веб-панель: страница, REST API и websocket с событиями.
type Server struct {
	cfg      config.Config
	gen      *generator.Generator
	playback *player.Controller
	hub      *Hub
	prompter *Prompter
	logger   *zap.SugaredLogger

	srv     *http.Server
	running atomic.Bool
	addr    atomic.Value
}

func NewServer(cfg config.Config, gen *generator.Generator, playback *player.Controller, hub *Hub, prompter *Prompter, logger *zap.SugaredLogger) *Server {
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "127.0.0.1:8080"
	}
	s := &Server{
		cfg:      cfg,
		gen:      gen,
		playback: playback,
		hub:      hub,
		prompter: prompter,
		logger:   logger,
	}
	hub.snapshot = s.snapshot

	gen.Subscribe(func(tr generator.Transition) {
		hub.Broadcast(Event{Type: EventState, Data: stateView{State: tr.To, Kind: tr.Kind, Busy: tr.To != generator.StateIdle}})
	})
	playback.OnChange(func(st player.Status) {
		hub.Broadcast(Event{Type: EventPlayback, Data: st})
	})

	s.srv = &http.Server{
		Addr:              cfg.Server.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler собирает маршруты. Используется и в тестах.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handlePage)
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)

		r.Get("/credential", s.handleCredentialStatus)
		r.Post("/credential", s.handleCredentialSubmit)
		r.Delete("/credential/prompt", s.handleCredentialAbandon)

		r.Post("/playback/play", s.handlePlay)
		r.Post("/playback/pause", s.handlePause)
		r.Get("/playback/download", s.handleDownload)

		r.Get("/presets", s.handlePresets)
		r.Get("/catalog", s.handleCatalog)
	})
	return r
}

// Start занимает адрес сразу, ошибка bind возвращается вызывающему.
// Обслуживание идёт в фоне до Stop.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.addr.Store(ln.Addr().String())

	go func() {
		s.logger.Infow("Speech studio listening", "addr", "http://"+s.Addr())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("Server stopped with error", "error", err)
		} else {
			s.logger.Infow("Server stopped")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	// Ожидающий ввод ключа не должен держать Shutdown
	s.prompter.Stop()
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("speech-studio shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

// Addr фактический адрес после Start (порт :0 уже разрешён), до него BindAddr.
func (s *Server) Addr() string {
	if a, ok := s.addr.Load().(string); ok {
		return a
	}
	return s.srv.Addr
}

type stateView struct {
	State generator.State `json:"state"`
	Kind  tts.Kind        `json:"kind,omitempty"`
	Busy  bool            `json:"busy"`
}

type errorView struct {
	Kind    tts.Kind `json:"kind"`
	Status  int      `json:"status,omitempty"`
	Message string   `json:"message"`
	Title   string   `json:"title,omitempty"`
}

type handleView struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
}

type outcomeView struct {
	State     generator.State `json:"state"`
	Ignored   bool            `json:"ignored"`
	Abandoned bool            `json:"abandoned"`
	Error     *errorView      `json:"error,omitempty"`
	Handle    *handleView     `json:"handle,omitempty"`
}

func newErrorView(te *tts.Error) *errorView {
	if te == nil {
		return nil
	}
	return &errorView{Kind: te.Kind, Status: te.Status, Message: te.Description(), Title: te.Title()}
}

func newHandleView(h *player.Handle) *handleView {
	if h == nil {
		return nil
	}
	return &handleView{ID: h.ID, CreatedAt: h.CreatedAt, ContentType: h.ContentType, Size: h.Size()}
}

func (s *Server) snapshot() []Event {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	present, err := s.gen.HasCredential(ctx)
	if err != nil {
		s.logger.Warnw("Failed to check stored API key", "error", err)
	}
	events := []Event{
		{Type: EventState, Data: stateView{State: s.gen.State(), Busy: s.gen.Busy()}},
		{Type: EventPlayback, Data: s.playback.Status()},
		{Type: EventCredential, Data: credentialView{Present: present}},
	}
	if s.prompter.Pending() {
		events = append(events, Event{Type: EventCredentialRequired})
	}
	return events
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var p generator.Params
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, tts.InvalidRequest(err))
		return
	}
	if p.Voice == "" {
		p.Voice = s.cfg.OpenAITTS.Voice
	}
	if p.Model == "" {
		p.Model = s.cfg.OpenAITTS.Model
	}
	if p.Speed == 0 {
		p.Speed = s.cfg.OpenAITTS.Speed
	}

	// Генерация доводится до конца даже при закрытии вкладки
	out := s.gen.Generate(context.WithoutCancel(r.Context()), p)
	view := outcomeView{
		State:     out.Final,
		Ignored:   out.Ignored,
		Abandoned: out.Abandoned,
		Error:     newErrorView(out.Err),
		Handle:    newHandleView(out.Handle),
	}
	status := http.StatusOK
	if out.Ignored {
		status = http.StatusConflict
	}
	writeJSON(w, status, view)
}

type credentialView struct {
	Present bool `json:"present"`
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	present, err := s.gen.HasCredential(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialView{Present: present})
}

// handleCredentialSubmit отвечает на открытый запрос ключа, а без него сохраняет ключ напрямую.
func (s *Server) handleCredentialSubmit(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, tts.InvalidRequest(err))
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		writeError(w, http.StatusBadRequest, tts.InvalidRequest(errors.New("apiKey is required")))
		return
	}
	if s.prompter.Submit(key) {
		// Сохранит сам оркестратор перед запросом
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err := s.gen.SaveCredential(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.hub.Broadcast(Event{Type: EventCredential, Data: credentialView{Present: true}})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCredentialAbandon(w http.ResponseWriter, _ *http.Request) {
	if !s.prompter.Abandon() {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlay(w http.ResponseWriter, _ *http.Request) {
	s.playbackAction(w, s.playback.Play)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.playbackAction(w, s.playback.Pause)
}

func (s *Server) playbackAction(w http.ResponseWriter, action func(*player.Handle) error) {
	h := s.playback.Current()
	if h == nil {
		writeError(w, http.StatusNotFound, tts.PlaybackError(errors.New("no audio generated yet")))
		return
	}
	if err := action(h); err != nil {
		s.logger.Warnw("Playback failed", "handle", h.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.playback.Status())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	h := s.playback.Current()
	if h == nil {
		writeError(w, http.StatusNotFound, tts.PlaybackError(errors.New("no audio generated yet")))
		return
	}
	suggested := r.URL.Query().Get("name")
	if suggested == "" {
		suggested = s.cfg.DownloadName
	}
	name, err := s.playback.Download(h, suggested, httpSaver{w: w})
	if err != nil {
		// Заголовки могли уйти; остаётся только запись в журнал
		s.logger.Warnw("Download failed", "handle", h.ID, "error", err)
		return
	}
	s.logger.Infow("Audio downloaded", "handle", h.ID, "name", name)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, presets.List())
}

type sliderView struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

type catalogView struct {
	Voices   []tts.Voice           `json:"voices"`
	Models   []tts.Model           `json:"models"`
	Sliders  map[string]sliderView `json:"sliders"`
	Defaults generator.Params      `json:"defaults"`
}

func (s *Server) catalog() catalogView {
	return catalogView{
		Voices: tts.Voices(),
		Models: tts.Models(),
		Sliders: map[string]sliderView{
			"speed":      {Min: tts.MinSpeed, Max: tts.MaxSpeed, Step: tts.SpeedStep, Default: s.cfg.OpenAITTS.Speed},
			"stability":  {Min: 0, Max: 1, Step: 0.01, Default: 0.5},
			"similarity": {Min: 0, Max: 1, Step: 0.01, Default: 0.75},
		},
		Defaults: generator.Params{Voice: s.cfg.OpenAITTS.Voice, Model: s.cfg.OpenAITTS.Model, Speed: s.cfg.OpenAITTS.Speed},
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog())
}

// httpSaver отдаёт аудио браузеру как вложение.
type httpSaver struct {
	w http.ResponseWriter
}

func (h httpSaver) Save(name, contentType string, r io.Reader) error {
	h.w.Header().Set("Content-Type", contentType)
	h.w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.w.WriteHeader(http.StatusOK)
	_, err := io.Copy(h.w, r)
	return err
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error *errorView `json:"error"`
	}{Error: newErrorView(tts.AsError(err))})
}
