package config

import (
	"SpeechStudio/internal/service/tts"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага: development-логгер

	OpenAITTS  OpenAITTSConfig  // Эндпоинт синтеза и параметры по умолчанию
	Credential CredentialConfig // Где хранится API-ключ
	Server     ServerConfig     // Веб-панель
	Playback   PlaybackConfig   // Воспроизведение через динамики

	DownloadDir  string `env:"DOWNLOAD_DIR"`  // Куда CLI сохраняет аудио
	DownloadName string `env:"DOWNLOAD_NAME"` // Базовое имя файла, к нему добавляется метка времени
}

// OpenAITTSConfig параметры запроса к эндпоинту синтеза речи.
type OpenAITTSConfig struct {
	BaseURL string  `env:"OPENAI_BASE_URL"` // База API, к ней добавляется audio/speech
	Voice   string  `env:"TTS_VOICE"`       // Голос по умолчанию
	Model   string  `env:"TTS_MODEL"`       // Модель по умолчанию
	Speed   float64 `env:"TTS_SPEED"`       // Скорость по умолчанию, 0.25..4.0
}

// CredentialConfig выбор бэкенда хранилища ключа.
type CredentialConfig struct {
	Backend       string `env:"CREDENTIAL_BACKEND"` // file|redis|memory
	Path          string `env:"CREDENTIAL_PATH"`    // Файл для бэкенда file
	RedisAddr     string `env:"CREDENTIAL_REDIS_ADDR"`
	RedisPassword string `env:"CREDENTIAL_REDIS_PASSWORD"`
	RedisDB       int    `env:"CREDENTIAL_REDIS_DB"`
}

// ServerConfig параметры HTTP-сервера панели.
type ServerConfig struct {
	BindAddr     string        `env:"SERVER_BIND_ADDR"`
	CORSOrigins  []string      `env:"SERVER_CORS_ORIGINS" envSeparator:";"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT"` // Покрывает ожидание ключа и сам синтез
}

// PlaybackConfig параметры вывода звука.
type PlaybackConfig struct {
	Output   string  `env:"PLAYBACK_OUTPUT"`    // speaker|none
	VolumeDB float64 `env:"PLAYBACK_VOLUME_DB"` // Отрицательные значения — тише
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		OpenAITTS: OpenAITTSConfig{
			BaseURL: "https://api.openai.com/v1/",
			Voice:   "alloy",
			Model:   "tts-1-hd",
			Speed:   1.0,
		},
		Credential: CredentialConfig{
			Backend:   "file",
			Path:      defaultCredentialPath(),
			RedisAddr: "127.0.0.1:6379",
		},
		Server: ServerConfig{
			BindAddr:     "127.0.0.1:8080",
			WriteTimeout: 3 * time.Minute,
		},
		Playback: PlaybackConfig{
			Output:   "speaker",
			VolumeDB: 0,
		},
		DownloadDir:  ".",
		DownloadName: "speech.mp3",
	}
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".speech-studio", "credentials.json")
	}
	return filepath.Join(dir, "speech-studio", "credentials.json")
}

// NewConfig загружает конфигурацию приложения из .env, окружения и флагов командной строки.
// Флаги конкретной утилиты нужно зарегистрировать в flag.CommandLine до вызова.
func NewConfig() *Config {
	cfg, err := Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load стартует с дефолтов, перекрывает их .env/окружением и затем флагами из fs.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага (подробные логи)")
	// Синтез
	fs.StringVar(&cfg.OpenAITTS.BaseURL, "openai-base-url", cfg.OpenAITTS.BaseURL, "базовый URL API синтеза речи")
	fs.StringVar(&cfg.OpenAITTS.Voice, "voice", cfg.OpenAITTS.Voice, "голос по умолчанию: alloy|echo|fable|onyx|nova|shimmer")
	fs.StringVar(&cfg.OpenAITTS.Model, "model", cfg.OpenAITTS.Model, "модель по умолчанию: tts-1|tts-1-hd")
	fs.Float64Var(&cfg.OpenAITTS.Speed, "speed", cfg.OpenAITTS.Speed, "скорость речи 0.25..4.0")
	// Хранилище ключа
	fs.StringVar(&cfg.Credential.Backend, "credential-backend", cfg.Credential.Backend, "хранилище API-ключа: file|redis|memory")
	fs.StringVar(&cfg.Credential.Path, "credential-path", cfg.Credential.Path, "путь к файлу с ключом (бэкенд file)")
	fs.StringVar(&cfg.Credential.RedisAddr, "credential-redis-addr", cfg.Credential.RedisAddr, "адрес redis (бэкенд redis)")
	fs.IntVar(&cfg.Credential.RedisDB, "credential-redis-db", cfg.Credential.RedisDB, "номер базы redis")
	// Сервер
	fs.StringVar(&cfg.Server.BindAddr, "bind-addr", cfg.Server.BindAddr, "адрес веб-панели, напр. 127.0.0.1:8080")
	var corsFlag string
	corsFlag = strings.Join(cfg.Server.CORSOrigins, ";")
	fs.StringVar(&corsFlag, "cors-origins", corsFlag, "разрешённые CORS origin, разделённые ';'")
	fs.DurationVar(&cfg.Server.WriteTimeout, "write-timeout", cfg.Server.WriteTimeout, "таймаут записи ответа, напр. 3m")
	// Воспроизведение и сохранение
	fs.StringVar(&cfg.Playback.Output, "playback-output", cfg.Playback.Output, "вывод звука: speaker|none")
	fs.Float64Var(&cfg.Playback.VolumeDB, "playback-volume-db", cfg.Playback.VolumeDB, "громкость в dB (отрицательные — тише)")
	fs.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "папка для сохранения аудио")
	fs.StringVar(&cfg.DownloadName, "download-name", cfg.DownloadName, "базовое имя сохраняемого файла")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Server.CORSOrigins = parseListFlag(corsFlag, nil)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые дальше используются без проверок.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := tts.LookupVoice(c.OpenAITTS.Voice); !ok {
		errs = append(errs, fmt.Errorf("config: unknown voice %q", c.OpenAITTS.Voice))
	}
	if _, ok := tts.LookupModel(c.OpenAITTS.Model); !ok {
		errs = append(errs, fmt.Errorf("config: unknown model %q", c.OpenAITTS.Model))
	}
	if !tts.ValidSpeed(c.OpenAITTS.Speed) {
		errs = append(errs, fmt.Errorf("config: speed %.2f out of range [%.2f, %.2f]", c.OpenAITTS.Speed, tts.MinSpeed, tts.MaxSpeed))
	}
	if strings.TrimSpace(c.OpenAITTS.BaseURL) == "" {
		errs = append(errs, errors.New("config: empty openai base url"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Credential.Backend)) {
	case "file":
		if strings.TrimSpace(c.Credential.Path) == "" {
			errs = append(errs, errors.New("config: credential backend file requires a path"))
		}
	case "redis":
		if strings.TrimSpace(c.Credential.RedisAddr) == "" {
			errs = append(errs, errors.New("config: credential backend redis requires an address"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("config: unknown credential backend %q", c.Credential.Backend))
	}
	if strings.TrimSpace(c.Server.BindAddr) == "" {
		errs = append(errs, errors.New("config: empty bind address"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Playback.Output)) {
	case "speaker", "none":
	default:
		errs = append(errs, fmt.Errorf("config: unknown playback output %q", c.Playback.Output))
	}
	if strings.TrimSpace(c.DownloadName) == "" {
		c.DownloadName = "speech.mp3"
	}
	return errors.Join(errs...)
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
