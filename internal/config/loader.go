package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// ValidProviderNames lists the known provider names per kind
var ValidProviderNames = map[string][]string{
	"storage": {BackendMongo, BackendMemory},
	"llm":     {"gemini", "openai", "mock"},
	"stt":     {"google", "mock"},
	"tts":     {"kokoro", "elevenlabs", "polly", "mock"},
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load builds the configuration from defaults, the optional .env file, the
// YAML file named by CONFIG_FILE and the environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := Decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads YAML from r on top of the values already in cfg. Unknown
// keys are an error.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set
func ApplyEnv(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	int64Val := func(name string, dst *int64) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &cfg.Server.Port)
	str("LOG_LEVEL", &cfg.Server.LogLevel)
	boolean("DEVELOPMENT", &cfg.Server.Development)
	duration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	duration("JWT_TOKEN_TTL", &cfg.Auth.TokenTTL)

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("MONGODB_URI", &cfg.Storage.MongoURI)
	str("MONGODB_DATABASE", &cfg.Storage.MongoDatabase)
	str("UPLOAD_DIR", &cfg.Storage.UploadDir)
	str("TEMP_DIR", &cfg.Storage.TempDir)
	int64Val("MAX_UPLOAD_BYTES", &cfg.Storage.MaxUploadBytes)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	duration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	str("GEMINI_API_KEY", &cfg.LLM.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.LLM.Gemini.Model)
	str("GEMINI_BASE_URL", &cfg.LLM.Gemini.BaseURL)
	str("OPENAI_API_KEY", &cfg.LLM.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.OpenAI.BaseURL)
	str("OPENAI_MODEL", &cfg.LLM.OpenAI.Model)

	str("STT_PROVIDER", &cfg.STT.Provider)
	str("STT_LANGUAGE", &cfg.STT.Language)
	integer("STT_SAMPLE_RATE", &cfg.STT.SampleRate)
	duration("STT_TIMEOUT", &cfg.STT.Timeout)
	str("STT_MOCK_TRANSCRIPT", &cfg.STT.MockTranscript)

	str("TTS_PROVIDER", &cfg.TTS.Provider)
	float("TTS_SPEED", &cfg.TTS.Speed)
	duration("TTS_TIMEOUT", &cfg.TTS.Timeout)
	integer("TTS_ATTEMPTS", &cfg.TTS.Attempts)
	str("KOKORO_BASE_URL", &cfg.TTS.Kokoro.BaseURL)
	str("KOKORO_API_KEY", &cfg.TTS.Kokoro.APIKey)
	str("ELEVEN_LABS_API_KEY", &cfg.TTS.ElevenLabs.APIKey)
	str("AWS_REGION", &cfg.TTS.Polly.Region)

	integer("TURN_HISTORY_LIMIT", &cfg.Pipeline.TurnHistoryLimit)
	integer("FEEDBACK_HISTORY_LIMIT", &cfg.Pipeline.FeedbackHistoryLimit)
	str("NATIVE_LANGUAGE", &cfg.Pipeline.NativeLanguage)

	integer("WORKER_MAX_ATTEMPTS", &cfg.Worker.MaxAttempts)
	duration("WORKER_SWEEP_INTERVAL", &cfg.Worker.SweepInterval)

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if strings.TrimSpace(cfg.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if !slices.Contains(validLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: %s", cfg.Server.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	// Auth
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}

	// Storage
	errs = appendProviderErr(errs, "storage", "storage.backend", cfg.Storage.Backend)
	if cfg.Storage.Backend == BackendMongo {
		if cfg.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required for the mongo backend"))
		}
		if cfg.Storage.MongoDatabase == "" {
			errs = append(errs, errors.New("storage.mongo_database is required for the mongo backend"))
		}
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("storage.max_upload_bytes must be positive, got %d", cfg.Storage.MaxUploadBytes))
	}

	// Providers
	errs = appendProviderErr(errs, "llm", "llm.provider", cfg.LLM.Provider)
	switch cfg.LLM.Provider {
	case "gemini":
		if cfg.LLM.Gemini.APIKey == "" {
			errs = append(errs, errors.New("llm.gemini.api_key is required when llm.provider is gemini"))
		}
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("llm.openai.api_key is required when llm.provider is openai"))
		}
	}

	errs = appendProviderErr(errs, "stt", "stt.provider", cfg.STT.Provider)

	errs = appendProviderErr(errs, "tts", "tts.provider", cfg.TTS.Provider)
	switch cfg.TTS.Provider {
	case "elevenlabs":
		if cfg.TTS.ElevenLabs.APIKey == "" {
			errs = append(errs, errors.New("tts.elevenlabs.api_key is required when tts.provider is elevenlabs"))
		}
	case "kokoro":
		if cfg.TTS.Kokoro.BaseURL == "" {
			errs = append(errs, errors.New("tts.kokoro.base_url is required when tts.provider is kokoro"))
		}
	}
	if cfg.TTS.Attempts < 1 {
		errs = append(errs, fmt.Errorf("tts.attempts must be at least 1, got %d", cfg.TTS.Attempts))
	}
	if cfg.TTS.Speed <= 0 || cfg.TTS.Speed > 4 {
		errs = append(errs, fmt.Errorf("tts.speed %.2f is out of range (0, 4]", cfg.TTS.Speed))
	}

	// Timeouts
	for name, d := range map[string]time.Duration{
		"llm.timeout":             cfg.LLM.Timeout,
		"stt.timeout":             cfg.STT.Timeout,
		"tts.timeout":             cfg.TTS.Timeout,
		"server.shutdown_timeout": cfg.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	// Pipeline
	if cfg.Pipeline.TurnHistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.turn_history_limit must be positive, got %d", cfg.Pipeline.TurnHistoryLimit))
	}
	if cfg.Pipeline.FeedbackHistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.feedback_history_limit must be positive, got %d", cfg.Pipeline.FeedbackHistoryLimit))
	}

	// Worker
	if cfg.Worker.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("worker.max_attempts must be at least 1, got %d", cfg.Worker.MaxAttempts))
	}
	if cfg.Worker.BaseBackoff > cfg.Worker.MaxBackoff {
		errs = append(errs, fmt.Errorf("worker.base_backoff %s exceeds worker.max_backoff %s", cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff))
	}

	return errors.Join(errs...)
}

func appendProviderErr(errs []error, kind, field, name string) []error {
	known := ValidProviderNames[kind]
	if slices.Contains(known, name) {
		return errs
	}
	return append(errs, fmt.Errorf("%s %q is invalid; valid values: %s", field, name, strings.Join(known, ", ")))
}
