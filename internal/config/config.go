// Package config loads the server configuration. Values come from built-in
// defaults, an optional YAML file named by CONFIG_FILE, and environment
// variables (a .env file is read first), in that order of precedence.
package config

import (
	"time"
)

// Config is the complete server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	STT      STTConfig      `yaml:"stt"`
	TTS      TTSConfig      `yaml:"tts"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	Development     bool          `yaml:"development"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// StorageConfig selects the document store and where audio files live
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	MongoURI       string `yaml:"mongo_uri"`
	MongoDatabase  string `yaml:"mongo_database"`
	UploadDir      string `yaml:"upload_dir"`
	TempDir        string `yaml:"temp_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
	Gemini   GeminiConfig  `yaml:"gemini"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
}

type GeminiConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type STTConfig struct {
	Provider   string        `yaml:"provider"`
	Language   string        `yaml:"language"`
	SampleRate int           `yaml:"sample_rate"`
	Timeout    time.Duration `yaml:"timeout"`
	// Transcript returned by the mock provider
	MockTranscript string `yaml:"mock_transcript"`
}

type TTSConfig struct {
	Provider   string           `yaml:"provider"`
	Speed      float64          `yaml:"speed"`
	Language   string           `yaml:"language"`
	Format     string           `yaml:"format"`
	Timeout    time.Duration    `yaml:"timeout"`
	Attempts   int              `yaml:"attempts"`
	Kokoro     KokoroConfig     `yaml:"kokoro"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Polly      PollyConfig      `yaml:"polly"`
}

type KokoroConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	ModelID string `yaml:"model_id"`
}

type PollyConfig struct {
	Region string `yaml:"region"`
	Engine string `yaml:"engine"`
}

// PipelineConfig bounds the conversation history given to the model
type PipelineConfig struct {
	TurnHistoryLimit     int    `yaml:"turn_history_limit"`
	FeedbackHistoryLimit int    `yaml:"feedback_history_limit"`
	NativeLanguage       string `yaml:"native_language"`
}

// WorkerConfig tunes the background feedback dispatcher
type WorkerConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	Lease         time.Duration `yaml:"lease"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:        BackendMongo,
			MongoURI:       "mongodb://localhost:27017",
			MongoDatabase:  "speak_english_ai",
			UploadDir:      "uploads",
			MaxUploadBytes: 50 << 20,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Timeout:  60 * time.Second,
			Gemini: GeminiConfig{
				Model:       "gemini-2.0-flash",
				MaxAttempts: 3,
			},
			OpenAI: OpenAIConfig{
				Model: "gpt-4o-mini",
			},
		},
		STT: STTConfig{
			Provider: "google",
			Language: "en-US",
			Timeout:  30 * time.Second,
		},
		TTS: TTSConfig{
			Provider: "kokoro",
			Speed:    1.3,
			Language: "en-US",
			Format:   "mp3",
			Timeout:  60 * time.Second,
			Attempts: 2,
			Kokoro: KokoroConfig{
				BaseURL: "http://localhost:8880/v1",
				Model:   "kokoro",
			},
			Polly: PollyConfig{
				Engine: "neural",
			},
		},
		Pipeline: PipelineConfig{
			TurnHistoryLimit:     20,
			FeedbackHistoryLimit: 10,
			NativeLanguage:       "Vietnamese",
		},
		Worker: WorkerConfig{
			MaxAttempts:   5,
			BaseBackoff:   5 * time.Second,
			MaxBackoff:    5 * time.Minute,
			Lease:         3 * time.Minute,
			SweepInterval: 30 * time.Second,
			JobTimeout:    2 * time.Minute,
		},
	}
}
