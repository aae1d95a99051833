package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Vision     VisionConfig
	STT        STTConfig
	Transcribe TranscribeConfig
	Queue      QueueConfig
	Cache      CacheConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig enables bearer-token checks on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	APIKey           string
	BaseURL          string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	FallbackModel    string
}

type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type STTConfig struct {
	Backend       string // "riva", "openai" or "local"
	ClientBin     string // interpreter used to run the riva client script
	ClientScript  string
	Server        string // host:port of the recognition service
	UseSSL        bool
	FunctionID    string
	APIKey        string
	LanguageCode  string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string
}

type TranscribeConfig struct {
	UploadDir         string
	FFmpegPath        string
	ConvertTimeout    time.Duration
	TranscribeTimeout time.Duration
	Workers           int
}

type QueueConfig struct {
	Concurrency  int
	JobTimeout   time.Duration
	JobResultTTL time.Duration
}

type CacheConfig struct {
	AdvisorTTL time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	useSSL, err := getEnvBool("STT_USE_SSL", true)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_USE_SSL: %w", err)
	}

	convertTimeout, err := getEnvDuration("CONVERT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CONVERT_TIMEOUT: %w", err)
	}

	transcribeTimeout, err := getEnvDuration("TRANSCRIBE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_TIMEOUT: %w", err)
	}

	workers, err := getEnvInt("TRANSCRIBE_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_WORKERS: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	jobTimeout, err := getEnvDuration("JOB_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	jobTTL, err := getEnvDuration("JOB_RESULT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_RESULT_TTL: %w", err)
	}

	advisorTTL, err := getEnvDuration("ADVISOR_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid ADVISOR_CACHE_TTL: %w", err)
	}

	apiKey := getEnv("API_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			MaxUploadBytes: int64(maxUpload),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			APIKey:           apiKey,
			BaseURL:          getEnv("LLM_BASE_URL", "https://integrate.api.nvidia.com/v1"),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "meta/llama-3.1-405b-instruct"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			FallbackModel:    getEnv("LLM_FALLBACK_MODEL", "claude-3-haiku-20240307"),
		},
		Vision: VisionConfig{
			APIKey:  getEnv("API_KEY2", ""),
			BaseURL: getEnv("VISION_BASE_URL", "https://integrate.api.nvidia.com/v1"),
			Model:   getEnv("VISION_MODEL", "microsoft/phi-3.5-vision-instruct"),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "riva"),
			ClientBin:     getEnv("STT_CLIENT_BIN", "python"),
			ClientScript:  getEnv("STT_CLIENT_SCRIPT", "python-clients/scripts/asr/transcribe_file.py"),
			Server:        getEnv("STT_SERVER", "grpc.nvcf.nvidia.com:443"),
			UseSSL:        useSSL,
			FunctionID:    getEnv("STT_FUNCTION_ID", "d8dd4e9b-fbf5-4fb0-9dba-8cf436c8d965"),
			APIKey:        apiKey,
			LanguageCode:  getEnv("STT_LANGUAGE_CODE", "en-US"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		Transcribe: TranscribeConfig{
			UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
			FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
			ConvertTimeout:    convertTimeout,
			TranscribeTimeout: transcribeTimeout,
			Workers:           workers,
		},
		Queue: QueueConfig{
			Concurrency:  concurrency,
			JobTimeout:   jobTimeout,
			JobResultTTL: jobTTL,
		},
		Cache: CacheConfig{
			AdvisorTTL: advisorTTL,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports credentials the configured backends cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if c.STT.Backend == "openai" && c.STT.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
