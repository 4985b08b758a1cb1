package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SecurityConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

// ComfyConfig points at the external image-synthesis engine. PollInterval
// and PollTimeout bound the history poll loop.
type ComfyConfig struct {
	BaseURL         string
	APIKey          string
	RequestTimeout  time.Duration
	UploadTimeout   time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
}

// WorkflowConfig names the job-graph template files and the node ids of the
// prompt/reference slots inside them. Empty paths fall back to the embedded
// templates.
type WorkflowConfig struct {
	TextToImagePath string
	FaceSwapPath    string
	PositiveNode    string
	NegativeNode    string
	ReferenceNode   string
}

type RateLimitConfig struct {
	GenerateLimit  int
	GenerateWindow time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Comfy            ComfyConfig
	Workflow         WorkflowConfig
	RateLimit        RateLimitConfig
	MaxUploadBytes   int64
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("COMFYGATE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "6m")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "comfygate-resources")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtttl", "24h")

	v.SetDefault("comfy.baseurl", "http://127.0.0.1:8188")
	v.SetDefault("comfy.requesttimeout", "60s")
	v.SetDefault("comfy.uploadtimeout", "30s")
	v.SetDefault("comfy.downloadtimeout", "30s")
	v.SetDefault("comfy.pollinterval", "2s")
	v.SetDefault("comfy.polltimeout", "300s")

	v.SetDefault("workflow.positivenode", "8")
	v.SetDefault("workflow.negativenode", "11")
	v.SetDefault("workflow.referencenode", "56")

	v.SetDefault("ratelimit.generatelimit", 10)
	v.SetDefault("ratelimit.generatewindow", "1m")

	v.SetDefault("maxuploadbytes", 10*1024*1024)
}
