package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Pipeline    Pipeline      `yaml:"pipeline"`
	Transcriber Transcriber   `yaml:"transcriber"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	QueueName    string `json:"queue_name"`
	RoutingKey   string `json:"routing_key"`
	Kind         string `json:"kind"`
}

// Pipeline holds the retry/timeout knobs of the media pipeline. All of
// them can be overridden through FEEDBACK_MEDIA_* environment variables.
type Pipeline struct {
	MaxRetries         int           `yaml:"max_retries"`
	RetryBackoffBase   time.Duration `yaml:"retry_backoff_base"`
	ProcessingTimeout  time.Duration `yaml:"processing_timeout"`
	NormalizedLanguage string        `yaml:"normalized_language"`
	DefaultBatchLimit  int           `yaml:"default_batch_limit"`
	OverFetchFactor    int           `yaml:"over_fetch_factor"`
}

type Transcriber struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	TranscriptionModel string        `yaml:"transcription_model"`
	CompletionModel    string        `yaml:"completion_model"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.retry_backoff_base_seconds", 60)
	viper.SetDefault("pipeline.processing_timeout_seconds", 900)
	viper.SetDefault("pipeline.normalized_language", "en")
	viper.SetDefault("pipeline.default_batch_limit", 10)
	viper.SetDefault("pipeline.over_fetch_factor", 5)
	viper.SetDefault("transcriber.transcription_model", "whisper-1")
	viper.SetDefault("transcriber.completion_model", "gpt-4o-mini")
	viper.SetDefault("transcriber.request_timeout_seconds", 120)

	_ = viper.BindEnv("pipeline.max_retries", "FEEDBACK_MEDIA_MAX_RETRIES")
	_ = viper.BindEnv("pipeline.retry_backoff_base_seconds", "FEEDBACK_MEDIA_RETRY_BACKOFF_BASE_SECONDS")
	_ = viper.BindEnv("pipeline.processing_timeout_seconds", "FEEDBACK_MEDIA_PROCESSING_TIMEOUT_SECONDS")
	_ = viper.BindEnv("pipeline.normalized_language", "FEEDBACK_MEDIA_NORMALIZED_LANGUAGE")
	_ = viper.BindEnv("transcriber.api_key", "TRANSCRIBER_API_KEY")
	_ = viper.BindEnv("transcriber.base_url", "TRANSCRIBER_BASE_URL")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		Kind:         viper.GetString("rabbitmq_kind"),
		ExchangeName: "feedback_media_exchange",
		QueueName:    "feedback_media_process_queue",
		RoutingKey:   "feedback_media.process",
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Pipeline: Pipeline{
			MaxRetries:         viper.GetInt("pipeline.max_retries"),
			RetryBackoffBase:   time.Duration(viper.GetInt("pipeline.retry_backoff_base_seconds")) * time.Second,
			ProcessingTimeout:  time.Duration(viper.GetInt("pipeline.processing_timeout_seconds")) * time.Second,
			NormalizedLanguage: viper.GetString("pipeline.normalized_language"),
			DefaultBatchLimit:  viper.GetInt("pipeline.default_batch_limit"),
			OverFetchFactor:    viper.GetInt("pipeline.over_fetch_factor"),
		},
		Transcriber: Transcriber{
			APIKey:             viper.GetString("transcriber.api_key"),
			BaseURL:            viper.GetString("transcriber.base_url"),
			TranscriptionModel: viper.GetString("transcriber.transcription_model"),
			CompletionModel:    viper.GetString("transcriber.completion_model"),
			RequestTimeout:     time.Duration(viper.GetInt("transcriber.request_timeout_seconds")) * time.Second,
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
