package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Output   OutputConfig
	Engine   EngineConfig
	Ollama   OllamaConfig
	Database DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Kafka    KafkaConfig
	Queue    QueueConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Экспорт результатов
const (
	ExportLocal = "local"
	ExportS3    = "s3"
	ExportNone  = "none"
)

type OutputConfig struct {
	// Каталог, куда движок пишет результаты
	RootDir string `env:"OUTPUT_ROOT_DIR" envDefault:"./data/output"`
	// Каталог пользовательских загрузок для локального экспорта
	DownloadsDir string `env:"OUTPUT_DOWNLOADS_DIR" envDefault:"./data/downloads"`
	// local, s3 или none
	ExportBackend string `env:"OUTPUT_EXPORT_BACKEND" envDefault:"local"`
}

type EngineConfig struct {
	RenderDPI   float64 `env:"ENGINE_RENDER_DPI" envDefault:"150"`
	JPEGQuality int     `env:"ENGINE_JPEG_QUALITY" envDefault:"90"`
}

type OllamaConfig struct {
	Enabled        bool          `env:"OLLAMA_ENABLED" envDefault:"false"`
	Host           string        `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	Model          string        `env:"OLLAMA_MODEL" envDefault:"qwen3-vl"`
	RequestTimeout time.Duration `env:"OLLAMA_REQUEST_TIMEOUT" envDefault:"5m"`
	// Скачивать модель, если её нет
	PullModel bool `env:"OLLAMA_PULL_MODEL" envDefault:"true"`
}

type DatabaseConfig struct {
	Enabled         bool          `env:"DB_ENABLED" envDefault:"false"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"docconverter"`
	Password        string        `env:"DB_PASSWORD" envDefault:"secret"`
	Name            string        `env:"DB_NAME" envDefault:"docconverter"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	// Применять migrations/*.sql при старте
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Redis нужен удалённой очереди asynq и кэшу статусов
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	// Время жизни статуса задачи в кэше
	StatusTTL time.Duration `env:"REDIS_STATUS_TTL" envDefault:"24h"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type S3Config struct {
	Endpoint  string        `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string        `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string        `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string        `env:"S3_BUCKET" envDefault:"conversions"`
	UseSSL    bool          `env:"S3_USE_SSL" envDefault:"false"`
	URLExpiry time.Duration `env:"S3_URL_EXPIRY" envDefault:"24h"`
}

type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"conversion-events"`
}

type QueueConfig struct {
	// Имя очереди asynq
	Name       string `env:"QUEUE_NAME" envDefault:"conversions"`
	MaxRetries int    `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	// Движок не реентерабелен, поэтому по умолчанию одна задача
	Concurrency int           `env:"QUEUE_CONCURRENCY" envDefault:"1"`
	Timeout     time.Duration `env:"QUEUE_TASK_TIMEOUT" envDefault:"30m"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// json или console
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Output.ExportBackend {
	case ExportLocal, ExportS3, ExportNone:
	default:
		return fmt.Errorf("invalid OUTPUT_EXPORT_BACKEND %q", c.Output.ExportBackend)
	}
	if c.Output.RootDir == "" {
		return fmt.Errorf("OUTPUT_ROOT_DIR cannot be empty")
	}
	if c.Engine.RenderDPI <= 0 {
		return fmt.Errorf("ENGINE_RENDER_DPI must be positive")
	}
	return nil
}
