package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "PAYMENTS_"

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Processor ProcessorConfig `koanf:"processor"`
	Retry     RetryConfig     `koanf:"retry"`
	Logger    LoggerConfig    `koanf:"logger"`
	Worker    WorkerConfig    `koanf:"worker"`
	Bus       BusConfig       `koanf:"bus"`
	Redis     RedisConfig     `koanf:"redis"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// ProcessorConfig points at the card processor's charges API.
type ProcessorConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	APIKey        string        `koanf:"api_key" validate:"required"`
	ConnTimeout   time.Duration `koanf:"conn_timeout" validate:"required"`
	ChargeTimeout time.Duration `koanf:"charge_timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type WorkerConfig struct {
	Interval          time.Duration `koanf:"interval" validate:"required"`
	BatchSize         int           `koanf:"batch_size" validate:"required"`
	ReconcileGrace    time.Duration `koanf:"reconcile_grace" validate:"required"`
	MaxReconcileTries int           `koanf:"max_reconcile_tries" validate:"required"`
	OutboxLease       time.Duration `koanf:"outbox_lease" validate:"required"`
	OutboxMaxRetries  int           `koanf:"outbox_max_retries" validate:"required"`
}

// BusConfig selects and configures the event bus driver.
type BusConfig struct {
	Driver            string        `koanf:"driver" validate:"required,oneof=kafka rabbitmq"`
	Brokers           string        `koanf:"brokers"`
	GroupID           string        `koanf:"group_id"`
	RabbitURL         string        `koanf:"rabbit_url"`
	Exchange          string        `koanf:"exchange"`
	Queue             string        `koanf:"queue"`
	HandlerRetries    int           `koanf:"handler_retries" validate:"required,min=1"`
	HandlerRetryDelay time.Duration `koanf:"handler_retry_delay" validate:"required"`
}

// BrokerList splits the comma separated kafka broker list.
func (c BusConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type RedisConfig struct {
	Addr     string        `koanf:"addr" validate:"required"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	DedupTTL time.Duration `koanf:"dedup_ttl" validate:"required"`
}

type WorkflowConfig struct {
	OrderLockTTL   time.Duration `koanf:"order_lock_ttl" validate:"required"`
	Currency       string        `koanf:"currency" validate:"required"`
	RelayGrace     time.Duration `koanf:"relay_grace" validate:"required"`
	PublishBackoff time.Duration `koanf:"publish_backoff" validate:"required"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if mainConfig.Bus.Driver == "kafka" && len(mainConfig.Bus.BrokerList()) == 0 {
		logger.Error("config validation failed", "error", "bus.brokers is required for kafka")
		return nil, errMissingBrokers
	}
	if mainConfig.Bus.Driver == "rabbitmq" && mainConfig.Bus.RabbitURL == "" {
		logger.Error("config validation failed", "error", "bus.rabbit_url is required for rabbitmq")
		return nil, errMissingRabbitURL
	}

	// The reconciler must not see an attempt whose charge may still be in flight.
	if mainConfig.Worker.ReconcileGrace <= mainConfig.Processor.ChargeTimeout {
		logger.Error("config validation failed", "error", "worker.reconcile_grace must exceed processor.charge_timeout",
			"reconcile_grace", mainConfig.Worker.ReconcileGrace,
			"charge_timeout", mainConfig.Processor.ChargeTimeout,
		)
		return nil, errReconcileGraceTooShort
	}

	return mainConfig, nil
}
