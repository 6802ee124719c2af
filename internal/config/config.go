package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

type Config struct {
	Port             string        `env:"PORT,default=8083" validate:"required,numeric"`
	DatabaseDSN      string        `env:"DB_DSN,required=true" validate:"required"`
	MessageStore     string        `env:"MESSAGE_STORE,default=postgres" validate:"oneof=postgres badger"`
	BadgerPath       string        `env:"BADGER_PATH,default=./data/messages" validate:"required_if=MessageStore badger"`
	JWTSecret        string        `env:"JWT_SECRET" validate:"required_without=AuthGRPCAddr"`
	AuthGRPCAddr     string        `env:"AUTH_GRPC_ADDR"`
	AMQPURL          string        `env:"AMQP_URL"`
	AMQPExchange     string        `env:"AMQP_EXCHANGE,default=room-chat.events" validate:"required"`
	AuditRoutingKey  string        `env:"AUDIT_ROUTING_KEY,default=audit.room-chat" validate:"required"`
	ServiceName      string        `env:"SERVICE_NAME,default=room-chat" validate:"required"`
	Environment      string        `env:"ENVIRONMENT,default=local"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SendQueueSize    int           `env:"SEND_QUEUE_SIZE,default=64" validate:"min=1"`
	ConnectionBuffer int           `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"min=1"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT,default=10s" validate:"min=1ms"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH,default=4000" validate:"min=1"`
	DebugRoutes      bool          `env:"DEBUG_ROUTES,default=false"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s" validate:"min=1ms"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
