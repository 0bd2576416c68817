package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName        string
	HTTPPort           string
	PostgresDSN        string
	KafkaBrokers       []string
	NotificationsTopic string

	PrecheckURL     string
	PrecheckTimeout time.Duration

	ApprovalsToAccept   int
	RejectionsToDecline int

	RelayBatchSize          int
	EnableNotificationRelay bool
}

func Load() (Config, error) {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "tiltcheck"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("NOTIFICATIONS_TOPIC")
	if topic == "" {
		topic = "score-validation.notifications"
	}

	return Config{
		ServiceName:        service,
		HTTPPort:           port,
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		KafkaBrokers:       brokers,
		NotificationsTopic: topic,

		PrecheckURL:     os.Getenv("PRECHECK_URL"),
		PrecheckTimeout: time.Duration(envInt("PRECHECK_TIMEOUT_MS", 3000)) * time.Millisecond,

		ApprovalsToAccept:   envInt("APPROVALS_TO_ACCEPT", 2),
		RejectionsToDecline: envInt("REJECTIONS_TO_DECLINE", 2),

		RelayBatchSize:          envInt("RELAY_BATCH_SIZE", 100),
		EnableNotificationRelay: envBool("ENABLE_NOTIFICATION_RELAY", true),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
