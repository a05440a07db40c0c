package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Import run
	Institution      string
	PatientsFile     string
	TreatmentsFile   string
	BatchSize        int
	TreatmentMode    string
	InstitutionsFile string
	SourceEncoding   string
	ImportDir        string

	// Server (normalizer-service)
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis run lock
	ImportLockEnabled bool
	ImportLockTTL     time.Duration
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	ImportEventsTopic   string
	ImportDLQTopic      string
	ImportRequestsTopic string
}

func Load() *Config {
	return &Config{
		Institution:      getEnv("INSTITUTION", "hospital1"),
		PatientsFile:     getEnv("PATIENTS_FILE", ""),
		TreatmentsFile:   getEnv("TREATMENTS_FILE", ""),
		BatchSize:        getIntEnv("IMPORT_BATCH_SIZE", 1024),
		TreatmentMode:    getEnv("TREATMENT_MODE", "append"),
		InstitutionsFile: getEnv("INSTITUTIONS_FILE", ""),
		SourceEncoding:   getEnv("SOURCE_ENCODING", "utf-8"),
		ImportDir:        getEnv("IMPORT_DIR", "/data/imports"),

		ServerPort:     getEnv("SERVER_PORT", "8084"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tailormed"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tailormed"),
		PostgresDB:       getEnv("DB_NAME", "tailormed"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ImportLockEnabled: getBoolEnv("IMPORT_LOCK_ENABLED", false),
		ImportLockTTL:     getDuration("IMPORT_LOCK_TTL", 2*time.Hour),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "hospital-import"),
		ImportEventsTopic:   getEnv("IMPORT_EVENTS_TOPIC", "import-events"),
		ImportDLQTopic:      getEnv("IMPORT_DLQ_TOPIC", "import-dlq"),
		ImportRequestsTopic: getEnv("IMPORT_REQUESTS_TOPIC", "import-requests"),
	}
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
