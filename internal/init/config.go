package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode         string
	ServerAddr   string
	UploadDir    string
	StaticDir    string
	CookieSecure bool

	// Auth
	JWTSecret  string
	SessionTTL time.Duration

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// SQLite
	DBPath string

	// Kafka
	EventsEnabled  bool
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	// A local .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("STATIC_DIR", "./static")
	viper.SetDefault("UPLOAD_DIR", "./static/uploads")
	viper.SetDefault("COOKIE_SECURE", false)

	viper.SetDefault("JWT_SECRET", "change-me")
	viper.SetDefault("SESSION_TTL", "24h")

	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 30)

	viper.SetDefault("DB_PATH", "zensocial.db")

	viper.SetDefault("EVENTS_ENABLED", false)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "zensocial-interactions")
	viper.SetDefault("KAFKA_GROUP_ID", "notification-workers")
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:           viper.GetString("MODE"),
		ServerAddr:     viper.GetString("SERVER_ADDR"),
		StaticDir:      viper.GetString("STATIC_DIR"),
		UploadDir:      viper.GetString("UPLOAD_DIR"),
		CookieSecure:   viper.GetBool("COOKIE_SECURE"),
		JWTSecret:      viper.GetString("JWT_SECRET"),
		SessionTTL:     parseDuration(viper.GetString("SESSION_TTL"), 24*time.Hour),
		RateLimitRPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: viper.GetInt("RATE_LIMIT_BURST"),
		DBPath:         viper.GetString("DB_PATH"),
		EventsEnabled:  viper.GetBool("EVENTS_ENABLED"),
		KafkaBroker:    viper.GetString("KAFKA_BROKER"),
		KafkaTopic:     viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:   viper.GetString("KAFKA_GROUP_ID"),
		KafkaReadTO:    parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:   parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
