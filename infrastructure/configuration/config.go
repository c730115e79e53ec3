package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"event-sync/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	OAuth       OAuth       `json:"oauth"`
	Media       Media       `json:"media"`
	Sync        Sync        `json:"sync"`
}

type App struct {
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey"`
	BaseURL   string `json:"baseURL"` // public base URL for event deep links
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mssql Db `json:"mssql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

// OAuth holds third-party platform OAuth client credentials.
type OAuth struct {
	Facebook OAuthClient `json:"facebook"`
	Google   OAuthClient `json:"google"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
}

// Media configures how event cover images are exposed to external platforms.
// Storage is not public, so adapters mint short-lived signed URLs.
type Media struct {
	BaseURL       string `json:"baseURL"`
	SigningSecret string `json:"signingSecret"`
	URLTTLMinutes int    `json:"urlTTLMinutes"`
}

// Sync configures the synchronization worker pool.
type Sync struct {
	Workers           int    `json:"workers"`
	BatchSize         int    `json:"batchSize"`
	RunTimeoutSeconds int    `json:"runTimeoutSeconds"`
	MaxAttempts       int    `json:"maxAttempts"`
	BackoffMinutes    []int  `json:"backoffMinutes"`
	TokenCipherKey    string `json:"tokenCipherKey"` // base64, 32 bytes once decoded
}

// RunTimeout returns the per-run wall clock limit (default 120s).
func (s Sync) RunTimeout() time.Duration {
	if s.RunTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.RunTimeoutSeconds) * time.Second
}

// Backoff returns the delay before retrying after the given attempt count
// (1-based). The reference schedule is 1, 5, 15 minutes.
func (s Sync) Backoff(attempt int) time.Duration {
	schedule := s.BackoffMinutes
	if len(schedule) == 0 {
		schedule = []int{1, 5, 15}
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(schedule) {
		attempt = len(schedule)
	}
	return time.Duration(schedule[attempt-1]) * time.Minute
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL config via environment variables (Azure SQL in production).
	if v := os.Getenv("MSSQL_DB_NAME"); v != "" && C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = v
	}
	if v := os.Getenv("MSSQL_HOST"); v != "" && C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = v
	}
	if v := os.Getenv("MSSQL_USER"); v != "" && C.Database.Mssql.User == "" {
		C.Database.Mssql.User = v
	}
	if v := os.Getenv("MSSQL_PASSWORD"); v != "" && C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = v
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = "1433"
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides config when provided.
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	if v := os.Getenv("TOKEN_CIPHER_KEY"); v != "" {
		C.Sync.TokenCipherKey = v
	}
	// Port resolution order: APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if C.Sync.Workers <= 0 {
		C.Sync.Workers = 4
	}
	if C.Sync.BatchSize <= 0 {
		C.Sync.BatchSize = 10
	}
	if C.Sync.MaxAttempts <= 0 {
		C.Sync.MaxAttempts = 3
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication and OAuth state signing will fail. Provide SECRET_KEY via environment.")
	}
	if C.Sync.TokenCipherKey == "" {
		logger.GetLogger().Warn("Sync.TokenCipherKey not set; connection tokens cannot be stored. Provide TOKEN_CIPHER_KEY via environment.")
	}
}
