package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is only acceptable outside production.
const DevJWTSecret = "dhadmin_dev_secret_change_me"

// Config stores the application configuration.
type Config struct {
	HTTPAddr string
	AppEnv   string // development, production

	// 数据库配置
	DBDriver   string // mysql, postgres, sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite 文件路径

	// 会话令牌
	JWTSecret     string
	TokenTTL      time.Duration
	TokenDenylist bool // 登出时通过 Redis 吊销令牌

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置，Endpoint 为空时不启用背景素材上传
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// RabbitMQ，为空时不发布配置变更事件
	AMQPURL string

	LoginRate  float64 // 每个客户端IP每秒允许的登录请求
	LoginBurst int

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from the .env file in the working directory (if any)
// and the process environment.
func Load() *Config {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit env file. godotenv never overrides
// variables that are already set.
func LoadFrom(envFile string) *Config {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // 密码不设默认值
		DBName:         getEnv("DB_NAME", "dhadmin"),
		DBPath:         getEnv("DB_PATH", "dhadmin.db"),
		JWTSecret:      getEnv("JWT_SECRET", DevJWTSecret),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 30*24*time.Hour),
		TokenDenylist:  getEnvBool("TOKEN_DENYLIST", false),
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "dhadmin"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		AMQPURL:        getEnv("AMQP_URL", ""),
		LoginRate:      getEnvFloat("LOGIN_RATE", 5),
		LoginBurst:     getEnvInt("LOGIN_BURST", 10),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.New("DB_DRIVER must be one of mysql, postgres, sqlite")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		return errors.New("LOGIN_RATE and LOGIN_BURST must be positive")
	}
	return nil
}
