// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir    string
	DataDir      string
	ModelDir     string
	ProductsFile string
}

// StorageConfig selects the backend holding trained models.
type StorageConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type ForecastConfig struct {
	Engine              string
	DefaultHorizon      int
	HoldoutDays         int
	MinEvaluationPoints int
	TrainWorkers        int
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 60)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 120)
		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "dairyplan")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
		viper.SetDefault("APP_DATA_DIR", "./data/output")
		viper.SetDefault("APP_MODEL_DIR", "./models")
		viper.SetDefault("APP_PRODUCTS_FILE", "")
		viper.SetDefault("STORAGE_BACKEND", "local")
		viper.SetDefault("STORAGE_REGION", "us-east-1")
		viper.SetDefault("STORAGE_PREFIX", "models/")
		viper.SetDefault("STORAGE_USE_SSL", true)
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_FORECAST_TTL_SECONDS", 300)
		viper.SetDefault("FORECAST_ENGINE", "forecaster")
		viper.SetDefault("FORECAST_DEFAULT_HORIZON", 30)
		viper.SetDefault("FORECAST_HOLDOUT_DAYS", 30)
		viper.SetDefault("FORECAST_MIN_EVALUATION_POINTS", 60)
		viper.SetDefault("FORECAST_TRAIN_WORKERS", 1)

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper(viper.GetViper())
	})

	return instance
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir:    v.GetString("APP_UPLOAD_DIR"),
			DataDir:      v.GetString("APP_DATA_DIR"),
			ModelDir:     v.GetString("APP_MODEL_DIR"),
			ProductsFile: v.GetString("APP_PRODUCTS_FILE"),
		},
		Storage: StorageConfig{
			Backend:   v.GetString("STORAGE_BACKEND"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			Engine:              v.GetString("FORECAST_ENGINE"),
			DefaultHorizon:      v.GetInt("FORECAST_DEFAULT_HORIZON"),
			HoldoutDays:         v.GetInt("FORECAST_HOLDOUT_DAYS"),
			MinEvaluationPoints: v.GetInt("FORECAST_MIN_EVALUATION_POINTS"),
			TrainWorkers:        v.GetInt("FORECAST_TRAIN_WORKERS"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
