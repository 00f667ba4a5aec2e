package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	ERP       ERPConfig       `mapstructure:"erp"`
	Hacienda  HaciendaConfig  `mapstructure:"hacienda"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at the embedded per-module SQLite files.
type DatabaseConfig struct {
	Dir           string `mapstructure:"dir"`
	WarehouseFile string `mapstructure:"warehouse_file"`
}

// Path returns the full path of the warehouse database file.
func (c DatabaseConfig) Path() string {
	file := c.WarehouseFile
	if file == "" {
		file = "warehouse.db"
	}
	dir := c.Dir
	if dir == "" {
		dir = "./data"
	}
	return dir + string(os.PathSeparator) + file
}

// WarehouseConfig holds module-level defaults. The unit-code prefix and
// counter live in the warehouse_config table, not here; these are only the
// bootstrap values used when that table is empty.
type WarehouseConfig struct {
	UnitCodePrefix string `mapstructure:"unit_code_prefix"`
	StrictScanMode bool   `mapstructure:"strict_scan_mode"`
	PathSeparator  string `mapstructure:"path_separator"`
}

type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	RefreshTokenExpire time.Duration `mapstructure:"refresh_token_expire"`
	Issuer             string        `mapstructure:"issuer"`
}

type ERPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HaciendaConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ExchangeRateURL string        `mapstructure:"exchange_rate_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type MailConfig struct {
	SendgridKey string `mapstructure:"sendgrid_key"`
	FromName    string `mapstructure:"from_name"`
	FromAddress string `mapstructure:"from_address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.dir", "./data")
	v.SetDefault("database.warehouse_file", "warehouse.db")
	v.SetDefault("warehouse.unit_code_prefix", "CLIC")
	v.SetDefault("warehouse.path_separator", " / ")
	v.SetDefault("erp.timeout", 30*time.Second)
	v.SetDefault("hacienda.timeout", 15*time.Second)
	v.SetDefault("hacienda.cache_ttl", 6*time.Hour)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, rely on env vars and defaults
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Database
	v.BindEnv("database.dir", "DB_DIR")
	v.BindEnv("database.warehouse_file", "DB_WAREHOUSE_FILE")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// ERP
	v.BindEnv("erp.base_url", "ERP_BASE_URL")
	v.BindEnv("erp.api_key", "ERP_API_KEY")

	// Hacienda
	v.BindEnv("hacienda.base_url", "HACIENDA_BASE_URL")
	v.BindEnv("hacienda.exchange_rate_url", "HACIENDA_EXCHANGE_RATE_URL")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// Mail
	v.BindEnv("mail.sendgrid_key", "SENDGRID_API_KEY")
	v.BindEnv("mail.from_address", "MAIL_FROM_ADDRESS")
}

// GetEnvOrDefault returns the environment variable or a fallback.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
