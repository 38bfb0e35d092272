package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Followup FollowupConfig `mapstructure:"followup"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type WhatsAppConfig struct {
	AuthDBPath     string        `mapstructure:"auth_db_path"`
	AdminJID       string        `mapstructure:"admin_jid"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FollowupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Message  string        `mapstructure:"message"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("whatsapp.auth_db_path", "auth/whatsapp.db")
	v.SetDefault("whatsapp.reconnect_delay", 5*time.Second)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("ai.base_url", "http://127.0.0.1:8000")
	v.SetDefault("ai.timeout", 15*time.Second)
	v.SetDefault("followup.interval", 24*time.Hour)
	v.SetDefault("http.addr", ":3000")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if adminJID := v.GetString("ADMIN_JID"); adminJID != "" {
		config.WhatsApp.AdminJID = adminJID
	}

	if baseURL := v.GetString("AI_BASE_URL"); baseURL != "" {
		config.AI.BaseURL = baseURL
	}

	return &config, nil
}
