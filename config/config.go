// config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Schema   string `yaml:"schema"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN returns URL when set, otherwise a postgres URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.DBName,
	}
	return u.String()
}

type CredentialsConfig struct {
	// EncryptionKey is passed to get_collar_vendor_credentials for decryption.
	EncryptionKey string `yaml:"encryption_key"`
}

type LotekConfig struct {
	CredentialName string `yaml:"credential_name"`
	URL            string `yaml:"url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	AlertsEnabled  bool   `yaml:"alerts_enabled"`
}

type VectronicConfig struct {
	URL string `yaml:"url"`
}

type ATSConfig struct {
	CredentialName  string `yaml:"credential_name"`
	URL             string `yaml:"url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	LoginFormID     string `yaml:"login_form_id"`
	UsernameFieldID string `yaml:"username_field_id"`
	PasswordFieldID string `yaml:"password_field_id"`
	DownloadDir     string `yaml:"download_dir"`
	ArchiveDir      string `yaml:"archive_dir"`
	DeleteDownloads bool   `yaml:"delete_downloads"`
	SettleDelayStr  string `yaml:"settle_delay"`
	SettleDelay     time.Duration
}

type IngestConfig struct {
	Workers              int    `yaml:"workers"`
	TelemetryLookbackStr string `yaml:"telemetry_lookback"`
	AlertLookbackStr     string `yaml:"alert_lookback"`
	ATSLookbackStr       string `yaml:"ats_lookback"`
	RequestTimeoutStr    string `yaml:"request_timeout"`
	MaxRetries           int    `yaml:"max_retries"`
	PoolDrainRetries     int    `yaml:"pool_drain_retries"`
	PoolDrainIntervalStr string `yaml:"pool_drain_interval"`

	TelemetryLookback time.Duration
	AlertLookback     time.Duration
	ATSLookback       time.Duration
	RequestTimeout    time.Duration
	PoolDrainInterval time.Duration
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	LockTTLStr string `yaml:"lock_ttl"`
	LockTTL    time.Duration
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Lotek       LotekConfig       `yaml:"lotek"`
	Vectronic   VectronicConfig   `yaml:"vectronic"`
	ATS         ATSConfig         `yaml:"ats"`
	Ingest      IngestConfig      `yaml:"ingest"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Redis       RedisConfig       `yaml:"redis"`
	LogLevel    string            `yaml:"log_level"`
}

// Default returns the configuration used when neither a file nor the
// environment set a value.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Host: "localhost", Port: "5432", Schema: "bctw", MaxConns: 10},
		Lotek:    LotekConfig{AlertsEnabled: true},
		ATS: ATSConfig{
			LoginFormID:     "#ctl01",
			UsernameFieldID: "#username",
			PasswordFieldID: "#password",
			DownloadDir:     "./ats-downloads",
			ArchiveDir:      "./ats-archive",
			SettleDelayStr:  "5s",
		},
		Ingest: IngestConfig{
			Workers:              10,
			TelemetryLookbackStr: "168h",
			AlertLookbackStr:     "168h",
			ATSLookbackStr:       "24h",
			RequestTimeoutStr:    "30s",
			MaxRetries:           2,
			PoolDrainRetries:     50,
			PoolDrainIntervalStr: "3s",
		},
		MQTT:     MQTTConfig{ClientID: "collar-collector", TopicPrefix: "telemetry"},
		Redis:    RedisConfig{LockTTLStr: "30m"},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order. A .env file in the working directory is
// loaded first when present.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.parseDurations(); err != nil {
		return Config{}, err
	}
	if cfg.Ingest.Workers < 1 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Database.MaxConns < 1 {
		cfg.Database.MaxConns = 10
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envString("HTTP_PORT", cfg.Server.Port)

	cfg.Database.URL = envString("POSTGRES_URL", cfg.Database.URL)
	cfg.Database.Host = envString("POSTGRES_SERVER_HOST", cfg.Database.Host)
	cfg.Database.Port = envString("POSTGRES_SERVER_PORT", cfg.Database.Port)
	cfg.Database.User = envString("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = envString("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = envString("POSTGRES_DB", cfg.Database.DBName)
	cfg.Database.Schema = envString("PG_SCHEMA", cfg.Database.Schema)
	cfg.Database.MaxConns = int32(envInt("PG_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Credentials.EncryptionKey = envString("VENDOR_API_CREDENTIALS_KEY", cfg.Credentials.EncryptionKey)

	cfg.Lotek.CredentialName = envString("LOTEK_API_CREDENTIAL_NAME", cfg.Lotek.CredentialName)
	cfg.Lotek.URL = envString("LOTEK_API_URL", cfg.Lotek.URL)
	cfg.Lotek.Username = envString("LOTEK_USER", cfg.Lotek.Username)
	cfg.Lotek.Password = envString("LOTEK_PASS", cfg.Lotek.Password)
	cfg.Lotek.AlertsEnabled = envBool("LOTEK_ALERTS_ENABLED", cfg.Lotek.AlertsEnabled)

	cfg.Vectronic.URL = envString("VECTRONICS_URL", cfg.Vectronic.URL)

	cfg.ATS.CredentialName = envString("ATS_API_CREDENTIAL_NAME", cfg.ATS.CredentialName)
	cfg.ATS.URL = envString("ATS_URL", cfg.ATS.URL)
	cfg.ATS.Username = envString("ATS_USER", cfg.ATS.Username)
	cfg.ATS.Password = envString("ATS_PASS", cfg.ATS.Password)
	cfg.ATS.LoginFormID = envString("ATS_LOGIN_FORM_ID", cfg.ATS.LoginFormID)
	cfg.ATS.UsernameFieldID = envString("ATS_USERNAME_FIELD_ID", cfg.ATS.UsernameFieldID)
	cfg.ATS.PasswordFieldID = envString("ATS_PASSWORD_FIELD_ID", cfg.ATS.PasswordFieldID)
	cfg.ATS.DownloadDir = envString("ATS_DOWNLOAD_DIR", cfg.ATS.DownloadDir)
	cfg.ATS.ArchiveDir = envString("ATS_ARCHIVE_DIR", cfg.ATS.ArchiveDir)
	cfg.ATS.DeleteDownloads = envBool("DELETE_DOWNLOADS", cfg.ATS.DeleteDownloads)
	cfg.ATS.SettleDelayStr = envString("ATS_SETTLE_DELAY", cfg.ATS.SettleDelayStr)

	cfg.Ingest.Workers = envInt("WORKERS", cfg.Ingest.Workers)
	cfg.Ingest.TelemetryLookbackStr = envString("TELEMETRY_LOOKBACK", cfg.Ingest.TelemetryLookbackStr)
	cfg.Ingest.AlertLookbackStr = envString("ALERT_LOOKBACK", cfg.Ingest.AlertLookbackStr)
	cfg.Ingest.ATSLookbackStr = envString("ATS_LOOKBACK", cfg.Ingest.ATSLookbackStr)
	cfg.Ingest.RequestTimeoutStr = envString("REQUEST_TIMEOUT", cfg.Ingest.RequestTimeoutStr)
	cfg.Ingest.MaxRetries = envInt("FETCH_MAX_RETRIES", cfg.Ingest.MaxRetries)
	cfg.Ingest.PoolDrainRetries = envInt("POOL_DRAIN_RETRIES", cfg.Ingest.PoolDrainRetries)
	cfg.Ingest.PoolDrainIntervalStr = envString("POOL_DRAIN_INTERVAL", cfg.Ingest.PoolDrainIntervalStr)

	cfg.MQTT.Broker = envString("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = envString("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.TopicPrefix = envString("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.LockTTLStr = envString("RUN_LOCK_TTL", cfg.Redis.LockTTLStr)

	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"ats.settle_delay", c.ATS.SettleDelayStr, &c.ATS.SettleDelay, 5 * time.Second},
		{"ingest.telemetry_lookback", c.Ingest.TelemetryLookbackStr, &c.Ingest.TelemetryLookback, 7 * 24 * time.Hour},
		{"ingest.alert_lookback", c.Ingest.AlertLookbackStr, &c.Ingest.AlertLookback, 7 * 24 * time.Hour},
		{"ingest.ats_lookback", c.Ingest.ATSLookbackStr, &c.Ingest.ATSLookback, 24 * time.Hour},
		{"ingest.request_timeout", c.Ingest.RequestTimeoutStr, &c.Ingest.RequestTimeout, 30 * time.Second},
		{"ingest.pool_drain_interval", c.Ingest.PoolDrainIntervalStr, &c.Ingest.PoolDrainInterval, 3 * time.Second},
		{"redis.lock_ttl", c.Redis.LockTTLStr, &c.Redis.LockTTL, 30 * time.Minute},
	}
	for _, f := range fields {
		if f.raw == "" {
			*f.dst = f.def
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
