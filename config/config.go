package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"

	// DotenvFile is read from the working directory when present.
	DotenvFile = "config.env"
	// ConfigPathEnv names an optional YAML file.
	ConfigPathEnv = "DRAWROOM_CONFIG"
)

type Config struct {
	DevMode          bool     `yaml:"dev_mode"`
	HostPort         string   `yaml:"host_port"`
	JWTSecret        string   `yaml:"jwt_secret"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	StoreBackend     string   `yaml:"store_backend"`
	DynamoDBEndpoint string   `yaml:"dynamodb_endpoint"`
	DynamoDBTable    string   `yaml:"dynamodb_table"`
	PostgresDSN      string   `yaml:"postgres_dsn"`
	RedisEndpoint    string   `yaml:"redis_endpoint"`
	SQSEndpoint      string   `yaml:"sqs_endpoint"`
	ClearRoomQueue   string   `yaml:"clear_room_queue"`
}

func Defaults() Config {
	return Config{
		HostPort:      "8080",
		StoreBackend:  StoreDynamo,
		DynamoDBTable: "Drawroom",
	}
}

// Load layers defaults, the YAML file named by DRAWROOM_CONFIG, config.env and
// the process environment, later sources winning.
func Load() (Config, error) {
	return LoadFrom(os.Getenv(ConfigPathEnv), DotenvFile, os.LookupEnv)
}

// LoadFrom is Load with explicit sources. Empty paths are skipped, as is a
// dotenv file that does not exist.
func LoadFrom(yamlPath, dotenvPath string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	dotenv := map[string]string{}
	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DEV_MODE"); ok {
		devMode, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEV_MODE: %w", err)
		}
		cfg.DevMode = devMode
	}

	strs := map[string]*string{
		"HOST_PORT":         &cfg.HostPort,
		"JWT_SECRET":        &cfg.JWTSecret,
		"STORE_BACKEND":     &cfg.StoreBackend,
		"DYNAMODB_ENDPOINT": &cfg.DynamoDBEndpoint,
		"DYNAMODB_TABLE":    &cfg.DynamoDBTable,
		"POSTGRES_DSN":      &cfg.PostgresDSN,
		"REDIS_ENDPOINT":    &cfg.RedisEndpoint,
		"SQS_ENDPOINT":      &cfg.SQSEndpoint,
		"CLEAR_ROOM_QUEUE":  &cfg.ClearRoomQueue,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := cfg.JWTSecretBytes(); err != nil {
		return err
	}

	switch cfg.StoreBackend {
	case StoreDynamo:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return nil
}

// JWTSecretBytes decodes the base64 signing secret.
func (cfg Config) JWTSecretBytes() ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is not valid base64: %w", err)
	}
	return secret, nil
}

// OriginAllowed reports whether a websocket Origin header is accepted. An
// empty allow list accepts any origin.
func (cfg Config) OriginAllowed(origin string) bool {
	if len(cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}
