// Package config loads process configuration from a YAML file over built-in
// defaults. A .env file, if present, is first loaded into the process
// environment so local development doesn't need exported shell variables;
// Load itself reads no environment variables, so they do not override any
// value in Config.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full set of knobs the event core needs from its
// environment. Everything outside of this (HTTP ports, MQTT credentials,
// PDP endpoints) belongs to the transport layer, not the core.
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	NATS      NATSConfig      `yaml:"nats"`
	Event     EventConfig     `yaml:"event"`
	Retention RetentionConfig `yaml:"retention"`
}

type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxOpenConn int    `yaml:"max_open_conn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type S3Config struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

type NATSConfig struct {
	URL            string `yaml:"url"`
	BackoffInitial int    `yaml:"backoff_initial_ms"`
	BackoffMax     int    `yaml:"backoff_max_ms"`
}

// EventConfig bounds event ingestion.
type EventConfig struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
	MaxListLimit    int `yaml:"max_list_limit"`
}

// RetentionConfig parametrizes the vacuum sweep (§4.5).
type RetentionConfig struct {
	MaxHistorySize     int `yaml:"max_history_size"`
	MaxHistoryLifetime int `yaml:"max_history_lifetime_secs"`
	MaxDeletedLifetime int `yaml:"max_deleted_lifetime_secs"`
}

// Default returns the baseline configuration used when no file is present,
// matching the constants the specification calls out (100-event list cap,
// etc).
func Default() Config {
	return Config{
		Postgres: PostgresConfig{DSN: "postgres://localhost:5432/event?sslmode=disable", MaxOpenConn: 10},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		S3:       S3Config{Region: "us-east-1", Bucket: "event-dumps"},
		NATS:     NATSConfig{URL: "nats://localhost:4222", BackoffInitial: 200, BackoffMax: 30_000},
		Event:    EventConfig{MaxPayloadBytes: 1 << 20, MaxListLimit: 100},
		Retention: RetentionConfig{
			MaxHistorySize:     1000,
			MaxHistoryLifetime: 30 * 24 * 3600,
			MaxDeletedLifetime: 7 * 24 * 3600,
		},
	}
}

// Load reads .env (if present) then decodes the YAML file at path over the
// defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // optional; local dev convenience only

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}
