// Package config provides centralized configuration for all pipeline stages.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	NATS        NATSConfig        `mapstructure:"nats"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Redis       RedisConfig       `mapstructure:"redis"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Extract     ExtractConfig     `mapstructure:"extract"`
	Load        LoadConfig        `mapstructure:"load"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString builds the pgx connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	DedupEnabled bool          `mapstructure:"dedup_enabled"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
}

type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Insecure  bool   `mapstructure:"insecure"`
}

// ExtractConfig carries the bulk-job execution profile. The identifier
// fields are resolved from the environment at invocation start and
// validated by the coordinator before any external call.
type ExtractConfig struct {
	ClusterName    string `mapstructure:"cluster_name"`
	TaskDefinition string `mapstructure:"task_definition"`
	// Subnets is a JSON-encoded list of subnet ids, matching the
	// serialization the provisioning layer injects.
	Subnets       string `mapstructure:"subnets"`
	ContainerName string `mapstructure:"container_name"`
}

type LoadConfig struct {
	TableName      string `mapstructure:"table_name"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// PipelineConfig bounds stage fan-out. MaxConcurrency is the shared
// ceiling applied to the coordinator, task-runner, transformer and
// loader; the observer is never throttled.
type PipelineConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file with environment
// overrides. The original deployment's variable names (CLUSTER_NAME,
// TASK_DEFINITION, SUBNETS, CONTAINER_NAME, TABLE_NAME) are bound
// explicitly so stages keep working under the existing provisioning.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "eventbridge-etl")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "etl")
	v.SetDefault("postgres.password", "etl")
	v.SetDefault("postgres.database", "etl")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.dedup_enabled", false)
	v.SetDefault("redis.dedup_ttl", "24h")

	v.SetDefault("object_store.endpoint", "localhost:9000")
	v.SetDefault("object_store.insecure", true)

	v.SetDefault("load.migrations_path", "migrations")

	// Matches the reserved concurrency the deployment applies to each
	// stage so one upload cannot fan out unbounded.
	v.SetDefault("pipeline.max_concurrency", 2)

	v.SetDefault("metrics.addr", ":9102")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"extract.cluster_name":    "CLUSTER_NAME",
		"extract.task_definition": "TASK_DEFINITION",
		"extract.subnets":         "SUBNETS",
		"extract.container_name":  "CONTAINER_NAME",
		"load.table_name":         "TABLE_NAME",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
