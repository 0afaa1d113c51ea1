package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/validator"
)

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

type JudgeServiceConfig struct {
	BaseURL         string        `mapstructure:"base_url"         validate:"required,url"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout" validate:"required"`
}

type AnalysisConfig struct {
	BatchSize   int `mapstructure:"batch_size"   validate:"required,gt=0"`
	PastRemarks int `mapstructure:"past_remarks" validate:"gte=0"`
}

type AzureQueueConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	URL         string `mapstructure:"url"`
	Name        string `mapstructure:"name"`
}

type KafkaQueueConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type QueueConfig struct {
	Backend string           `mapstructure:"backend" validate:"required,oneof=azure kafka"`
	Azure   AzureQueueConfig `mapstructure:"azure"`
	Kafka   KafkaQueueConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type MinioArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type AzureArchiveConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	URL         string `mapstructure:"url"`
	Container   string `mapstructure:"container"`
}

type ArchiveConfig struct {
	// empty disables archiving
	Backend string             `mapstructure:"backend" validate:"omitempty,oneof=minio azure"`
	Minio   MinioArchiveConfig `mapstructure:"minio"`
	Azure   AzureArchiveConfig `mapstructure:"azure"`
}

// Submission store server. See judgestore.yaml for an example.
type Config struct {
	Postgres             *PostgresConfig     `mapstructure:"postgres"               validate:"required"`
	Logging              *LoggingConfig      `mapstructure:"logging"                validate:"required"`
	Judge                *JudgeServiceConfig `mapstructure:"judge"                  validate:"required"`
	Analysis             *AnalysisConfig     `mapstructure:"analysis"               validate:"required"`
	Queue                *QueueConfig        `mapstructure:"queue"                  validate:"required"`
	Redis                RedisConfig         `mapstructure:"redis"`
	Archive              ArchiveConfig       `mapstructure:"archive"`
	ListenAddress        string              `mapstructure:"listen_address"         validate:"required"`
	GracefulShutdownSecs int64               `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	UseOTLP                    string = "logging.use_otlp"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	ListenAddress              string = "listen_address"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	JudgeBaseURL               string = "judge.base_url"
	JudgeDispatchTimeout       string = "judge.dispatch_timeout"
	AnalysisBatchSize          string = "analysis.batch_size"
	AnalysisPastRemarks        string = "analysis.past_remarks"
	QueueBackend               string = "queue.backend"
	QueueAzureAccountName      string = "queue.azure.account_name"
	QueueAzureAccountKey       string = "queue.azure.account_key" // #nosec
	QueueAzureURL              string = "queue.azure.url"
	QueueAzureName             string = "queue.azure.name"
	QueueKafkaBrokers          string = "queue.kafka.brokers"
	QueueKafkaTopic            string = "queue.kafka.topic"
	RedisAddress               string = "redis.address"
	RedisPassword              string = "redis.password" // #nosec
	ArchiveBackend             string = "archive.backend"
	ArchiveMinioAccessKeyID    string = "archive.minio.access_key_id"
	ArchiveMinioSecret         string = "archive.minio.secret_access_key" // #nosec
	ArchiveMinioSSLEnabled     string = "archive.minio.ssl_enabled"
	ArchiveAzureAccountKey     string = "archive.azure.account_key" // #nosec
	ArchiveAzureContainer      string = "archive.azure.container"

	StoreEnvPrefix  string = "judgestore"
	StoreConfigName string = "judgestore"
)

// viper instance with the shared file lookup and env overlay
func newViper(name string, envPrefix string, secrets ...string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(name)
	v.AddConfigPath(fmt.Sprintf("/etc/%s/", name))
	v.AddConfigPath(".")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range secrets {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// reads the file if present, then unmarshals and validates into out
func load(v *viper.Viper, out any) error {
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, everything can come from env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return err
	}

	valid := validator.Create()
	return valid.Validate(out)
}

var configReady = false
var config Config

// Loads the store config once per process
func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	loaded, err := LoadStore()
	if err != nil {
		return nil, err
	}

	config = *loaded
	configReady = true
	return &config, nil
}

func LoadStore() (*Config, error) {
	v, err := newViper(StoreConfigName, StoreEnvPrefix,
		PostgresUser,
		PostgresPassword,
		PostgresDatabase,
		JudgeBaseURL,
		QueueAzureAccountName,
		QueueAzureAccountKey,
		QueueAzureURL,
		QueueKafkaBrokers,
		RedisAddress,
		RedisPassword,
		ArchiveBackend,
		ArchiveMinioAccessKeyID,
		ArchiveMinioSecret,
		ArchiveAzureAccountKey,
	)
	if err != nil {
		return nil, err
	}

	v.SetDefault(ListenAddress, "[::]:4000")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(GormLogLevel, int(slog.LevelInfo))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(UseOTLP, false)
	v.SetDefault(JudgeDispatchTimeout, 10*time.Second)
	v.SetDefault(AnalysisBatchSize, 10)
	v.SetDefault(AnalysisPastRemarks, 10)
	v.SetDefault(QueueBackend, "azure")
	v.SetDefault(QueueAzureName, "analysis")
	v.SetDefault(QueueKafkaTopic, "analysis-jobs")
	v.SetDefault(ArchiveMinioSSLEnabled, true)
	v.SetDefault(ArchiveAzureContainer, "sources")
	v.SetDefault(GracefulShutdownSecs, 30)

	var c Config
	if err := load(v, &c); err != nil {
		return nil, err
	}

	// env provides brokers as one comma separated value
	if len(c.Queue.Kafka.Brokers) == 1 && strings.Contains(c.Queue.Kafka.Brokers[0], ",") {
		c.Queue.Kafka.Brokers = splitList(c.Queue.Kafka.Brokers[0])
	}

	return &c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.GracefulShutdownSecs) * time.Second
}
