package config

import (
	"time"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
)

type EngineConfig struct {
	BaseURL         string        `mapstructure:"base_url"          validate:"required,url"`
	AuthToken       string        `mapstructure:"auth_token"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   validate:"required"`
	PollInterval    time.Duration `mapstructure:"poll_interval"     validate:"required"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" validate:"gte=0"`
	RetryMax        int           `mapstructure:"retry_max"         validate:"gte=0"`
}

type StoreServiceConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}

type LimitsConfig struct {
	MaxTestCases   int `mapstructure:"max_testcases"    validate:"required,gt=0"`
	MaxSourceBytes int `mapstructure:"max_source_bytes" validate:"required,gt=0"`
}

// Judging service. See judge.yaml for an example.
type JudgeConfig struct {
	Engine               *EngineConfig       `mapstructure:"engine"                 validate:"required"`
	Store                *StoreServiceConfig `mapstructure:"store"                  validate:"required"`
	Limits               *LimitsConfig       `mapstructure:"limits"                 validate:"required"`
	Logging              *LoggingConfig      `mapstructure:"logging"                validate:"required"`
	Redis                RedisConfig         `mapstructure:"redis"`
	InFlightTTL          time.Duration       `mapstructure:"inflight_ttl"`
	ListenAddress        string              `mapstructure:"listen_address"         validate:"required"`
	GracefulShutdownSecs int64               `mapstructure:"graceful_shutdown_secs"`
}

const (
	EngineBaseURL         string = "engine.base_url"
	EngineAuthToken       string = "engine.auth_token" // #nosec
	EngineRequestTimeout  string = "engine.request_timeout"
	EnginePollInterval    string = "engine.poll_interval"
	EngineMaxPollAttempts string = "engine.max_poll_attempts"
	EngineRetryMax        string = "engine.retry_max"
	StoreBaseURL          string = "store.base_url"
	StoreRequestTimeout   string = "store.request_timeout"
	LimitsMaxTestCases    string = "limits.max_testcases"
	LimitsMaxSourceBytes  string = "limits.max_source_bytes"
	InFlightTTL           string = "inflight_ttl"

	JudgeEnvPrefix  string = "judge"
	JudgeConfigName string = "judge"
)

func LoadJudge() (*JudgeConfig, error) {
	v, err := newViper(JudgeConfigName, JudgeEnvPrefix,
		EngineBaseURL,
		EngineAuthToken,
		StoreBaseURL,
		RedisAddress,
		RedisPassword,
	)
	if err != nil {
		return nil, err
	}

	v.SetDefault(ListenAddress, "[::]:4001")
	v.SetDefault(EngineBaseURL, "http://localhost:2358")
	v.SetDefault(EngineRequestTimeout, judge0.DefaultRequestTimeout)
	v.SetDefault(EnginePollInterval, judge0.DefaultPollInterval)
	v.SetDefault(EngineMaxPollAttempts, 0)
	v.SetDefault(EngineRetryMax, 2)
	v.SetDefault(StoreBaseURL, "http://localhost:4000")
	v.SetDefault(StoreRequestTimeout, 10*time.Second)
	v.SetDefault(LimitsMaxTestCases, 50)
	v.SetDefault(LimitsMaxSourceBytes, 200000)
	v.SetDefault(InFlightTTL, 30*time.Minute)
	v.SetDefault(AppLogLevel, 0)
	v.SetDefault(UseOTLP, false)
	v.SetDefault(GracefulShutdownSecs, 30)

	var c JudgeConfig
	if err := load(v, &c); err != nil {
		return nil, err
	}

	if c.Engine.MaxPollAttempts == 0 {
		c.Engine.MaxPollAttempts = judge0.MaxPollAttemptsFor(c.Engine.RequestTimeout, c.Engine.PollInterval)
	}

	return &c, nil
}

func (c *JudgeConfig) EngineClientConfig() judge0.Config {
	return judge0.Config{
		BaseURL:         c.Engine.BaseURL,
		AuthToken:       c.Engine.AuthToken,
		RequestTimeout:  c.Engine.RequestTimeout,
		PollInterval:    c.Engine.PollInterval,
		MaxPollAttempts: c.Engine.MaxPollAttempts,
		RetryMax:        c.Engine.RetryMax,
	}
}

func (c *JudgeConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.GracefulShutdownSecs) * time.Second
}
