package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Password  PasswordSettings  `mapstructure:"password"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Mail      MailSettings      `mapstructure:"mail"`
	Storage   StorageSettings   `mapstructure:"storage"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// BaseURL is embedded into confirmation and reset links sent by mail.
	BaseURL string `mapstructure:"base_url"`
	// AllowedOrigins lists origins permitted by CORS; "*" allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection used for rate limiting.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// JWTSettings configures issued session tokens.
type JWTSettings struct {
	Key        string        `mapstructure:"key"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// TokenSettings configures email confirmation and password reset tokens.
type TokenSettings struct {
	Secret     string        `mapstructure:"secret"`
	ConfirmTTL time.Duration `mapstructure:"confirm_ttl"`
	ResetTTL   time.Duration `mapstructure:"reset_ttl"`
}

// LockoutSettings configures the failed sign-in lockout policy.
type LockoutSettings struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Duration    time.Duration `mapstructure:"duration"`
}

// PasswordSettings tunes the password policy beyond the built-in character
// class rules. MinStrengthScore > 0 enables a zxcvbn strength floor.
type PasswordSettings struct {
	MinStrengthScore int `mapstructure:"min_strength_score"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint.
type RateLimitSettings struct {
	WindowDuration            time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts          int           `mapstructure:"login_max_attempts"`
	ForgotPasswordMaxAttempts int           `mapstructure:"forgot_password_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// MailSettings configures the transactional mail API client.
type MailSettings struct {
	APIURL      string        `mapstructure:"api_url"`
	APIKey      string        `mapstructure:"api_key"`
	FromAddress string        `mapstructure:"from_address"`
	FromName    string        `mapstructure:"from_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageSettings configures the S3-compatible object store for profile images.
type StorageSettings struct {
	Endpoint            string `mapstructure:"endpoint"`
	AccessKey           string `mapstructure:"access_key"`
	SecretKey           string `mapstructure:"secret_key"`
	Bucket              string `mapstructure:"bucket"`
	UseSSL              bool   `mapstructure:"use_ssl"`
	DefaultProfileImage string `mapstructure:"default_profile_image"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SPACEUSER")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.base_url",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"jwt.key",
		"jwt.issuer",
		"jwt.audience",
		"jwt.session_ttl",
		"tokens.secret",
		"tokens.confirm_ttl",
		"tokens.reset_ttl",
		"lockout.max_failures",
		"lockout.duration",
		"password.min_strength_score",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.forgot_password_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"mail.api_url",
		"mail.api_key",
		"mail.from_address",
		"mail.from_name",
		"mail.timeout",
		"storage.endpoint",
		"storage.access_key",
		"storage.secret_key",
		"storage.bucket",
		"storage.use_ssl",
		"storage.default_profile_image",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spaceuser-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "spaceuser")
	v.SetDefault("postgres.password", "spaceuser_password")
	v.SetDefault("postgres.database", "spaceuser")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "spaceuser:rate")

	v.SetDefault("jwt.issuer", "spaceuser")
	v.SetDefault("jwt.audience", "spaceuser-clients")
	v.SetDefault("jwt.session_ttl", "120m")

	v.SetDefault("tokens.confirm_ttl", "24h")
	v.SetDefault("tokens.reset_ttl", "4h")

	v.SetDefault("lockout.max_failures", 5)
	v.SetDefault("lockout.duration", "15m")

	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.forgot_password_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("mail.api_url", "https://send.api.mailtrap.io/api/send")
	v.SetDefault("mail.from_address", "no-reply@spaceuser.example")
	v.SetDefault("mail.from_name", "SpaceUser")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "profile-images")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.default_profile_image", "/imgs/default-profile.jpg")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "SPACEUSER_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
