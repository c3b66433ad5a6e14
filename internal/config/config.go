package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	PresignTTL    time.Duration
}

func (c StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

type SecurityConfig struct {
	TokenTTL          time.Duration
	CookieName        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    string
	MaxSessions       int
	MinPasswordLength int
	AdminJWTSecret    string
	AdminJWTTTL       time.Duration
}

// SameSite maps the configured name to the net/http constant.
func (c SecurityConfig) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

type GameConfig struct {
	BossHealth   int
	PartyHealth  int
	DecayPerDay  int
	DefeatReward int
	MaxDamage    int
}

type ReaperConfig struct {
	Enabled  bool
	Schedule string
	Mode     string
}

type RateLimitConfig struct {
	UserRPS float64
	Burst   int
	// IdleTTL is how long a caller's bucket survives without requests.
	IdleTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type CatalogConfig struct {
	Path string
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Store            StoreConfig
	Game             GameConfig
	Reaper           ReaperConfig
	RateLimit        RateLimitConfig
	Catalog          CatalogConfig
	CORS             CORSConfig
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("BOSSFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn required for store driver postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Game.DecayPerDay <= 0 {
		return fmt.Errorf("game.decayperday must be positive")
	}
	if c.Reaper.Mode == "queue" && !c.Redis.Enabled {
		return fmt.Errorf("reaper mode queue requires redis")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "bossfit:jobs")
	v.SetDefault("redis.group", "bossfit-workers")
	v.SetDefault("redis.consumer", "")
	v.SetDefault("redis.claiminterval", "1m")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketavatars", "bossfit-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "1h")

	v.SetDefault("security.tokenttl", "336h") // 14 days, sliding
	v.SetDefault("security.cookiename", "session")
	v.SetDefault("security.cookiedomain", "")
	v.SetDefault("security.cookiesecure", true)
	v.SetDefault("security.cookiesamesite", "none")
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.minpasswordlength", 1)
	v.SetDefault("security.adminjwtsecret", "")
	v.SetDefault("security.adminjwtttl", "1h")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.timeout", "5s")

	v.SetDefault("game.bosshealth", 1000)
	v.SetDefault("game.partyhealth", 1000)
	v.SetDefault("game.decayperday", 100)
	v.SetDefault("game.defeatreward", 100)
	v.SetDefault("game.maxdamage", 1000)

	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.schedule", "0 */5 * * * *")
	v.SetDefault("reaper.mode", "inline")

	v.SetDefault("ratelimit.userrps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.idlettl", "10m")

	v.SetDefault("catalog.path", "")
	v.SetDefault("cors.allowedorigins", []string{})
	v.SetDefault("cors.maxage", "10m")
}
