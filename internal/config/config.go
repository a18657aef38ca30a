package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when a warehouse target
// lacks the values needed to connect.
var ErrMissingCredentials = errors.New("config: missing warehouse credentials")

// ErrInvalidConfig is returned when a configured value cannot be parsed or
// is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the generator and loader commands.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Load      LoadConfig      `yaml:"load"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Embucket  SnowflakeConfig `yaml:"embucket"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Stage     StageConfig     `yaml:"stage"`
	Lock      LockConfig      `yaml:"lock"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GeneratorConfig holds synthetic event generation settings.
type GeneratorConfig struct {
	OutDir             string  `yaml:"out_dir"`
	Seed               int64   `yaml:"seed"`
	YesterdayDate      string  `yaml:"yesterday_date"`
	TodayDate          string  `yaml:"today_date"`
	YesterdayMobilePct int     `yaml:"yesterday_mobile_pct"`
	TodayMobilePct     int     `yaml:"today_mobile_pct"`
	BotShare           float64 `yaml:"bot_share"`
	WebVitalsProb      float64 `yaml:"web_vitals_probability"`
	CmpVisibleProb     float64 `yaml:"cmp_visible_probability"`
	ConsentProb        float64 `yaml:"consent_probability"`
	SampleRows         int     `yaml:"sample_rows"`
	BatchSize          int     `yaml:"batch_size"`
	ProgressEvery      int64   `yaml:"progress_every"`
}

// Validate range-checks the generator settings.
func (c GeneratorConfig) Validate() error {
	var errs []error
	for name, p := range map[string]float64{
		"bot_share":               c.BotShare,
		"web_vitals_probability":  c.WebVitalsProb,
		"cmp_visible_probability": c.CmpVisibleProb,
		"consent_probability":     c.ConsentProb,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1, got %v", name, p))
		}
	}
	for name, pct := range map[string]int{
		"yesterday_mobile_pct": c.YesterdayMobilePct,
		"today_mobile_pct":     c.TodayMobilePct,
	} {
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 100, got %d", name, pct))
		}
	}
	if c.SampleRows < 0 || c.BatchSize < 0 || c.ProgressEvery < 0 {
		errs = append(errs, errors.New("sample_rows, batch_size and progress_every must not be negative"))
	}
	if _, err := c.Yesterday(); err != nil {
		errs = append(errs, fmt.Errorf("invalid yesterday_date: %w", err))
	}
	if _, err := c.Today(); err != nil {
		errs = append(errs, fmt.Errorf("invalid today_date: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Yesterday parses YesterdayDate (YYYY-MM-DD, UTC).
func (c GeneratorConfig) Yesterday() (time.Time, error) {
	return time.Parse(time.DateOnly, c.YesterdayDate)
}

// Today parses TodayDate (YYYY-MM-DD, UTC).
func (c GeneratorConfig) Today() (time.Time, error) {
	return time.Parse(time.DateOnly, c.TodayDate)
}

// LoadConfig holds loader settings shared by every target.
type LoadConfig struct {
	Target           string   `yaml:"target"`
	DataDir          string   `yaml:"data_dir"`
	Table            string   `yaml:"table"`
	DerivedBase      string   `yaml:"derived_schema_base"`
	DerivedSuffixes  []string `yaml:"derived_schema_suffixes"`
	VerifySampleRows int      `yaml:"verify_sample_rows"`
	TimeoutMinutes   int      `yaml:"timeout_minutes"`
}

// DerivedSchemas lists the dbt output schemas dropped before a full load.
func (c LoadConfig) DerivedSchemas() []string {
	out := make([]string, 0, len(c.DerivedSuffixes))
	for _, s := range c.DerivedSuffixes {
		out = append(out, c.DerivedBase+s)
	}
	return out
}

func (c LoadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SnowflakeConfig holds Snowflake (or Snowflake-compatible) connection settings.
// ConnectionString, when set, fills any field left empty.
type SnowflakeConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Role             string `yaml:"role"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Protocol         string `yaml:"protocol"`
	ManageWarehouse  bool   `yaml:"manage_warehouse"`
}

// Validate reports the first missing connection value.
func (c SnowflakeConfig) Validate() error {
	missing := []string{}
	if c.Account == "" && c.Host == "" {
		missing = append(missing, "account")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// WithEmbucketDefaults fills the connection values a local Embucket
// accepts when they are not configured.
func (c SnowflakeConfig) WithEmbucketDefaults() SnowflakeConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Protocol == "" {
		c.Protocol = "http"
	}
	if c.Account == "" {
		c.Account = "test"
	}
	return c
}

// PostgresConfig holds the Postgres target DSN.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Schema      string `yaml:"schema"`
}

func (c PostgresConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: postgres database_url", ErrMissingCredentials)
	}
	return nil
}

// SQLiteConfig holds the embedded target database path.
type SQLiteConfig struct {
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
}

// StageConfig selects how files reach a Snowflake stage. Type "internal"
// uses PUT; "s3" uploads to a bucket and creates an external stage.
type StageConfig struct {
	Type         string `yaml:"type"`
	Name         string `yaml:"name"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	AWSRegion    string `yaml:"aws_region"`
	AWSProfile   string `yaml:"aws_profile"` // Empty string uses default credential chain
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	S3Endpoint   string `yaml:"s3_endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// LockConfig configures the cross-process load lock. An empty RedisAddr
// disables Redis locking.
type LockConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	RedactSecrets *bool  `yaml:"redact_secrets"`
}

// Redact reports whether secrets are masked; on unless explicitly disabled.
func (c LoggingConfig) Redact() bool {
	return c.RedactSecrets == nil || *c.RedactSecrets
}

// Load reads configuration from a YAML file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	cfg := Config{Generator: defaultGenerator()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.setDefaults()
	return &cfg, nil
}

// defaultGenerator seeds the settings where zero is a meaningful value.
// They are filled before decoding so an explicit 0 in the file survives.
func defaultGenerator() GeneratorConfig {
	return GeneratorConfig{
		YesterdayMobilePct: 66,
		TodayMobilePct:     50,
		BotShare:           0.01,
		WebVitalsProb:      1.0,
		CmpVisibleProb:     0.35,
		ConsentProb:        0.30,
	}
}

func (cfg *Config) setDefaults() {
	g := &cfg.Generator
	if g.OutDir == "" {
		g.OutDir = "."
	}
	if g.YesterdayDate == "" {
		g.YesterdayDate = "2025-11-01"
	}
	if g.TodayDate == "" {
		g.TodayDate = "2025-11-02"
	}
	if g.SampleRows == 0 {
		g.SampleRows = 1000
	}
	if g.BatchSize == 0 {
		g.BatchSize = 10000
	}
	if g.ProgressEvery == 0 {
		g.ProgressEvery = 50000
	}

	l := &cfg.Load
	if l.Target == "" {
		l.Target = "snowflake"
	}
	if l.DataDir == "" {
		l.DataDir = "."
	}
	if l.Table == "" {
		l.Table = "events"
	}
	if l.DerivedBase == "" {
		l.DerivedBase = "public"
	}
	if l.DerivedSuffixes == nil {
		l.DerivedSuffixes = []string{"_derived", "_scratch", "_snowplow_manifest"}
	}
	if l.VerifySampleRows == 0 {
		l.VerifySampleRows = 5
	}
	if l.TimeoutMinutes == 0 {
		l.TimeoutMinutes = 60
	}

	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "atomic"
	}
	if cfg.Embucket.Schema == "" {
		cfg.Embucket.Schema = "atomic"
	}
	if cfg.Postgres.Schema == "" {
		cfg.Postgres.Schema = "atomic"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "events.db"
	}
	if cfg.SQLite.BatchSize == 0 {
		cfg.SQLite.BatchSize = 500
	}
	if cfg.Stage.Type == "" {
		cfg.Stage.Type = "internal"
	}
	if cfg.Stage.Name == "" {
		cfg.Stage.Name = "events_stage"
	}
	if cfg.Stage.AWSRegion == "" {
		cfg.Stage.AWSRegion = "us-east-1"
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "snowplow:load"
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads the YAML file (if any) and overlays the environment,
// including a .env file in the working directory.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := overlaySnowflake(&cfg.Snowflake, "SNOWFLAKE_"); err != nil {
		return nil, err
	}
	if err := overlaySnowflake(&cfg.Embucket, "EMBUCKET_"); err != nil {
		return nil, err
	}
	if cfg.Snowflake, err = cfg.Snowflake.merged(); err != nil {
		return nil, err
	}
	if cfg.Embucket, err = cfg.Embucket.merged(); err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("LOAD_TARGET"); v != "" {
		cfg.Load.Target = v
	}
	if v := os.Getenv("STAGE_S3_BUCKET"); v != "" {
		cfg.Stage.S3Bucket = v
		cfg.Stage.Type = "s3"
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Stage.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Stage.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Stage.SecretKey = v
	}
	if v := os.Getenv("LOAD_LOCK_REDIS_ADDR"); v != "" {
		cfg.Lock.RedisAddr = v
	}
	if v := os.Getenv("LOAD_LOCK_REDIS_PASSWORD"); v != "" {
		cfg.Lock.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOAD_LOCK_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, envError("LOAD_LOCK_REDIS_DB", v)
		}
		cfg.Lock.RedisDB = db
	}
	if v := os.Getenv("EVENTS_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, envError("EVENTS_SEED", v)
		}
		cfg.Generator.Seed = seed
	}

	return cfg, nil
}

func envError(key, value string) error {
	return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, value)
}

func overlaySnowflake(c *SnowflakeConfig, prefix string) error {
	set := func(dst *string, key string) {
		if v := os.Getenv(prefix + key); v != "" {
			*dst = v
		}
	}
	set(&c.ConnectionString, "CONNECTION_STRING")
	set(&c.Account, "ACCOUNT")
	set(&c.User, "USER")
	set(&c.Password, "PASSWORD")
	set(&c.Role, "ROLE")
	set(&c.Database, "DATABASE")
	set(&c.Schema, "SCHEMA")
	set(&c.Warehouse, "WAREHOUSE")
	set(&c.Host, "HOST")
	set(&c.Protocol, "PROTOCOL")
	if v := os.Getenv(prefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError(prefix+"PORT", v)
		}
		c.Port = port
	}
	return nil
}

// merged fills empty fields from ConnectionString.
// Format: scheme=https;ACCOUNT=xxx;HOST=yyy;port=443;USER=zzz;PASSWORD=www;DB=aaa.bbb;
func (c SnowflakeConfig) merged() (SnowflakeConfig, error) {
	if c.ConnectionString == "" {
		return c, nil
	}
	parts := make(map[string]string)
	for _, kv := range strings.Split(c.ConnectionString, ";") {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			parts[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Account, parts["ACCOUNT"])
	fill(&c.User, parts["USER"])
	fill(&c.Password, parts["PASSWORD"])
	fill(&c.Host, parts["HOST"])
	fill(&c.Protocol, parts["SCHEME"])
	fill(&c.Role, parts["ROLE"])
	fill(&c.Warehouse, parts["WAREHOUSE"])
	if db, schema, ok := strings.Cut(parts["DB"], "."); ok {
		fill(&c.Database, db)
		if schema != "" {
			c.Schema = schema
		}
	} else {
		fill(&c.Database, db)
	}
	if v, ok := parts["PORT"]; ok && c.Port == 0 {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: connection string port %q is not an integer", ErrInvalidConfig, v)
		}
		c.Port = p
	}
	return c, nil
}
