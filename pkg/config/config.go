package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Teacher    TeacherConfig
	Snapshot   SnapshotConfig
	ShareLink  ShareLinkConfig
	Exports    ExportsConfig
	Legacy     LegacyConfig
	Annotation AnnotationConfig
}

type DatabaseConfig struct {
	Driver       string
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TeacherConfig holds the PIN for the teacher-mode UX gate. It is not a credential.
type TeacherConfig struct {
	PIN string
}

// SnapshotConfig controls publication and fetching of the classroom snapshot file.
type SnapshotConfig struct {
	Filename     string
	BaseURL      string
	PublishDir   string
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

// ShareLinkConfig bounds compressed lesson links.
type ShareLinkConfig struct {
	PublicBaseURL string
	MaxChars      int
}

// ExportsConfig configures file export storage and signed download URLs.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// LegacyConfig names the single-key blob written by older builds.
type LegacyConfig struct {
	StorageKey string
}

// AnnotationConfig points at the external AI annotation service.
type AnnotationConfig struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	ArticleMaxBytes int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	driver := strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER")))
	if driver != DriverPostgres && driver != DriverMemory {
		driver = DriverSQLite
	}
	cfg.Database = DatabaseConfig{
		Driver:       driver,
		Path:         v.GetString("DB_PATH"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Teacher = TeacherConfig{PIN: v.GetString("TEACHER_PIN")}

	filename := strings.TrimSpace(v.GetString("SNAPSHOT_FILENAME"))
	if filename == "" {
		filename = "student_data.json"
	}
	cfg.Snapshot = SnapshotConfig{
		Filename:     filename,
		BaseURL:      strings.TrimRight(v.GetString("SNAPSHOT_BASE_URL"), "/"),
		PublishDir:   v.GetString("PUBLISH_DIR"),
		FetchTimeout: parseDuration(v.GetString("FETCH_TIMEOUT"), 15*time.Second),
		CacheTTL:     parseDuration(v.GetString("SNAPSHOT_CACHE_TTL"), 24*time.Hour),
	}

	maxChars := v.GetInt("LINK_MAX_CHARS")
	if maxChars <= 0 {
		maxChars = 8000
	}
	cfg.ShareLink = ShareLinkConfig{
		PublicBaseURL: v.GetString("PUBLIC_BASE_URL"),
		MaxChars:      maxChars,
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Legacy = LegacyConfig{StorageKey: v.GetString("LEGACY_STORAGE_KEY")}

	maxArticle := v.GetInt64("ARTICLE_MAX_BYTES")
	if maxArticle <= 0 {
		maxArticle = 10 * 1024 * 1024
	}
	cfg.Annotation = AnnotationConfig{
		Endpoint:        v.GetString("ANNOTATION_ENDPOINT"),
		APIKey:          v.GetString("ANNOTATION_API_KEY"),
		Timeout:         parseDuration(v.GetString("ANNOTATION_TIMEOUT"), time.Minute),
		ArticleMaxBytes: maxArticle,
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "lessons.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "canto_lessons")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TEACHER_PIN", "1234")

	v.SetDefault("SNAPSHOT_FILENAME", "student_data.json")
	v.SetDefault("SNAPSHOT_BASE_URL", "http://localhost:8080")
	v.SetDefault("PUBLISH_DIR", "./public")
	v.SetDefault("FETCH_TIMEOUT", "15s")
	v.SetDefault("SNAPSHOT_CACHE_TTL", "24h")

	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080/")
	v.SetDefault("LINK_MAX_CHARS", 8000)

	v.SetDefault("EXPORTS_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("LEGACY_STORAGE_KEY", "cantonese_lesson_data")

	v.SetDefault("ANNOTATION_ENDPOINT", "")
	v.SetDefault("ANNOTATION_API_KEY", "")
	v.SetDefault("ANNOTATION_TIMEOUT", "60s")
	v.SetDefault("ARTICLE_MAX_BYTES", 10*1024*1024)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
