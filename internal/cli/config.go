package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the sqljson configuration from sqljson.yaml.
type Config struct {
	// Top-level convenience fields
	Queries string `mapstructure:"queries" json:"queries"`
	DBMD    string `mapstructure:"dbmd" json:"dbmd"`
	Dialect string `mapstructure:"dialect" json:"dialect,omitempty"`
	Workers int    `mapstructure:"workers" json:"workers"`
	// Statements is the modification statement file. Empty disables
	// statement generation.
	Statements string `mapstructure:"statements" json:"statements,omitempty"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Per-command configuration
	Generate   GenerateConfig   `mapstructure:"generate" json:"generate"`
	Introspect IntrospectConfig `mapstructure:"introspect" json:"introspect"`

	Log LogConfig `mapstructure:"log" json:"log"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" json:"url,omitempty"`
	// Driver is the database/sql driver name, "postgres" (lib/pq) or "pgx".
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// GenerateConfig holds SQL and result type generation settings.
type GenerateConfig struct {
	SQLOutput   string `mapstructure:"sql_output" json:"sql_output"`
	TypesOutput string `mapstructure:"types_output" json:"types_output"`
	Runtime     string `mapstructure:"runtime" json:"runtime,omitempty"`
	Package     string `mapstructure:"package" json:"package,omitempty"`
}

// IntrospectConfig holds metadata extraction settings.
type IntrospectConfig struct {
	Schemas       []string      `mapstructure:"schemas" json:"schemas"`
	ExcludeTables []string      `mapstructure:"exclude_tables" json:"exclude_tables,omitempty"`
	Output        string        `mapstructure:"output" json:"output,omitempty"`
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// A .env file in the working directory, and one next to the config file,
// is loaded into the environment first. Variables already set are kept.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Find the config file, then load .env files so that they can feed
	// the environment bindings below.
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}
	envFiles := []string{".env"}
	if configPath != "" {
		envFiles = append(envFiles, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, configPath, err
	}

	// 3. Set up environment variable binding
	v.SetEnvPrefix("SQLJSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, configPath, err
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Top-level defaults
	v.SetDefault("queries", "queries.yaml")
	v.SetDefault("dbmd", "dbmd.yaml")
	v.SetDefault("dialect", "")
	v.SetDefault("workers", 0)
	v.SetDefault("statements", "")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	// Generate defaults
	v.SetDefault("generate.sql_output", "generated/sql")
	v.SetDefault("generate.types_output", "generated/types")
	v.SetDefault("generate.runtime", "")
	v.SetDefault("generate.package", "")

	// Introspect defaults
	v.SetDefault("introspect.schemas", []string{"public"})
	v.SetDefault("introspect.exclude_tables", []string{})
	v.SetDefault("introspect.output", "")
	v.SetDefault("introspect.timeout", 30*time.Second)

	// Log defaults
	v.SetDefault("log.format", "text")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"pgx\", got %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for sqljson.yaml or sqljson.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"sqljson.yaml", "sqljson.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if u, err := url.Parse(out.Database.URL); err == nil {
		out.Database.URL = u.Redacted()
	}
	return &out
}

// ResolvedSnapshotPath returns where introspect writes the snapshot:
// introspect.output when set, the dbmd path otherwise.
func (c *Config) ResolvedSnapshotPath() string {
	if c.Introspect.Output != "" {
		return c.Introspect.Output
	}
	return c.DBMD
}
