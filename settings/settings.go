package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TANGO_SERVER_PORT
const EnvPrefix = "TANGO"

// Settings holds application configuration.
type Settings struct {
	Server ServerSettings `mapstructure:"server"`
	Levels LevelSettings  `mapstructure:"levels"`
	Store  StoreSettings  `mapstructure:"store"`
	Game   GameSettings   `mapstructure:"game"`
	Log    LogSettings    `mapstructure:"log"`
	Ngrok  NgrokSettings  `mapstructure:"ngrok"`
}

// ServerSettings holds the HTTP listener address.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LevelSettings points at the level catalog. An empty path uses the embedded levels.
type LevelSettings struct {
	Path string `mapstructure:"path"`
}

// StoreSettings selects the progress backend.
type StoreSettings struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// GameSettings holds gameplay options.
type GameSettings struct {
	// Timezone decides when the daily coin reset happens
	Timezone string `mapstructure:"timezone"`
}

// LogSettings holds logrus options.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NgrokSettings configures the optional public tunnel.
type NgrokSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"authtoken"`
	Domain    string `mapstructure:"domain"`
}

// DefaultDataDir is where file and SQLite progress live by default.
func DefaultDataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "tango")
}

// Load reads configuration from .env files, the config file and the
// environment, in increasing precedence. Without envFiles, ./.env is tried.
// The config file is TANGO_CONFIG when set, otherwise
// $HOME/.config/tango/config.toml if present.
func Load(envFiles ...string) (Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()

	// default values
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("levels.path", "")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", DefaultDataDir())
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("game.timezone", "Local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.authtoken", "")
	v.SetDefault("ngrok.domain", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv(EnvPrefix + "_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "tango"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// ngrok's own variable names are honored too
	_ = v.BindEnv("ngrok.authtoken", EnvPrefix+"_NGROK_AUTHTOKEN", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")
	_ = v.BindEnv("ngrok.domain", EnvPrefix+"_NGROK_DOMAIN", "NGROK_DOMAIN")
	_ = v.BindEnv("ngrok.enabled", EnvPrefix+"_NGROK_ENABLED", "NGROK_ENABLED")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return s, nil
}

// Address returns host:port for the HTTP listener.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Server.Host, strconv.Itoa(s.Server.Port))
}

// Location resolves the game timezone. "Local" and "" mean the system zone.
func (s Settings) Location() (*time.Location, error) {
	switch s.Game.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Game.Timezone)
	if err != nil {
		return nil, fmt.Errorf("game.timezone: %w", err)
	}
	return loc, nil
}

// ConfigureLogger applies the log level and format to log.
func (s Settings) ConfigureLogger(log *logrus.Logger) error {
	level, err := logrus.ParseLevel(s.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)

	switch s.Log.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", s.Log.Format)
	}
	return nil
}
