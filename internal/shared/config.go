package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	RootURL     string            `toml:"root_url"`
	Credentials CredentialsConfig `toml:"credentials"`
	Discord     DiscordConfig     `toml:"discord"`
	Database    DatabaseConfig    `toml:"database"`
	Mongo       MongoConfig       `toml:"mongo"`
	Server      ServerConfig      `toml:"server"`
	Acquire     AcquireConfig     `toml:"acquire"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Napster  NapsterConfig  `toml:"napster"`
	Subsonic SubsonicConfig `toml:"subsonic"`
	LastFM   LastFMConfig   `toml:"lastfm"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey    string `toml:"api_key"`
	YTDLPPath string `toml:"ytdlp_path"`
}

// NapsterConfig contains Napster API credentials. ClientID doubles as the static API key.
type NapsterConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// SubsonicConfig contains Subsonic-protocol server settings.
type SubsonicConfig struct {
	EndpointURI string   `toml:"endpoint_uri"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	ClientID    string   `toml:"client_id"`
	Hosts       []string `toml:"hosts"`
}

// LastFMConfig contains Last.fm API credentials.
type LastFMConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DiscordConfig contains bot settings.
type DiscordConfig struct {
	Token   string      `toml:"token"`
	GuildID string      `toml:"guild_id"`
	Roles   RolesConfig `toml:"roles"`
}

// RolesConfig names the guild roles allowed to run restricted commands.
type RolesConfig struct {
	DJ    string `toml:"dj"`
	Admin string `toml:"admin"`
}

// DatabaseConfig contains SQLite ledger settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MongoConfig contains document store settings.
type MongoConfig struct {
	URL             string `toml:"url"`
	Database        string `toml:"database"`
	TrackCollection string `toml:"track_collection"`
	UserCollection  string `toml:"user_collection"`
	MaxAttempts     int    `toml:"max_attempts"`
	Timeout         string `toml:"timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AcquireConfig contains task pool settings.
type AcquireConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
	Timeout   string  `toml:"timeout"`
}

// MaintenanceConfig schedules the bot's background jobs. Schedules are five-field crontab
// expressions; an empty schedule disables the job.
type MaintenanceConfig struct {
	PruneLinks   string `toml:"prune_links"`
	Migrate      string `toml:"migrate"`
	WorkspaceTTL string `toml:"workspace_ttl"`
}

// IdleWorkspaces parses [MaintenanceConfig.WorkspaceTTL], defaulting to thirty minutes.
func (c MaintenanceConfig) IdleWorkspaces() time.Duration {
	return parseDuration(c.WorkspaceTTL, 30*time.Minute)
}

// ConnectTimeout parses [MongoConfig.Timeout], defaulting to ten seconds.
func (c MongoConfig) ConnectTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// RequestTimeout parses [AcquireConfig.Timeout], defaulting to two minutes.
func (c AcquireConfig) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, 2*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads a dotenv file into the process environment.
// A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets from the environment.
//
// DISCORD_TOKEN, MONGO_CONN_STR, SUBSONIC_PASSWORD and YOUTUBE_API_KEY win over file values.
func (c *Config) ApplyEnv() {
	for key, target := range map[string]*string{
		"DISCORD_TOKEN":     &c.Discord.Token,
		"MONGO_CONN_STR":    &c.Mongo.URL,
		"SUBSONIC_PASSWORD": &c.Credentials.Subsonic.Password,
		"YOUTUBE_API_KEY":   &c.Credentials.YouTube.APIKey,
	} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
}

// Resolve layers the config at path, when present, over the defaults and then applies the environment.
func Resolve(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
		}
	}
	config.ApplyEnv()
	return config, nil
}
