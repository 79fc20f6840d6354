package config

import (
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	commoncfg "github.com/gaspardpetit/urlpusher/core/config"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

// ErrNoEndpoint is returned when neither a server URL nor a page URL is set.
var ErrNoEndpoint = errors.New("no push endpoint: set --server-url or --page-url")

// Connection holds the settings shared by both agents.
type Connection struct {
	ConfigFile     string        `yaml:"-"`
	LogLevel       string        `yaml:"log_level"`
	PageURL        string        `yaml:"page_url"`
	ServerURL      string        `yaml:"server_url"`
	ClientID       string        `yaml:"client_id"`
	ClientName     string        `yaml:"client_name"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

func (c *Connection) bind(fs *flag.FlagSet, configName string) {
	c.ConfigFile = commoncfg.GetEnv("CONFIG_FILE", commoncfg.DefaultConfigPath(configName))
	c.LogLevel = commoncfg.GetEnv("LOG_LEVEL", "info")
	c.PageURL = commoncfg.GetEnv("PAGE_URL", "")
	c.ServerURL = commoncfg.GetEnv("SERVER_URL", "")
	c.ClientID = commoncfg.GetEnv("CLIENT_ID", uuid.NewString())
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "urlpusher-" + uuid.NewString()[:8]
	}
	c.ClientName = commoncfg.GetEnv("CLIENT_NAME", host)
	c.ReconnectDelay = commoncfg.GetEnvDuration("RECONNECT_DELAY", 3*time.Second)
	c.DialTimeout = commoncfg.GetEnvDuration("DIAL_TIMEOUT", 10*time.Second)
	c.MetricsAddr = commoncfg.GetEnv("METRICS_PORT", "")
	c.CORSOrigins = splitList(commoncfg.GetEnv("CORS_ORIGINS", ""))

	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.PageURL, "page-url", c.PageURL, "URL of the page the client belongs to; the push endpoint is derived from it")
	fs.StringVar(&c.ServerURL, "server-url", c.ServerURL, "push WebSocket URL (e.g. ws://localhost:8080/pusher); overrides --page-url")
	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "client identifier; randomly generated if omitted")
	fs.StringVar(&c.ClientName, "client-name", c.ClientName, "client display name shown in logs and status")
	fs.DurationVar(&c.ReconnectDelay, "reconnect-delay", c.ReconnectDelay, "delay before reconnecting after the connection drops")
	fs.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "timeout for a single connection attempt")
	fs.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port (disabled when empty; e.g. 127.0.0.1:9090 or 9090)")
	fs.Func("cors-origins", "comma separated origins allowed to call the local HTTP API", func(v string) error {
		c.CORSOrigins = splitList(v)
		return nil
	})
}

// PushURL returns the endpoint to dial: ServerURL when set, otherwise the
// endpoint derived from PageURL.
func (c Connection) PushURL() (string, error) {
	if s := strings.TrimSpace(c.ServerURL); s != "" {
		return s, nil
	}
	if strings.TrimSpace(c.PageURL) == "" {
		return "", ErrNoEndpoint
	}
	return wire.PushURL(c.PageURL)
}

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
