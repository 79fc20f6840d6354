package config

import (
	"flag"
	"time"

	commoncfg "github.com/gaspardpetit/urlpusher/core/config"
)

// DisplayConfig holds configuration for the display agent.
type DisplayConfig struct {
	Connection `yaml:",inline"`

	StatusAddr        string        `yaml:"status_addr"`
	Slots             int           `yaml:"slots"`
	Loader            string        `yaml:"loader"`
	LoadTimeout       time.Duration `yaml:"load_timeout"`
	Transition        string        `yaml:"transition"`
	CrossfadeDuration time.Duration `yaml:"crossfade_duration"`
	OverlayDelay      time.Duration `yaml:"overlay_delay"`
	AnnounceConn      bool          `yaml:"announce_connection"`
}

// BindFlags reads environment defaults and registers the display flags on
// the default flag set.
func (c *DisplayConfig) BindFlags() { c.BindFlagSet(flag.CommandLine) }

func (c *DisplayConfig) BindFlagSet(fs *flag.FlagSet) {
	c.Connection.bind(fs, "display.yaml")
	c.StatusAddr = commoncfg.GetEnv("STATUS_ADDR", "")
	c.Slots = commoncfg.GetEnvInt("SLOTS", 2)
	c.Loader = commoncfg.GetEnv("LOADER", "http")
	c.LoadTimeout = commoncfg.GetEnvDuration("LOAD_TIMEOUT", 30*time.Second)
	c.Transition = commoncfg.GetEnv("TRANSITION", "crossfade")
	c.CrossfadeDuration = commoncfg.GetEnvDuration("CROSSFADE_DURATION", 250*time.Millisecond)
	c.OverlayDelay = commoncfg.GetEnvDuration("OVERLAY_DELAY", 5*time.Second)
	c.AnnounceConn = commoncfg.GetEnvBool("ANNOUNCE_CONNECTION", true)

	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "local status HTTP listen address (enables /status and /surface; e.g. 127.0.0.1:4555)")
	fs.IntVar(&c.Slots, "slots", c.Slots, "buffer slots per media class (minimum 2)")
	fs.StringVar(&c.Loader, "loader", c.Loader, "content loader: http prefetches content before swapping, none leaves loading to the renderer")
	fs.DurationVar(&c.LoadTimeout, "load-timeout", c.LoadTimeout, "timeout for prefetching one piece of content")
	fs.StringVar(&c.Transition, "transition", c.Transition, "swap transition: instant or crossfade")
	fs.DurationVar(&c.CrossfadeDuration, "crossfade-duration", c.CrossfadeDuration, "crossfade duration")
	fs.DurationVar(&c.OverlayDelay, "overlay-delay", c.OverlayDelay, "how long overlay text stays visible")
	fs.BoolVar(&c.AnnounceConn, "announce-connection", c.AnnounceConn, "show connected/disconnected on the overlay")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file.
func (c *DisplayConfig) LoadFile(path string) error { return loadYAML(path, c) }
