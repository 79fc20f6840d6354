package config

import (
	"flag"

	commoncfg "github.com/gaspardpetit/urlpusher/core/config"
)

// ListerConfig holds configuration for the lister agent.
type ListerConfig struct {
	Connection `yaml:",inline"`

	APIAddr string `yaml:"api_addr"`
}

// BindFlags reads environment defaults and registers the lister flags on the
// default flag set.
func (c *ListerConfig) BindFlags() { c.BindFlagSet(flag.CommandLine) }

func (c *ListerConfig) BindFlagSet(fs *flag.FlagSet) {
	c.Connection.bind(fs, "lister.yaml")
	c.APIAddr = commoncfg.GetEnv("API_ADDR", "127.0.0.1:4556")
	fs.StringVar(&c.APIAddr, "api-addr", c.APIAddr, "listen address of the entry editing API")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file.
func (c *ListerConfig) LoadFile(path string) error { return loadYAML(path, c) }
