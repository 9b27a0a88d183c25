package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"appletree/internal/store"
)

// Config is a plugin's key=value settings: defaults overlaid with <config>/plugins/<name>.conf.
type Config struct {
	path     string
	section  string
	defaults map[string]string
	values   map[string]string
}

// LoadConfig never fails: an unreadable or malformed file is logged and defaults are used.
func LoadConfig(path, section string, defaults map[string]string, log *slog.Logger) *Config {
	c := &Config{path: path, section: section, defaults: map[string]string{}, values: map[string]string{}}
	for k, v := range defaults {
		c.defaults[k] = v
		c.values[k] = v
	}
	stored, _, err := store.ReadConf(path, section)
	if err != nil {
		if log != nil {
			log.Error("plugin config read failed", "path", path, "error", err)
		}
		return c
	}
	for k, v := range stored {
		if _, ok := c.defaults[k]; ok {
			c.values[k] = v
		}
	}
	return c
}

func (c *Config) Path() string { return c.path }

func (c *Config) Get(key string) string { return c.values[key] }

// Int parses key as an integer, falling back to the default when the stored value is not one.
func (c *Config) Int(key string) int {
	if n, err := strconv.Atoi(c.values[key]); err == nil {
		return n
	}
	n, _ := strconv.Atoi(c.defaults[key])
	return n
}

func (c *Config) Set(key, value string) error {
	if _, ok := c.defaults[key]; !ok {
		return fmt.Errorf("plugin %s: unknown config key %q", c.section, key)
	}
	c.values[key] = value
	return nil
}

func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.defaults))
	for k := range c.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the current settings.
func (c *Config) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Config) Save() error {
	return store.WriteConf(c.path, c.section, c.Keys(), c.values)
}
