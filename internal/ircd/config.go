package ircd

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// fileConfig mirrors the on-disk TOML layout. Password is deliberately
// excluded here; it is only ever read from the environment (see
// LoadConfig) so it never has to sit in a config file on disk.
type fileConfig struct {
	Port int      `toml:"port"`
	Name string   `toml:"name"`
	MOTD []string `toml:"motd"`
}

// LoadConfig reads server configuration from a TOML file at path. It
// first loads a .env file from the working directory, if present (via
// godotenv), into the process environment; the only value taken from the
// environment is IRCD_PASSWORD, which, if set, becomes the server's
// connection password; an unset or empty value means the server requires
// no password at all.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Config{}, errors.Wrapf(err, "decoding config file %q", path)
	}

	if fc.Port <= 0 || fc.Port > 65535 {
		return Config{}, fmt.Errorf("config: port %d out of range", fc.Port)
	}

	cfg := Config{
		Port:     fc.Port,
		Name:     strings.TrimSpace(fc.Name),
		MOTD:     fc.MOTD,
		Password: os.Getenv("IRCD_PASSWORD"),
	}
	if len(cfg.MOTD) == 0 {
		cfg.MOTD = defaultMOTD
	}

	return cfg, nil
}
