package createpoint

import (
	"fmt"
	"io"
	"time"

	"github.com/ecoleta/ecoleta-web/pkg/types"
	yaml "gopkg.in/yaml.v2"
)

type MapConfig struct {
	Zoom        int    `yaml:"zoom"`
	TileURL     string `yaml:"tileUrl"`
	Attribution string `yaml:"attribution"`
}

type Config struct {
	FallbackPosition types.Location `yaml:"fallbackPosition"`
	Map              MapConfig      `yaml:"map"`
	ViewTTL          time.Duration  `yaml:"viewTTL"`
}

func DefaultConfig() Config {
	return Config{
		FallbackPosition: types.NewLocation(-27.2092052, -49.6401092),
		Map: MapConfig{
			Zoom:        15,
			TileURL:     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="http://osm.org/copyright">OpenStreetMap</a> contributors`,
		},
		ViewTTL: 30 * time.Minute,
	}
}

// LoadConfiguration reads a yaml document on top of the defaults, so that a
// file only needs to name the settings it changes.
func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	if cfg.Map.Zoom < 0 || cfg.Map.Zoom > 19 {
		return nil, fmt.Errorf("map zoom %d out of range [0, 19]", cfg.Map.Zoom)
	}

	if cfg.ViewTTL <= 0 {
		return nil, fmt.Errorf("viewTTL must be positive, got %s", cfg.ViewTTL)
	}

	return &cfg, nil
}
