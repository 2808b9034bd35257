package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported channel table format")

// tableFile is the on-disk channel table.
type tableFile struct {
	KeepOpen *bool        `yaml:"keep_open" toml:"keep_open"`
	Channels []tableEntry `yaml:"channels" toml:"channels"`
}

type tableEntry struct {
	Index    int    `yaml:"index" toml:"index"`
	Name     string `yaml:"name" toml:"name"`
	KeepOpen *bool  `yaml:"keep_open" toml:"keep_open"`
}

// LoadFile reads a channel table from a .yaml, .yml or .toml file.
// Entries without keep_open inherit the file-level value, which in turn
// defaults to keepOpen.
func LoadFile(path string, keepOpen bool) ([]ChannelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel table: %w", err)
	}
	return Parse(data, filepath.Ext(path), keepOpen)
}

// Parse decodes a channel table; ext selects the format.
func Parse(data []byte, ext string, keepOpen bool) ([]ChannelDescriptor, error) {
	var tf tableFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse channel table: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse channel table: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if tf.KeepOpen != nil {
		keepOpen = *tf.KeepOpen
	}

	descs := make([]ChannelDescriptor, 0, len(tf.Channels))
	for _, e := range tf.Channels {
		d := ChannelDescriptor{Index: e.Index, Name: e.Name, KeepOpen: keepOpen}
		if e.KeepOpen != nil {
			d.KeepOpen = *e.KeepOpen
		}
		descs = append(descs, d)
	}
	return descs, nil
}
