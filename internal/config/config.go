// Package config loads optional YAML overrides for a Queue's Options. It
// exists for the cmd/fanoutq harness: the library itself is always
// configured through Go Options structs and never requires a config file
// (SPEC_FULL §2.3).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/fanoutq"
)

// Duration wraps time.Duration so YAML values can be written as "5s", "1m",
// etc. instead of raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ByteSize wraps int64 so YAML values can carry a Ki/Mi/Gi/Ti suffix instead
// of a raw byte count.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*b = 0
		return nil
	}
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

// ParseByteSize parses a plain integer or a Ki/Mi/Gi/Ti-suffixed size into a
// byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	type suffix struct {
		name string
		mult int64
	}
	suffixes := []suffix{
		{"Ti", 1 << 40},
		{"Gi", 1 << 30},
		{"Mi", 1 << 20},
		{"Ki", 1 << 10},
	}
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.name) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.name))
			var f float64
			if _, err := fmt.Sscanf(numStr, "%f", &f); err != nil {
				return 0, fmt.Errorf("invalid byte size: %q", s)
			}
			return int64(f * float64(sf.mult)), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return n, nil
}

// FileConfig is the YAML shape accepted by cmd/fanoutq's --config flag. Every
// field is optional; absent fields leave fanoutq.DefaultOptions() untouched.
type FileConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`

	MaxFileSize        ByteSize `yaml:"max_file_size"`
	AutoSync           *bool    `yaml:"auto_sync"`
	SyncInterval       Duration `yaml:"sync_interval"`
	CheckpointInterval Duration `yaml:"checkpoint_interval"`
}

// Load reads and parses a FileConfig from path.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		return nil, err
	}
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ToOptions builds a fanoutq.Options from the file's overrides, layered on
// top of fanoutq.DefaultOptions(). The Clock, Logger, and MetricsCollector
// fields are never set by a config file and are left at their defaults for
// the caller to override in code.
func (c *FileConfig) ToOptions() *fanoutq.Options {
	opts := fanoutq.DefaultOptions()
	if c.MaxFileSize > 0 {
		opts.MaxFileSize = int64(c.MaxFileSize)
	}
	if c.AutoSync != nil {
		opts.AutoSync = *c.AutoSync
	}
	if c.SyncInterval > 0 {
		opts.SyncInterval = time.Duration(c.SyncInterval)
	}
	if c.CheckpointInterval > 0 {
		opts.CheckpointInterval = time.Duration(c.CheckpointInterval)
	}
	return opts
}
