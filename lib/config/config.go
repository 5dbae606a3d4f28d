// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration structure.
type Config struct {
	Paths PathsConfig `yaml:"paths" json:"paths"`

	Tools ToolsConfig `yaml:"tools" json:"tools"`

	Container ContainerConfig `yaml:"container" json:"container"`

	Binderfs BinderfsConfig `yaml:"binderfs" json:"binderfs"`
}

// PathsConfig defines where images and sandboxes live.
type PathsConfig struct {
	// Root is the base directory for all rad data.
	// Default: ~/.local/share/rad
	Root string `yaml:"root" json:"root"`

	// Images holds system.img and vendor.img (or their compressed
	// .zst/.lz4 forms).
	// Default: ${RAD_ROOT}/cache
	Images string `yaml:"images" json:"images"`

	// Prefix is the sandbox root: mount points, rootfs, overlay
	// layers, logs and state live under it.
	// Default: ${RAD_ROOT}/prefixes/default
	Prefix string `yaml:"prefix" json:"prefix"`
}

// ToolsConfig names the external programs rad drives. Bare names are
// resolved through PATH at the time they run.
type ToolsConfig struct {
	// Fuse2fs mounts ext4 images in userspace.
	Fuse2fs string `yaml:"fuse2fs" json:"fuse2fs"`

	// Fusermount lists the FUSE unmount helpers in the order they are
	// tried. The last entry is also used for lazy unmount.
	Fusermount []string `yaml:"fusermount" json:"fusermount"`

	// Nsenter joins the namespaces of a running container.
	Nsenter string `yaml:"nsenter" json:"nsenter"`
}

// ContainerConfig controls the container supervisor.
type ContainerConfig struct {
	// Hostname is the UTS hostname inside the sandbox. Empty derives
	// android-<sandbox id> from the prefix path.
	Hostname string `yaml:"hostname" json:"hostname"`

	Namespaces NamespacesConfig `yaml:"namespaces" json:"namespaces"`

	// LaunchProbe is how long Start waits after spawning init before
	// checking that it is still alive.
	LaunchProbe Duration `yaml:"launch_probe" json:"launch_probe"`

	// StopGrace is the time between SIGTERM and SIGKILL.
	StopGrace Duration `yaml:"stop_grace" json:"stop_grace"`

	// BootPoll is the interval between sys.boot_completed checks.
	BootPoll Duration `yaml:"boot_poll" json:"boot_poll"`

	// BootTimeout bounds wait-boot and run when no --timeout is given.
	BootTimeout Duration `yaml:"boot_timeout" json:"boot_timeout"`

	// PIDFile writes the init pid to <prefix>/container.pid.
	PIDFile bool `yaml:"pid_file" json:"pid_file"`
}

// NamespacesConfig selects the namespaces beyond user and mount, which
// are always created.
type NamespacesConfig struct {
	PID bool `yaml:"pid" json:"pid"`
	UTS bool `yaml:"uts" json:"uts"`
	IPC bool `yaml:"ipc" json:"ipc"`
}

// BinderfsConfig controls the sandbox-local binder device instance.
type BinderfsConfig struct {
	// Enabled mounts binderfs at /dev/binderfs inside the sandbox.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Required turns a binderfs failure into a launch failure. When
	// false, the setup stage logs the failure and continues without
	// binder devices.
	Required bool `yaml:"required" json:"required"`
}

// Default returns a Config with the standard layout and timing.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "rad")

	return &Config{
		Paths: PathsConfig{
			Root:   defaultRoot,
			Images: filepath.Join(defaultRoot, "cache"),
			Prefix: filepath.Join(defaultRoot, "prefixes", "default"),
		},
		Tools: ToolsConfig{
			Fuse2fs:    "fuse2fs",
			Fusermount: []string{"fusermount3", "fusermount"},
			Nsenter:    "nsenter",
		},
		Container: ContainerConfig{
			Namespaces: NamespacesConfig{
				PID: true,
				UTS: true,
				IPC: true,
			},
			LaunchProbe: Duration(500 * time.Millisecond),
			StopGrace:   Duration(2 * time.Second),
			BootPoll:    Duration(2 * time.Second),
			BootTimeout: Duration(120 * time.Second),
			PIDFile:     true,
		},
		Binderfs: BinderfsConfig{
			Enabled:  true,
			Required: false,
		},
	}
}

// Load loads configuration from the file named by RAD_CONFIG, or
// returns the defaults when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("RAD_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file. Values absent
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// loadFile reads and parses a config file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// expandVariables expands ${VAR} patterns in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"RAD_ROOT": c.Paths.Root,
		"HOME":     os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["RAD_ROOT"] = c.Paths.Root

	c.Paths.Images = expandVars(c.Paths.Images, vars)
	c.Paths.Prefix = expandVars(c.Paths.Prefix, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Images == "" {
		errs = append(errs, errors.New("paths.images is required"))
	}
	if c.Paths.Prefix == "" {
		errs = append(errs, errors.New("paths.prefix is required"))
	}
	if c.Tools.Fuse2fs == "" {
		errs = append(errs, errors.New("tools.fuse2fs is required"))
	}
	if len(c.Tools.Fusermount) == 0 {
		errs = append(errs, errors.New("tools.fusermount needs at least one entry"))
	}
	if c.Tools.Nsenter == "" {
		errs = append(errs, errors.New("tools.nsenter is required"))
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"container.launch_probe", c.Container.LaunchProbe},
		{"container.stop_grace", c.Container.StopGrace},
		{"container.boot_poll", c.Container.BootPoll},
		{"container.boot_timeout", c.Container.BootTimeout},
	}
	for _, duration := range durations {
		if duration.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", duration.name, duration.value))
		}
	}

	if c.Binderfs.Required && !c.Binderfs.Enabled {
		errs = append(errs, errors.New("binderfs.required is set but binderfs.enabled is false"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the image cache directory and the parent of the
// sandbox prefix.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Images, filepath.Dir(c.Paths.Prefix)} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
