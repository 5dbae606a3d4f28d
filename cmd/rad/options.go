// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/rad-android/rad/container"
	"github.com/rad-android/rad/lib/config"
)

// commonOptions are the flags every sandbox command accepts.
type commonOptions struct {
	configPath string
	prefix     string
	images     string
	debug      bool
}

func (o *commonOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "configuration file (default $RAD_CONFIG)")
	flagSet.StringVar(&o.prefix, "prefix", "", "sandbox root directory")
	flagSet.StringVar(&o.images, "images", "", "directory holding system.img and vendor.img")
	flagSet.BoolVar(&o.debug, "debug", false, "debug logging")
}

// settings loads the configuration and applies flag overrides.
func (o *commonOptions) settings() (*config.Config, error) {
	var settings *config.Config
	var err error
	if o.configPath != "" {
		settings, err = config.LoadFile(o.configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.prefix != "" {
		if settings.Paths.Prefix, err = filepath.Abs(o.prefix); err != nil {
			return nil, fmt.Errorf("resolving --prefix: %w", err)
		}
	}
	if o.images != "" {
		if settings.Paths.Images, err = filepath.Abs(o.images); err != nil {
			return nil, fmt.Errorf("resolving --images: %w", err)
		}
	}
	return settings, nil
}

// containerConfig loads settings and builds the container config and
// the logger commands use.
func (o *commonOptions) containerConfig() (container.Config, *config.Config, *slog.Logger, error) {
	settings, err := o.settings()
	if err != nil {
		return container.Config{}, nil, nil, err
	}
	logger := newLogger(o.debug)
	return container.FromConfig(settings, logger), settings, logger, nil
}

// newLogger picks a text handler for terminals and JSON otherwise.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("RAD_DEBUG") != "" {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
