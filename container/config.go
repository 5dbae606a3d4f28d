// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"log/slog"

	"github.com/rad-android/rad/fuseimg"
	"github.com/rad-android/rad/image"
	"github.com/rad-android/rad/lib/config"
	"github.com/rad-android/rad/namespace"
	"github.com/rad-android/rad/nsinit"
)

// FromConfig builds a container Config from the rad configuration file
// settings.
func FromConfig(settings *config.Config, logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}

	var flags namespace.Flags
	if settings.Container.Namespaces.PID {
		flags |= namespace.PID
	}
	if settings.Container.Namespaces.UTS {
		flags |= namespace.UTS
	}
	if settings.Container.Namespaces.IPC {
		flags |= namespace.IPC
	}

	binderfsMode := nsinit.BinderfsOff
	switch {
	case settings.Binderfs.Enabled && settings.Binderfs.Required:
		binderfsMode = nsinit.BinderfsRequired
	case settings.Binderfs.Enabled:
		binderfsMode = nsinit.BinderfsOptional
	}

	return Config{
		Root:   settings.Paths.Prefix,
		Images: image.FromDir(settings.Paths.Images),
		Mounter: fuseimg.New(fuseimg.Config{
			Fuse2fs:    settings.Tools.Fuse2fs,
			Fusermount: settings.Tools.Fusermount,
			Logger:     logger,
		}),
		Nsenter:     settings.Tools.Nsenter,
		Namespaces:  flags,
		Hostname:    settings.Container.Hostname,
		Binderfs:    binderfsMode,
		LaunchProbe: settings.Container.LaunchProbe.Std(),
		StopGrace:   settings.Container.StopGrace.Std(),
		BootPoll:    settings.Container.BootPoll.Std(),
		PIDFile:     settings.Container.PIDFile,
		Logger:      logger,
	}
}
