/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

// Version is the current version of opswindow.
// This is set at build time via ldflags:
//
//	-X github.com/opswindow/opswindow/internal/version.Version=X.Y.Z
var Version = "0.3.0"
