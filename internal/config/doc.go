// SPDX-License-Identifier: MPL-2.0

// Package config handles tool configuration using Viper with TOML as the file
// format.
//
// Configuration is loaded from ~/.config/tm/config.toml (or the XDG
// equivalent on Linux, ~/Library/Application Support/tm/config.toml on macOS,
// %APPDATA%\tm\config.toml on Windows). Environment variables prefixed with
// TM_ override file values, and command-line flags override both.
package config
