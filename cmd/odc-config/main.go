// cmd/odc-config/main.go
//
// odc-config – operator CLI for the datacube configuration engine.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees warnings to stderr when running in
//     a TTY, so deprecation notices reach the operator).
//
//  3. Hand off to the cobra command tree (check, environments, paths,
//     serve).
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/opendatacube/odc-config/internal/logger"
)

const serverEnvPath = "/usr/local/etc/odc-config/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stderr is a character device.
func runningInTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// logDir honors ODC_LOG_DIR, then the user cache directory.
func logDir() string {
	if d := os.Getenv("ODC_LOG_DIR"); d != "" {
		return d
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "logs"
	}
	return filepath.Join(cache, "odc-config")
}

func init() { loadEnv() }

func main() {
	if _, err := logger.New(logDir(), runningInTTY()); err != nil {
		// Logging is best-effort for a CLI; keep going on the default
		// no-op globals.
		fmt.Fprintf(os.Stderr, "odc-config: logger unavailable: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "odc-config: %v\n", err)
		os.Exit(1)
	}
}
