package main

import (
	"os"
	"runtime/debug"
)

// Version may be set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func effectiveVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return v
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return v
}

func main() {
	rootCmd.Version = effectiveVersion(Version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
