// Package main is the entry point for exportctl.
// exportctl submits 3D model exports and ingestions and watches their jobs.
package main

import (
	"os"

	"tileexport/cmd/exportctl/cmd"
	"tileexport/internal/config"
)

func main() {
	if wd, err := os.Getwd(); err == nil {
		config.LoadDotEnv(wd)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
