// Package main is the entry point for the neuPham sync daemon.
package main

import (
	"log/slog"
	"os"

	"github.com/yadaklinus/neuPham-sub000/cmd/neupham-syncd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
