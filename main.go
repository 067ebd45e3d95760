package main

import (
	"fmt"
	"os"

	"github.com/cattle-scans/backend/cmd"
	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/logging"
)

// Version and buildDate are set by the build process via ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version
	settings.BuildDate = buildDate

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
