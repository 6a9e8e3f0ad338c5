package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/logging"

	// Register processors via init()
	_ "github.com/pearcec/kioskstats/cmd/kioskstats/processors/channels"
	_ "github.com/pearcec/kioskstats/cmd/kioskstats/processors/eventlog"
	_ "github.com/pearcec/kioskstats/cmd/kioskstats/processors/stats"
	_ "github.com/pearcec/kioskstats/cmd/kioskstats/processors/types"
)

func main() {
	// KIOSKSTATS_* and LOG_* settings may come from a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	processors.RegisterCommands(rootCmd, loadConfig)

	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
