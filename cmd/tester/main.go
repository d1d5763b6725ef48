package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"cadverse/internal/shared/config"
	"cadverse/internal/shared/logger"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "cadverse.ini")
	cfg, err := config.Load(iniPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if err := logger.InitWithWriter(cfg.LogConf, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	t, err := newTester(cfg, bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create tester")
	}

	fmt.Println("CADverse interactive test client")
	fmt.Printf("Start the server first: go run ./cmd/server (target %s)\n", t.wsURL)
	t.run()
}
