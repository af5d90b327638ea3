package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dcrodman/tether/internal/client"
	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/debug"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to the server and keep the session alive",
	Args:  cobra.NoArgs,
	Run:   ClientCommand,
}

func ClientCommand(cmd *cobra.Command, args []string) {
	config := loadConfig()

	logger, err := core.NewLogger(config)
	if err != nil {
		fmt.Println("error initializing logger:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	registry := prometheus.NewRegistry()
	if config.Debugging.Enabled {
		debug.StartUtilities(ctx, logger, config.Debugging.HTTPPort, registry)
	}

	cl := client.New(config, logger, core.NewMetrics(registry))
	if err := cl.Run(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
