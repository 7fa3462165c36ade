package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jsh-team/nodeworker/cmd"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

// Version information set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersion(Version, BuildTime, GitCommit)

	// Set up signal handling for immediate shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalChan
		os.Exit(130)
	}()

	if err := cmd.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}
