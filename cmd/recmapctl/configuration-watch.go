package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadogan/recmap/pkg/config"
)

// configurationWatchCmd represents the configuration watch command
var configurationWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the config file and reload it when it changes",
	Long: `Watch the config file and reload it when it changes.

Each reload revalidates the file and prints the resulting attributes,
so the command doubles as a live lint of edits to recmap.yml.

Example:
  recmapctl configuration watch`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := watchConfiguration(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch configuration: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configurationCmd.AddCommand(configurationWatchCmd)
}

func watchConfiguration() error {
	fmt.Printf("Watching %s for changes\n", config.Get().ConfigFilePath())

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		close(stop)
	}()

	return config.Watch(stop, func(cfg *config.Config, err error) {
		stamp := time.Now().Format(time.RFC3339)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] Reload failed: %v\n", stamp, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "[%s] Config invalid: %v\n", stamp, err)
			return
		}
		fmt.Printf("[%s] Config reloaded\n", stamp)
		fmt.Print(cfg.FormatText())
	})
}
