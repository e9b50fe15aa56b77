package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recmapctl",
	Short: "Administer a recmap database",
	Long: `recmapctl manages the database and configuration behind the recmap
record-mapping engine: schema migrations, the data encryption key and
the layered configuration file.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
