package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadogan/recmap/pkg/config"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
	Long:  `Manage the database schema and migrations.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'db' requires a subcommand (migrate, wait)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
}

// databaseURL resolves the connection URL from the layered config;
// RECMAP_DATABASE_URL overrides the file there.
func databaseURL() string {
	url, _ := config.Get().ConnectionURL("")
	return url
}
