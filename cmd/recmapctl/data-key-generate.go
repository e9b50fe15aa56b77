package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cadogan/recmap/pkg/crypt"
)

// dataKeyGenerateCmd represents the data-key > generate command
var dataKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a data encryption key",
	Long: `
Generate a data encryption key

Use this command to generate a new Base64-encoded 256 bit data encryption key. Once generated, this key should be placed into the environment of
any process using the engine. It will be used to encrypt every field declared encrypted before it reaches the database.

Example:

$ export RECMAP_ENCRYPTION_KEY="$(recmapctl data-key generate)"
`,
	Run: func(cmd *cobra.Command, args []string) {
		key, err := crypt.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s", crypt.EncodeKey(key))
	},
}

func init() {
	dataKeyCmd.AddCommand(dataKeyGenerateCmd)
}
