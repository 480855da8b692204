// Command feedctl runs and administers a diskuto server: serving the REST
// API, managing server-users, and operating on the underlying store
// (init/upgrade/prune/usage/reindex).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "Run and administer a diskuto server",
}

func main() {
	// A missing .env is normal (e.g. in production where config comes from
	// the real environment), so its error is deliberately ignored.
	_ = godotenv.Load()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(dbCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
