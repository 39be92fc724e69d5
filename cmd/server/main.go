package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "marketfront",
	Short:   "Marketplace storefront server with wallet sign-in",
	Long:    `Serves the wallet popup login pages, the auth state API and its event stream.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the JSON config file (environment variables override it)")
	rootCmd.SetVersionTemplate("marketfront version {{.Version}}\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
