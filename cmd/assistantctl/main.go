package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "assistantctl",
		Short: "CLI client for the assistant REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Assistant service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID (required for user operations)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
