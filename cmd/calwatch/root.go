package main

import (
	"os"

	"github.com/spf13/cobra"

	"staybook/calclient"
)

var (
	serverURL string
	token     string
	client    *calclient.Client
)

var rootCmd = &cobra.Command{
	Use:   "calwatch",
	Short: "Watch and check the property calendar",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		client = calclient.NewClient(serverURL)
		client.Token = token
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Booking server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CALWATCH_TOKEN"), "Staff token for admin endpoints")
}
