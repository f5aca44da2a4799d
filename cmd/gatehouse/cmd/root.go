package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a minimal user authentication service",
	Long: `A minimal authentication service: user registration, credential
verification, and opaque server-side session tokens exchanged via a cookie.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
