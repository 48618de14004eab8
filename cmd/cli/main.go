package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host     string
	memberID string
	roles    string
)

var rootCmd = &cobra.Command{
	Use:   "clubledger-cli",
	Short: "A CLI to interact with the clubledger server",
	Long: `A command-line interface for making requests to the various endpoints
of the clubledger application. Requests are sent as the member given by
--member with the roles given by --roles.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&memberID, "member", os.Getenv("CLUBLEDGER_MEMBER"), "Member id to act as")
	rootCmd.PersistentFlags().StringVar(&roles, "roles", "Member", "Comma separated roles of the member")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
