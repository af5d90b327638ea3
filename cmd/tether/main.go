// The tether command runs either end of the protocol: the server that
// authenticates clients and answers their heartbeats, or a client that keeps a
// session with it alive. It also carries a small account management tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "tether",
		Short: "Session-oriented TCP protocol server, client and tools",
		Args:  cobra.ArbitraryArgs,
		Run:   unknownCommand,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing config.yaml")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountDeleteCmd)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(accountCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func unknownCommand(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		_ = cmd.Help()
		return
	}
	fmt.Println("Did not understand arguments! Try 'server' or 'client'")
}
