// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ipstack",
	Short: "A user-space TCP/IP stack over raw packet capture",
	Long: `ipstack runs a user-space network stack on top of a captured interface.
It answers ARP, ICMP echo and IPv6 Neighbor Discovery on its own addresses,
delivers UDP to locally opened ports, and ships with a ping client.

The stack never touches the kernel's addresses: it claims its own IPv4
address on the wire and derives a link-local IPv6 address from its MAC.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml",
		"config file path")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
