package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/objcache/cachemgr/cmd/serve"
)

const Version = "0.1.0"

var RootCmd = &cobra.Command{
	Use:   "cachemgrd",
	Short: "external cache-manager server core",
	Long: fmt.Sprintf(`cachemgrd (v%s)

An external cache-manager plugin server core for a content-addressed
filesystem client, speaking the framed request/reply protocol over a
unix or tcp endpoint.`, Version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cachemgrd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cachemgrd v%s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(serve.Cmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command. This is called
// by main.main(). It only needs to happen once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
