// Command openveil serves the Open Veil REST API and runs its maintenance
// tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "openveil",
	Short: "Open Veil protocol and trial registry",
	Long: `openveil serves the Protocol and Trial REST API and provides the
maintenance commands around it: schema migration, claim token cleanup,
citation bundle export and bearer token issuance.

Configuration comes from OPENVEIL_* environment variables. Runtime settings
(api_access, guest_submissions, claim_token_expiry, ...) may be kept in a
YAML file passed with --settings; it is reloaded when it changes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("settings", "", "runtime settings file (overrides OPENVEIL_SETTINGS_FILE)")
	_ = viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
