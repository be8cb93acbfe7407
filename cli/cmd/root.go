package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"worker/cli/pkg/client"
	"worker/cli/pkg/config"
)

// app holds what subcommands share once the root command has loaded the
// configuration.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	client *client.Client
}

// NewRootCommand builds the streamctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string

	root := &cobra.Command{
		Use:   "streamctl",
		Short: "Client for the streamd body streaming service",
		Long: `streamctl uploads, downloads and echoes bodies through a streamd server.
Uploads of known size are sent with a fixed Content-Length and fail if the
source produces a different number of bytes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				a.v.SetConfigFile(cfgFile)
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			c, err := client.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			a.cfg, a.client = cfg, c
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.streamctl/config.yaml)")
	flags.String("server", "", "streamd server URL")
	flags.Bool("h2c", false, "use HTTP/2 over cleartext")
	flags.Duration("timeout", 0, "request timeout (0 disables)")
	_ = a.v.BindPFlag("server.url", flags.Lookup("server"))
	_ = a.v.BindPFlag("server.h2c", flags.Lookup("h2c"))
	_ = a.v.BindPFlag("server.timeout", flags.Lookup("timeout"))

	root.AddCommand(
		newPutCommand(a),
		newGetCommand(a),
		newEchoCommand(a),
		newListCommand(a),
		newDeleteCommand(a),
	)
	return root
}

// Execute runs streamctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
