package cmd

import (
	"github.com/spf13/cobra"
)

func newEchoCommand(a *app) *cobra.Command {
	var chunked bool
	cmd := &cobra.Command{
		Use:   "echo <file>",
		Short: "Send a file to the echo route and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, size, err := openSized(cmd, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			if chunked {
				size = -1
			}
			_, err = a.client.Echo(cmd.Context(), src, size, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVar(&chunked, "chunked", false, "send without a Content-Length")
	return cmd
}
