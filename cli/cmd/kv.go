package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"worker/cli/pkg/output"
)

func newPutCommand(a *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Upload a file under key",
		Long:  "Upload a file under key. Use - to read from stdin, which is buffered to learn its length.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, path := args[0], args[1]
			src, size, err := openSized(cmd, path)
			if err != nil {
				return err
			}
			defer src.Close()

			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}
			result, err := a.client.Put(cmd.Context(), key, src, size, contentType)
			if err != nil {
				return err
			}

			format, err := output.GetFormatFromCmd(cmd)
			if err != nil {
				return err
			}
			f := output.New(format)
			f.SetWriter(cmd.OutOrStdout())
			return f.Output(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Stored %s (%d bytes)\n", result.Key, result.Size)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "content type (default: guessed from the file extension)")
	output.AddFormatFlag(cmd)
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var (
		outFile string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Download the value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			if asJSON {
				var doc any
				if err := a.client.GetJSON(cmd.Context(), args[0], &doc); err != nil {
					return err
				}
				enc := json.NewEncoder(dst)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			n, err := a.client.Get(cmd.Context(), args[0], dst)
			if err != nil {
				return err
			}
			if outFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "file", "f", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "fetch the stored JSON document, pretty-printed")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "ls [prefix]",
		Aliases: []string{"list"},
		Short:   "List stored keys",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := a.client.List(cmd.Context(), prefix, limit)
			if err != nil {
				return err
			}

			format, err := output.GetFormatFromCmd(cmd)
			if err != nil {
				return err
			}
			f := output.New(format)
			f.SetWriter(cmd.OutOrStdout())
			return f.Output(map[string]any{"keys": keys}, func(w io.Writer) error {
				rows := make([][]string, 0, len(keys))
				for i, k := range keys {
					rows = append(rows, []string{strconv.Itoa(i + 1), k})
				}
				return output.Table(w, []string{"#", "KEY"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of keys (0 for all)")
	output.AddFormatFlag(cmd)
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"delete"},
		Short:   "Delete the value stored under key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// openSized opens path, or buffers stdin for "-", and reports its size.
func openSized(cmd *cobra.Command, path string) (io.ReadCloser, int64, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, 0, fmt.Errorf("read stdin: %w", err)
		}
		return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is not a regular file", path)
	}
	return f, info.Size(), nil
}
