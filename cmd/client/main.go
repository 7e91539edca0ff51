package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gostones/mediavault/internal/client"
	"github.com/gostones/mediavault/internal/config"
	"github.com/gostones/mediavault/internal/logging"
	"github.com/gostones/mediavault/internal/types"
	"github.com/gostones/mediavault/internal/upload"
)

const refreshInterval = 500 * time.Millisecond

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:          "mediavault",
		Short:        "Upload images straight to the media bucket",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("api_url", "http://localhost:4000", "signing server base URL")
	f.String("log_level", "info", "log level")
	f.Bool("client_multipart", false, "upload large files in parts")
	_ = v.BindPFlags(f)

	root.AddCommand(
		newUploadCmd(v),
		newListCmd(v),
		newDeleteCmd(v),
		newAbortCmd(v),
	)
	return root
}

func load(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func newUploadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			log := logging.Console(cfg.LogLevel, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var sources []upload.Source
			for _, path := range args {
				src, closer, err := upload.OpenFile(path)
				if err != nil {
					return err
				}
				defer closer.Close()
				sources = append(sources, src)
			}

			u := upload.New(client.New(cfg.APIURL), cfg.Limits(), upload.WithLogger(log))
			items, err := u.Submit(ctx, sources)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("no files were accepted")
			}

			return watch(cmd.OutOrStdout(), u)
		},
	}
}

// watch prints progress until every item is terminal, then a summary.
func watch(out io.Writer, u *upload.Uploader) error {
	done := make(chan struct{})
	go func() {
		u.Wait()
		close(done)
	}()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for running := true; running; {
		select {
		case <-done:
			running = false
		case <-ticker.C:
			for _, it := range u.Registry().Snapshot() {
				if it.Status == upload.StatusUploading {
					fmt.Fprintf(out, "%s %5.1f%% of %s\n", it.Name, it.Progress, humanize.IBytes(uint64(it.Size)))
				}
			}
		}
	}

	failed := 0
	for _, it := range u.Registry().Snapshot() {
		switch it.Status {
		case upload.StatusCompleted:
			fmt.Fprintf(out, "ok    %s -> %s\n", it.Name, it.Result.URL)
		default:
			failed++
			fmt.Fprintf(out, "fail  %s: %s\n", it.Name, it.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(u.Registry().Snapshot()))
	}
	return nil
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded media, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			files, err := client.New(cfg.APIURL).List(cmd.Context())
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
}

func printFiles(out io.Writer, files []types.MediaFile) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED\tURL")
	for _, f := range files {
		modified := "-"
		if t, err := time.Parse(time.RFC3339, f.LastModified); err == nil {
			modified = humanize.Time(t)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Key, humanize.IBytes(uint64(f.Size)), modified, f.URL)
	}
	w.Flush()
}

func newDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			if err := client.New(cfg.APIURL).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newAbortCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "abort KEY UPLOAD_ID",
		Short: "Abort a multipart upload left open by a failed transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			req := types.AbortRequest{Key: args[0], UploadID: args[1]}
			if err := client.New(cfg.APIURL).AbortMultipart(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aborted %s\n", args[0])
			return nil
		},
	}
}
