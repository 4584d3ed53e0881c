package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and reuse past generations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the generation history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, imageStore, hist, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			items := hist.Items()
			if len(items) == 0 {
				fmt.Fprintln(app.Out, "History is empty")
				return nil
			}
			for i, item := range items {
				local := ""
				if item.LocalID != "" {
					local = " [saved locally]"
				}
				fmt.Fprintf(app.Out, "%2d. %s (%s)%s\n", i, item.Prompt, humanize.Time(item.Date), local)
				if item.Parameters != nil {
					p := item.Parameters
					fmt.Fprintf(app.Out, "    %s, %s, %s via %s\n", p.AspectRatio, p.Resolution, p.Format, p.Provider)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <index>",
		Short: "Save a history image to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}

			_, imageStore, hist, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			item, err := hist.Get(index)
			if err != nil {
				return err
			}
			dataURI, err := hist.ResolveImage(ctx, item)
			if err != nil {
				return err
			}

			format := "png"
			if item.Parameters != nil && item.Parameters.Format != "" {
				format = item.Parameters.Format.String()
			}
			output := fmt.Sprintf("nano-thumbnail-history-%d.%s", index, format)
			if err := app.NewSaver().Save(ctx, dataURI, output); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Saved: %s\n", output)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reuse <index>",
		Short: "Print the command that reruns a past generation",
		Long: `Print the nanothumb invocation that pre-fills the prompt and
parameters of a past generation. Nothing is generated and the history
itself is untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}

			_, imageStore, hist, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			req, err := hist.Reuse(index)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "nanothumb -a %s --resolution %s -f %s --safety %s %q\n",
				req.AspectRatio, req.Resolution, req.Format, req.Safety, req.Prompt)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the whole history and its cached images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			_, imageStore, hist, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			if err := hist.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "History cleared")
			return nil
		},
	})

	return cmd
}
