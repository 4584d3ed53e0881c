package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/nanothumbnail/internal/library"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

func newLibraryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the saved reference image library",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <file>",
		Short: "Save an image file to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			_, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			lib := library.New(imageStore)
			id, err := lib.Add(ctx, models.EncodeDataURI(data, models.MIMETypeFromPath(args[0])))
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added to library: %s\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save-history <index>",
		Short: "Copy a history image into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
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

			lib := library.New(imageStore)
			id, err := lib.Add(ctx, dataURI)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added to library: %s\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List library entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			_, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			entries, err := library.New(imageStore).List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(app.Out, "Library is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(app.Out, "%s  %s  (%s)\n", e.ID, humanize.Time(e.Saved.Timestamp), humanize.Bytes(uint64(len(e.DataURI))))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			_, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			if err := library.New(imageStore).Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a library image to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			_, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			dataURI, err := library.New(imageStore).Get(ctx, args[0])
			if err != nil {
				return err
			}
			if err := app.NewSaver().Save(ctx, dataURI, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Saved: %s\n", args[1])
			return nil
		},
	})

	return cmd
}
