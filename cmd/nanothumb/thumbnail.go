package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/nanothumbnail/internal/security"
	"github.com/yoanbernabeu/nanothumbnail/internal/youtube"
)

func newThumbnailCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "thumbnail <videoId>",
		Short: "Download the existing thumbnail of a YouTube video",
		Long: `Download the current thumbnail of a published video, trying the
highest quality first. Useful as a reference image for a restyle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			videoID := args[0]
			if !youtube.ValidVideoID(videoID) {
				return youtube.ErrInvalidVideoID
			}

			dataURI, err := youtube.NewFetcher().Fetch(ctx, videoID)
			if err != nil {
				return err
			}

			if output == "" {
				output = security.SanitizeFilename(fmt.Sprintf("thumbnail-%s.jpg", videoID))
			}
			if err := app.NewSaver().Save(ctx, dataURI, output); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Saved: %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output filename")
	return cmd
}
