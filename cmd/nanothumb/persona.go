package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/nanothumbnail/internal/library"
	"github.com/yoanbernabeu/nanothumbnail/internal/store"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

func newPersonaCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage reusable three-photo persona bundles",
		Long: `A persona is a named bundle of three reference photos (left profile,
front, right profile) that can be attached to a generation with the
--persona flag, so a recurring face stays consistent across thumbnails.`,
	}

	var leftPath, frontPath, rightPath string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a persona from three photo files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			photos := make(map[store.PersonaPosition]string, 3)
			for pos, path := range map[store.PersonaPosition]string{
				store.PositionLeft:  leftPath,
				store.PositionFront: frontPath,
				store.PositionRight: rightPath,
			} {
				if path == "" {
					return fmt.Errorf("%w: --%s is required", library.ErrMissingPhoto, pos)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s photo: %w", pos, err)
				}
				photos[pos] = models.EncodeDataURI(data, models.MIMETypeFromPath(path))
			}

			keyStore, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			persona, err := library.NewPersonas(keyStore.Dir(), imageStore).Create(ctx, args[0], photos)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Created persona %q (%s)\n", persona.Name, persona.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&leftPath, "left", "", "left profile photo file")
	createCmd.Flags().StringVar(&frontPath, "front", "", "front-facing photo file")
	createCmd.Flags().StringVar(&rightPath, "right", "", "right profile photo file")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			keyStore, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			personas, err := library.NewPersonas(keyStore.Dir(), imageStore).List(ctx)
			if err != nil {
				return err
			}
			if len(personas) == 0 {
				fmt.Fprintln(app.Out, "No personas yet")
				return nil
			}
			for _, p := range personas {
				state := ""
				if !p.Complete {
					state = " [incomplete]"
				}
				fmt.Fprintf(app.Out, "%s  %s  (created %s)%s\n", p.ID, p.Name, humanize.Time(p.CreatedAt), state)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a persona and its photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			keyStore, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			if err := library.NewPersonas(keyStore.Dir(), imageStore).Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted persona %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <id> <dir>",
		Short: "Write a persona's photos into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			keyStore, imageStore, _, err := openStores()
			if err != nil {
				return err
			}
			defer imageStore.Close()

			photos, err := library.NewPersonas(keyStore.Dir(), imageStore).Photos(ctx, args[0])
			if err != nil {
				return err
			}
			saver := app.NewSaver()
			for i, pos := range store.PersonaPositions() {
				mimeType, _, err := models.ParseDataURI(photos[i])
				if err != nil {
					return err
				}
				output := fmt.Sprintf("%s/%s-%s.%s", args[1], args[0], pos, models.ExtensionFromMIME(mimeType))
				if err := saver.Save(ctx, photos[i], output); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Saved: %s\n", output)
			}
			return nil
		},
	})

	return cmd
}
