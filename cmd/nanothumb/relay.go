package main

import (
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/nanothumbnail/internal/relay"
)

const defaultRelayPort = "8787"

func newRelayCmd(app *App) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the CORS relay for browser front ends",
		Long: `Serve the two endpoints a browser front end needs: /proxy, a
whitelisted reverse proxy toward the provider APIs, and /thumbnail,
which fetches a video's current thumbnail as base64 JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional; a missing .env is not an error.
			_ = godotenv.Load()

			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

			if port == "" {
				port = app.GetEnv("NANOTHUMB_RELAY_PORT")
			}
			if port == "" {
				port = defaultRelayPort
			}

			addr := fmt.Sprintf(":%s", port)
			log.WithField("addr", addr).Info("relay listening")
			return http.ListenAndServe(addr, relay.NewServer(log).Handler())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to NANOTHUMB_RELAY_PORT, then 8787)")
	return cmd
}
