package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/nanothumbnail/internal/generator"
	"github.com/yoanbernabeu/nanothumbnail/internal/history"
	"github.com/yoanbernabeu/nanothumbnail/internal/image"
	"github.com/yoanbernabeu/nanothumbnail/internal/keys"
	"github.com/yoanbernabeu/nanothumbnail/internal/library"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider/gemini"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider/openrouter"
	"github.com/yoanbernabeu/nanothumbnail/internal/provider/replicate"
	"github.com/yoanbernabeu/nanothumbnail/internal/store"
	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagProvider    string
	flagAspectRatio string
	flagResolution  string
	flagFormat      string
	flagSafety      string
	flagReferences  []string
	flagFromHistory []int
	flagFromLibrary []string
	flagPersona     string
	flagAPIKey      string
	flagOutput      string
	flagSave        bool
	flagProxy       string
	flagVerbose     bool
)

// App carries the injectable collaborators so tests can run commands
// against fakes.
type App struct {
	Out         io.Writer
	Err         io.Writer
	GetEnv      func(string) string
	NewProvider func(providerType models.ProviderType, cfg *provider.Config) (provider.Provider, error)
	NewSaver    func() *image.Saver
}

func DefaultApp() *App {
	return &App{
		Out:         os.Stdout,
		Err:         os.Stderr,
		GetEnv:      os.Getenv,
		NewProvider: newProvider,
		NewSaver:    image.NewSaver,
	}
}

func newProvider(providerType models.ProviderType, cfg *provider.Config) (provider.Provider, error) {
	switch providerType {
	case models.ProviderReplicate:
		return replicate.New(cfg)
	case models.ProviderGemini:
		return gemini.New(cfg)
	case models.ProviderOpenRouter:
		return openrouter.New(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", provider.ErrProviderNotFound, providerType)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nanothumb [prompt]",
		Short: "Generate YouTube thumbnails with AI image providers",
		Long: `nanothumb turns a text prompt (and optional reference images) into a
downloadable YouTube thumbnail by calling one of several image
generation providers.

Supported providers:
  - replicate  (google/nano-banana-pro, asynchronous job polling)
  - gemini     (gemini-3-pro-image-preview, single call)
  - openrouter (google/gemini-3-pro-image-preview, chat completions)

Examples:
  nanothumb "cat astronaut floating in space"
  nanothumb -p gemini -a 1:1 "minimalist tech logo"
  nanothumb -r face.png -r logo.png "me reviewing the new phone"`,
		Args:    cobra.ExactArgs(1),
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, app)
		},
	}

	cmd.Flags().StringVarP(&flagProvider, "provider", "p", "", "provider to use (replicate, gemini, openrouter); defaults to the configured one")
	cmd.Flags().StringVarP(&flagAspectRatio, "aspect-ratio", "a", "", "aspect ratio (16:9, 9:16, 1:1, 4:3, match_input_image)")
	cmd.Flags().StringVar(&flagResolution, "resolution", "", "resolution (1K, 2K, 4K)")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", "", "output format (png, jpeg, webp)")
	cmd.Flags().StringVar(&flagSafety, "safety", "", "safety filter level (replicate only)")
	cmd.Flags().StringArrayVarP(&flagReferences, "reference", "r", nil, "reference image file (repeatable, max 14)")
	cmd.Flags().IntSliceVar(&flagFromHistory, "from-history", nil, "history index whose image is added as a reference (repeatable)")
	cmd.Flags().StringArrayVar(&flagFromLibrary, "from-library", nil, "library id whose image is added as a reference (repeatable)")
	cmd.Flags().StringVar(&flagPersona, "persona", "", "persona id whose photos are added as references")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to the stored key, then the provider's environment variable)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename")
	cmd.Flags().BoolVar(&flagSave, "save", false, "also keep a copy of the image in the local store")
	cmd.Flags().StringVar(&flagProxy, "proxy", "", "relay URL for providers that need one")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log requests and responses (credentials redacted)")

	cmd.AddCommand(newKeysCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newLibraryCmd(app))
	cmd.AddCommand(newPersonaCmd(app))
	cmd.AddCommand(newThumbnailCmd(app))
	cmd.AddCommand(newRelayCmd(app))

	return cmd
}

// openStores wires the settings store, object store and history manager
// the subcommands share.
func openStores() (*keys.Store, *store.Store, *history.Manager, error) {
	keyStore, err := keys.NewStore()
	if err != nil {
		return nil, nil, nil, err
	}
	storePath, err := store.DefaultPath()
	if err != nil {
		return nil, nil, nil, err
	}
	imageStore := store.New(storePath)
	hist, err := history.NewManager(history.DefaultPath(keyStore.Dir()), imageStore)
	if err != nil {
		return nil, nil, nil, err
	}
	return keyStore, imageStore, hist, nil
}

func runGenerate(_ *cobra.Command, args []string, app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prompt := args[0]

	keyStore, imageStore, hist, err := openStores()
	if err != nil {
		return err
	}
	defer imageStore.Close()

	settings, err := keyStore.Load()
	if err != nil {
		return err
	}

	providerType := settings.Provider
	if flagProvider != "" {
		providerType = models.ProviderType(flagProvider)
		if !providerType.IsValid() {
			return fmt.Errorf("unknown provider %q: must be one of %v", flagProvider, models.ValidProviders())
		}
	}

	apiKey, source, err := resolveKey(app, providerType)
	if err != nil {
		return err
	}
	if flagVerbose {
		fmt.Fprintf(app.Err, "Using API key from %s\n", source)
	}

	req := models.NewRequest(prompt)
	if flagAspectRatio != "" {
		req.AspectRatio = models.AspectRatio(flagAspectRatio)
	}
	if flagResolution != "" {
		req.Resolution = models.Resolution(flagResolution)
	}
	if flagFormat != "" {
		req.Format = models.OutputFormat(flagFormat)
	}
	if flagSafety != "" {
		req.Safety = models.SafetyLevel(flagSafety)
	}

	refs := history.NewReferenceSet()
	if flagPersona != "" {
		photos, err := library.NewPersonas(keyStore.Dir(), imageStore).Photos(ctx, flagPersona)
		if err != nil {
			return err
		}
		for _, photo := range photos {
			if err := refs.Add(photo); err != nil {
				return err
			}
		}
	}
	for _, index := range flagFromHistory {
		entry, err := hist.Get(index)
		if err != nil {
			return err
		}
		dataURI, err := hist.ResolveImage(ctx, entry)
		if err != nil {
			return err
		}
		if err := refs.Add(dataURI); err != nil {
			return err
		}
	}
	lib := library.New(imageStore)
	for _, id := range flagFromLibrary {
		dataURI, err := lib.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := refs.Add(dataURI); err != nil {
			return err
		}
	}
	for _, path := range flagReferences {
		if err := refs.AddFile(path); err != nil {
			return err
		}
	}
	req.ReferenceImages = refs.Images()

	providerCfg := &provider.Config{
		APIKey:   apiKey,
		ProxyURL: flagProxy,
		Verbose:  flagVerbose,
		Progress: func(status string, elapsed time.Duration) {
			fmt.Fprintf(app.Err, "Working... (%.1fs) status: %s\n", elapsed.Seconds(), status)
		},
	}
	prov, err := app.NewProvider(providerType, providerCfg)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	factory := provider.NewFactory()
	factory.Register(prov)

	gen := generator.New(&generator.Config{
		Factory:     factory,
		History:     hist,
		Store:       imageStore,
		SaveLocally: flagSave || settings.SaveLocally,
	})

	fmt.Fprintf(app.Out, "Generating with %s...\n", providerType)

	result, err := gen.Generate(ctx, providerType, req)
	if err != nil {
		if diag := provider.Diagnostic(err); diag != "" {
			fmt.Fprintln(app.Err, diag)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	output := flagOutput
	if output == "" {
		output = image.GenerateFilename(req.Format, time.Now())
	}
	if err := app.NewSaver().Save(ctx, result.ImageURL, output); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Saved: %s\n", output)
	if result.History.LocalID != "" {
		fmt.Fprintf(app.Out, "Stored locally as %s\n", result.History.LocalID)
	}
	fmt.Fprintln(app.Out, "Done!")
	return nil
}

// resolveKey follows the flag > stored slot > environment variable order,
// going through App.GetEnv so tests control the environment.
func resolveKey(app *App, providerType models.ProviderType) (string, string, error) {
	if flagAPIKey != "" {
		return flagAPIKey, "command-line flag", nil
	}
	apiKey, source, err := keys.ResolveKey("", providerType)
	if err == nil {
		return apiKey, source, nil
	}
	envVar := keys.EnvVar(providerType)
	if envKey := app.GetEnv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}
	return "", "", err
}
