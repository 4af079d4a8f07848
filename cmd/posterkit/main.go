// Command posterkit runs the poster editor server and renders posters
// from the command line.
package main

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eringen/posterkit"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "posterkit",
		Short:        "posterkit composes price posters from templates and photos",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newTemplatesCmd())
	return root
}

// loadConfig reads path when set and applies the environment overrides.
func loadConfig(path string) (posterkit.Config, error) {
	var cfg posterkit.Config
	if path != "" {
		var err error
		if cfg, err = posterkit.LoadConfigFile(path); err != nil {
			return posterkit.Config{}, err
		}
	}
	cfg.SessionSecret = os.Getenv("POSTERKIT_SESSION_SECRET")
	cfg.RemoveBgAPIKey = os.Getenv("REMOVEBG_API_KEY")
	cfg.CookieSecure = cfg.CookieSecure || os.Getenv("POSTERKIT_COOKIE_SECURE") == "true"
	return cfg, nil
}

func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *charmlog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func loggerFromContext(ctx context.Context) *charmlog.Logger {
	if l, ok := ctx.Value(loggerKey).(*charmlog.Logger); ok {
		return l
	}
	return charmlog.Default()
}
