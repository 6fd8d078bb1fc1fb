package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"cvbuilder/internal/builder"
	"cvbuilder/internal/client"
	"cvbuilder/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// rootOptions 是所有子命令共用的参数。
type rootOptions struct {
	apiURL  string
	timeout time.Duration
	image   string
	verbose bool
	fs      afero.Fs
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	cmd := &cobra.Command{
		Use:           "cvctl",
		Short:         "Check, save and export CV documents",
		Long:          "cvctl reads a CV document from a JSON file and talks to the CV builder API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", "", "API base URL (default from CV_API_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (default from CV_API_TIMEOUT)")
	flags.StringVar(&opts.image, "image", "", "profile image to attach")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests")

	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newSaveCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	return cmd
}

// newStore 按配置和命令行参数组装一个 Store。flag 优先于环境变量。
func (o *rootOptions) newStore(downloadDir string) (*builder.Store, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.BaseURL = o.apiURL
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []builder.Option{builder.WithLogger(logger)}
	if downloadDir != "" {
		opts = append(opts, builder.WithDownloader(builder.NewFileDownloader(o.fs, downloadDir)))
	}
	return builder.New(client.New(cfg.BaseURL, cfg.Timeout, client.WithLogger(logger)), opts...), nil
}
