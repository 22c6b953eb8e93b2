package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/xprof/internal/settings"
	"github.com/maxgio92/xprof/pkg/cmd/attach"
	"github.com/maxgio92/xprof/pkg/cmd/options"
	"github.com/maxgio92/xprof/pkg/cmd/profile"
	"github.com/maxgio92/xprof/pkg/cmd/wait"
)

const logLevelInfo = "info"

type Options struct {
	*options.CommonOptions
}

type Option func(o *Options)

func NewOptions(opts ...Option) *Options {
	o := new(Options)
	o.CommonOptions = new(options.CommonOptions)

	for _, f := range opts {
		f(o)
	}

	return o
}

func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Ctx = ctx
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithLogLevel(level string) Option {
	return func(o *Options) {
		o.LogLevel = level
	}
}

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s is a sampling CPU profiler", settings.CmdName),
		Long: fmt.Sprintf(`
%s samples on-CPU threads system wide or per process, deduplicates their stack traces
and aggregates how many times each distinct stack has been seen.
`, settings.CmdName),
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", logLevelInfo, "Log level (trace, debug, info, warn, error, fatal, panic)")

	cmd.AddCommand(profile.NewCommand(profile.NewOptions(
		profile.WithContext(o.Ctx),
		profile.WithLogger(o.Logger),
	)))
	cmd.AddCommand(attach.NewCommand(attach.NewOptions(
		attach.WithContext(o.Ctx),
		attach.WithLogger(o.Logger),
	)))
	cmd.AddCommand(wait.NewCommand(wait.NewOptions(
		wait.WithContext(o.Ctx),
		wait.WithLogger(o.Logger),
	)))

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	go func() {
		<-ctx.Done()
		cancel()
	}()

	opts := NewOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		os.Exit(1)
	}
}
