package attach

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/xprof/internal/settings"
)

const CmdName = "attach"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Attach a sampling BPF program to the CPU clock",
		Long: fmt.Sprintf(`
%s loads a sampling BPF object, attaches it to a software CPU clock perf event
on every CPU and drains the kernel-resident stack and count tables on exit.
`, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}
	cmd.Flags().StringVar(&o.objPath, "obj", "", "Path to the sampling BPF object file")
	cmd.Flags().IntVar(&o.pid, "pid", -1, "Filter the process by PID")
	cmd.Flags().Uint32Var(&o.frequency, "frequency", 100, "Per-CPU sampling frequency in Hz")
	cmd.Flags().DurationVar(&o.duration, "duration", 10*time.Second, "Profiling duration")

	cmd.Flags().StringVarP(&o.output, "output", "o", "", fmt.Sprintf("Report file path (defaults to %s, - for stdout)", settings.ReportFileName))
	cmd.Flags().StringVar(&o.profilePath, "profile", "", "pprof profile file path (disabled when empty)")

	cmd.MarkFlagRequired("obj")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	var err error
	o.LogLevel, err = cmd.Flags().GetString("log-level")
	if err != nil {
		return errors.Wrap(err, "failed to get log level")
	}

	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		o.Logger.Fatal().Err(err).Msg("invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel).With().Str("component", CmdName).Logger()

	return o.run()
}
