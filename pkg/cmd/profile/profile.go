package profile

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	pprofile "github.com/google/pprof/profile"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/xprof/internal/output"
	"github.com/maxgio92/xprof/internal/settings"
	"github.com/maxgio92/xprof/pkg/healthcheck"
	"github.com/maxgio92/xprof/pkg/metrics"
	"github.com/maxgio92/xprof/pkg/perf"
	"github.com/maxgio92/xprof/pkg/procscan"
	"github.com/maxgio92/xprof/pkg/report"
	"github.com/maxgio92/xprof/pkg/sample"
)

const CmdName = "profile"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Profile on-CPU time of running threads",
		Long: fmt.Sprintf(`
%s periodically samples the threads running on each CPU, deduplicates their stacks
and counts how many times each (process, user stack, kernel stack) tuple has been seen.
`, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}
	cmd.Flags().IntVar(&o.pid, "pid", -1, "Filter the process by PID")
	cmd.Flags().Uint64Var(&o.frequency, "frequency", perf.DefaultFrequency, "Per-CPU sampling frequency in Hz")
	cmd.Flags().DurationVar(&o.duration, "duration", 0, "Profiling duration (0 profiles until interrupted)")

	cmd.Flags().IntVar(&o.stackTraces, "stack-traces", sample.DefaultMaxStackTraces, "Max distinct stack traces to track")
	cmd.Flags().IntVar(&o.stackCounts, "stack-counts", sample.DefaultMaxStackCounts, "Max distinct stack counts to track")

	cmd.Flags().StringVarP(&o.output, "output", "o", "", fmt.Sprintf("Report file path (defaults to %s, - for stdout)", settings.ReportFileName))
	cmd.Flags().StringVar(&o.profilePath, "profile", "", "pprof profile file path (disabled when empty)")
	cmd.Flags().StringVar(&o.metricsAddress, "metrics-address", "", "Address to serve Prometheus metrics on (disabled when empty)")
	cmd.Flags().BoolVar(&o.status, "status", false, "Periodically print a status of the profiling session")

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

	stacks, err := sample.NewStackTable(sample.WithStackTableCapacity(o.stackTraces))
	if err != nil {
		return errors.Wrap(err, "failed to create the stack table")
	}
	counts, err := sample.NewCountTable(sample.WithCountTableCapacity(o.stackCounts))
	if err != nil {
		return errors.Wrap(err, "failed to create the count table")
	}

	registry := prometheus.NewRegistry()
	samplerMetrics := metrics.NewSamplerMetrics(registry)
	metrics.NewTableGauges(registry,
		func() float64 { return float64(stacks.Len()) },
		func() float64 { return float64(counts.Len()) },
	)

	sampler, err := sample.NewSampler(
		sample.WithSamplerStackTable(stacks),
		sample.WithSamplerCountTable(counts),
		sample.WithSamplerMetrics(samplerMetrics),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create the sampler")
	}

	scannerOpts := []procscan.ScannerOption{}
	if o.pid > 0 {
		scannerOpts = append(scannerOpts, procscan.WithTargetPIDs(uint32(o.pid)))
	}
	scanner, err := procscan.NewScanner(scannerOpts...)
	if err != nil {
		return errors.Wrap(err, "failed to create the task scanner")
	}

	source, err := perf.NewSource(
		perf.WithFrequency(o.frequency),
		perf.WithCPUs(runtime.NumCPU()),
		perf.WithReader(scanner),
		perf.WithHandler(sampler),
		perf.WithLogger(&o.Logger),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create the sampling source")
	}

	ctx := o.Ctx
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(o.Ctx, o.duration)
		defer cancel()
	}

	if o.metricsAddress != "" {
		o.serveMetrics(ctx, registry)
	}

	health := healthcheck.NewServer(settings.SockPath, o.Logger)
	if err := health.InitializeListener(ctx); err != nil {
		return errors.Wrap(err, "failed to start the readiness server")
	}
	defer health.ShutdownListener()
	health.NotifyReadiness()

	if o.status {
		go output.StatusBar(ctx, time.Second, func() {
			output.PrintRight(output.PrettyProfileStatus(
				totalSamples(counts),
				stacks.Len()*100/stacks.Cap(),
				counts.Len()*100/counts.Cap(),
			))
		})
	}

	start := time.Now()
	o.Logger.Info().Uint64("frequency", o.frequency).Int("pid", o.pid).Msg("profiling")
	if err := source.Run(ctx); err != nil {
		return errors.Wrap(err, "failed to run the sampling source")
	}
	elapsed := time.Since(start)

	return o.writeReports(stacks, counts, elapsed)
}

func (o *Options) writeReports(stacks *sample.StackTable, counts *sample.CountTable, elapsed time.Duration) error {
	records := report.Drain(stacks, counts)

	rep := report.NewReport(
		report.WithReportRecords(records),
		report.WithReportFrequency(o.frequency),
		report.WithReportDuration(elapsed.Seconds()),
	)

	w := os.Stdout
	if o.output != "-" {
		name := o.output
		if name == "" {
			name = settings.ReportFileName
		}
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "failed to create the report file")
		}
		defer f.Close()
		w = f
	}
	if err := rep.WriteReport(w); err != nil {
		return errors.Wrap(err, "failed to write the report")
	}

	if o.profilePath == "" {
		return nil
	}

	// Mappings of exited processes are gone, locations stay unmapped.
	mappings := make(map[uint32][]*pprofile.Mapping)
	for _, record := range records {
		if _, ok := mappings[record.PID]; ok {
			continue
		}
		mm, err := report.ReadProcMaps(record.PID)
		if err != nil {
			o.Logger.Debug().Err(err).Uint32("pid", record.PID).Msg("failed to read process mappings")
			continue
		}
		mappings[record.PID] = mm
	}

	prof := report.BuildProfile(records, mappings, o.frequency, elapsed)
	f, err := os.Create(o.profilePath)
	if err != nil {
		return errors.Wrap(err, "failed to create the profile file")
	}
	defer f.Close()

	return errors.Wrap(prof.Write(f), "failed to write the profile")
}

func totalSamples(counts *sample.CountTable) uint64 {
	var total uint64
	counts.Iterate(func(_ sample.StackCountKey, count uint64) bool {
		total += count
		return true
	})

	return total
}

func (o *Options) serveMetrics(ctx context.Context, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: o.metricsAddress, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
}
