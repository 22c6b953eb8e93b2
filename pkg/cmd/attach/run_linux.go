//go:build linux

package attach

import (
	"os"
	"time"

	pprofile "github.com/google/pprof/profile"
	"github.com/pkg/errors"

	"github.com/maxgio92/xprof/internal/settings"
	"github.com/maxgio92/xprof/pkg/loader"
	"github.com/maxgio92/xprof/pkg/report"
)

func (o *Options) run() error {
	l, err := loader.NewLoader(
		loader.WithObjPath(o.objPath),
		loader.WithTargetPID(o.pid),
		loader.WithFrequency(o.frequency),
		loader.WithLoaderLogger(&o.Logger),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create the loader")
	}

	if err := l.Load(); err != nil {
		return errors.Wrap(err, "failed to load the BPF object")
	}
	defer l.Close()

	if err := l.Attach(); err != nil {
		return errors.Wrap(err, "failed to attach the sampling program")
	}

	o.Logger.Info().
		Uint32("frequency", o.frequency).
		Dur("duration", o.duration).
		Msg("sampling in the kernel")

	start := time.Now()
	select {
	case <-o.Ctx.Done():
	case <-time.After(o.duration):
	}
	elapsed := time.Since(start)

	records, err := l.Drain()
	if err != nil {
		return errors.Wrap(err, "failed to drain the kernel tables")
	}

	return o.writeReports(records, elapsed)
}

func (o *Options) writeReports(records []report.Record, elapsed time.Duration) error {
	rep := report.NewReport(
		report.WithReportRecords(records),
		report.WithReportFrequency(uint64(o.frequency)),
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

	prof := report.BuildProfile(records, mappings, uint64(o.frequency), elapsed)
	f, err := os.Create(o.profilePath)
	if err != nil {
		return errors.Wrap(err, "failed to create the profile file")
	}
	defer f.Close()

	return errors.Wrap(prof.Write(f), "failed to write the profile")
}
