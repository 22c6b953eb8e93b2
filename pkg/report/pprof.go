package report

import (
	"fmt"
	"os"
	"time"

	"github.com/google/pprof/profile"
)

// locationIndex looks up a profile.Location by PID and memory address.
type locationIndex struct {
	pid  uint32
	addr uint64
}

// ReadProcMaps parses the memory mappings of a process so pprof
// locations can be attributed to the right executable regions.
func ReadProcMaps(pid uint32) ([]*profile.Mapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return profile.ParseProcMaps(f)
}

// BuildProfile turns aggregated records into a pprof CPU profile.
// Only user-space frames become locations; kernel frames stay in the
// JSON report. Mappings are optional and keyed by PID.
func BuildProfile(records []Record, mappings map[uint32][]*profile.Mapping, frequency uint64, duration time.Duration) *profile.Profile {
	if frequency == 0 {
		frequency = 100
	}

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "samples",
			Unit: "count",
		}},
		TimeNanos:     time.Now().UnixNano(),
		DurationNanos: int64(duration),
		PeriodType: &profile.ValueType{
			Type: "cpu",
			Unit: "nanoseconds",
		},
		Period: int64(time.Second) / int64(frequency),
	}

	locationIndices := make(map[locationIndex]int)
	for _, record := range records {
		var sampleLocations []*profile.Location
		for _, addr := range record.UserStack {
			locKey := locationIndex{record.PID, addr}
			locIndex, found := locationIndices[locKey]
			if !found {
				locIndex = len(prof.Location)
				prof.Location = append(prof.Location, &profile.Location{
					ID:      uint64(locIndex + 1),
					Address: addr,
					Mapping: mappingForAddr(mappings[record.PID], addr),
				})
				locationIndices[locKey] = locIndex
			}
			sampleLocations = append(sampleLocations, prof.Location[locIndex])
		}
		if len(sampleLocations) == 0 {
			continue
		}

		prof.Sample = append(prof.Sample, &profile.Sample{
			Value:    []int64{int64(record.Count)},
			Location: sampleLocations,
		})
	}

	// Mapping IDs must be nonzero and start from 1.
	seen := make(map[uint32]bool, len(mappings))
	for _, record := range records {
		if seen[record.PID] {
			continue
		}
		seen[record.PID] = true
		for _, m := range mappings[record.PID] {
			m.ID = uint64(len(prof.Mapping) + 1)
			prof.Mapping = append(prof.Mapping, m)
		}
	}

	return prof
}

func mappingForAddr(mappings []*profile.Mapping, addr uint64) *profile.Mapping {
	for _, m := range mappings {
		if m.Start <= addr && m.Limit >= addr {
			return m
		}
	}

	return nil
}
