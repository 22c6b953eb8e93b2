package output

import (
	"context"
	"fmt"
	"time"
)

func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

func PrettyProfileStatus(samples uint64, stackUtil, countUtil int) string {
	return fmt.Sprintf("\r%-25s %-35s %-35s",
		fmt.Sprintf("Samples: %8d", samples),
		fmt.Sprintf("Stack Table: [%s] %3d%%", ProgressBar(stackUtil, 20), stackUtil),
		fmt.Sprintf("Count Table: [%s] %3d%%", ProgressBar(countUtil, 20), countUtil),
	)
}
