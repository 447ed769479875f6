package text

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/egnyte/cloudimized/internal/core/domain"
	"github.com/egnyte/cloudimized/internal/inventory"
)

type Config struct {
	NoColor bool `mapstructure:"no_color"`
}

// Reporter prints a human readable summary of a scan: which snapshot
// queries ran, which failed, and which changes were attributed.
type Reporter struct {
	writer io.Writer
}

func NewReporter(cfg Config) *Reporter {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	return &Reporter{writer: os.Stdout}
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) ReportScan(results []inventory.Result, changes []*domain.Change) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Provider != results[j].Provider {
			return results[i].Provider < results[j].Provider
		}
		if results[i].Resource != results[j].Resource {
			return results[i].Resource < results[j].Resource
		}
		return results[i].Target < results[j].Target
	})

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintln(tw, "Configuration Scan Report")
	fmt.Fprintln(tw, "=========================")
	fmt.Fprintln(tw, "Status\tProvider\tResource\tTarget\tDetails")
	fmt.Fprintln(tw, "------\t--------\t--------\t------\t-------")

	okCount := 0
	errorCount := 0
	for _, res := range results {
		if res.Err != nil {
			errorCount++
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tquery failed: %v\n",
				red("[ERROR]"), res.Provider, res.Resource, res.Target, res.Err)
			continue
		}
		okCount++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d item(s)\n",
			green("[OK]"), res.Provider, res.Resource, res.Target, len(res.Items))
	}

	fmt.Fprintln(tw, "\nChanges:")
	if len(changes) == 0 {
		fmt.Fprintln(tw, "  none detected")
	}
	manualCount := 0
	for _, change := range changes {
		status := green("[AUTOMATION]")
		if change.Manual {
			manualCount++
			status = yellow("[MANUAL]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", status, change.FileName(), change.Commit)
	}

	fmt.Fprintf(tw, "\nSummary: %d quer(ies) ok, %d failed, %d change(s), %d manual\n",
		okCount, errorCount, len(changes), manualCount)
}
