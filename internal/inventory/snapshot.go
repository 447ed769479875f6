package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/egnyte/cloudimized/internal/core/ports"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

// Writer persists snapshot results as the YAML tree the change detector
// watches, or as per-resource CSV dumps in single-run mode.
type Writer struct {
	logger ports.Logger
}

func NewWriter(logger ports.Logger) *Writer {
	return &Writer{logger: logger}
}

// WriteYAML dumps every successful, non-empty result under
// baseDir/<provider>/<resource>/<target>.yaml. Failed results are
// skipped with a warning so one bad project cannot block the snapshot.
func (w *Writer) WriteYAML(ctx context.Context, baseDir string, results []Result) error {
	for _, res := range results {
		if res.Err != nil {
			w.logger.Warnf(ctx, "skipping dump for %q in %q: %v", res.Resource, res.Target, res.Err)
			continue
		}
		if len(res.Items) == 0 {
			continue
		}
		dir := filepath.Join(baseDir, res.Provider, res.Resource)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
				"issue creating directory %q", dir)
		}
		file := filepath.Join(dir, res.Target+".yaml")
		w.logger.Infof(ctx, "dumping results in %q", file)
		data, err := yaml.Marshal(res.Items)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
				"issue serializing results for %q", file)
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
				"issue dumping results into file %q", file)
		}
	}
	return nil
}

// WriteCSV dumps results grouped by resource into <dir>/<resource>.csv.
// Columns: projectId, id, name, then the remaining keys sorted.
func (w *Writer) WriteCSV(ctx context.Context, dir string, results []Result) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return apperrors.Newf(apperrors.CodeSnapshotWriteError,
			"issue dumping results to files, directory %q doesn't exist", dir)
	}
	byResource := make(map[string][]Result)
	for _, res := range results {
		if res.Err != nil {
			w.logger.Warnf(ctx, "skipping dump for %q in %q: %v", res.Resource, res.Target, res.Err)
			continue
		}
		byResource[res.Resource] = append(byResource[res.Resource], res)
	}
	for resource, group := range byResource {
		if err := w.writeResourceCSV(ctx, filepath.Join(dir, resource+".csv"), group); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeResourceCSV(ctx context.Context, file string, group []Result) error {
	header := csvHeader(group)
	f, err := os.Create(file)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
			"issue dumping results into file %q", file)
	}
	defer f.Close()
	w.logger.Infof(ctx, "dumping results in %q", file)
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
			"issue writing CSV header to %q", file)
	}
	for _, res := range group {
		for _, item := range res.Items {
			row := make([]string, len(header))
			row[0] = res.Target
			for i, key := range header[1:] {
				if v, ok := item[key]; ok {
					row[i+1] = fmt.Sprintf("%v", v)
				}
			}
			if err := cw.Write(row); err != nil {
				return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
					"issue writing CSV row to %q", file)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeSnapshotWriteError,
			"issue flushing CSV file %q", file)
	}
	return nil
}

// csvHeader builds the column list: projectId first, id and name next
// when present, then every other key sorted.
func csvHeader(group []Result) []string {
	keys := make(map[string]bool)
	for _, res := range group {
		for _, item := range res.Items {
			for key := range item {
				keys[key] = true
			}
		}
	}
	header := []string{"projectId"}
	for _, preferred := range []string{"id", "name"} {
		if keys[preferred] {
			header = append(header, preferred)
			delete(keys, preferred)
		}
	}
	rest := make([]string, 0, len(keys))
	for key := range keys {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(header, rest...)
}
