package workflows

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
)

// BatchSize is the number of stations written per upsert.
const BatchSize = 500

// ImportResult summarises one ImportStations run.
type ImportResult struct {
	Imported int
	Skipped  int // rows without coordinates
	Failed   int // rows rejected by the database
}

// IRVEActivities holds the activity implementations for the IRVE import workflow.
type IRVEActivities struct {
	Stations  ports.StationWriter
	Publisher ports.EventPublisher // optional
	Client    *http.Client
	TempDir   string
}

// DownloadCSV fetches the IRVE file to a temporary path and returns that path.
func (a *IRVEActivities) DownloadCSV(ctx context.Context, url string) (string, error) {
	logger := activity.GetLogger(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError("bad url", "InvalidURL", err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("HTTP %d for %s", resp.StatusCode, url), "DownloadRejected", nil)
	default:
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	f, err := os.CreateTemp(a.TempDir, "irve-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", f.Name(), err)
	}

	logger.Info("IRVE file downloaded", "path", f.Name(), "bytes", n)
	return f.Name(), nil
}

// ImportStations reads the downloaded file and upserts its stations in batches.
func (a *IRVEActivities) ImportStations(ctx context.Context, path string) (ImportResult, error) {
	logger := activity.GetLogger(ctx)

	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, temporal.NewNonRetryableApplicationError("open csv", "MissingFile", err)
	}
	defer f.Close()

	imp := &importer{
		writer: a.Stations,
		progress: func(res ImportResult) {
			activity.RecordHeartbeat(ctx, res.Imported)
		},
		rejected: func(s domain.ChargingStation, err error) {
			logger.Warn("skipping station", "id", s.ID, "error", err)
		},
	}
	res, err := imp.run(ctx, f)
	if err != nil {
		return res, err
	}
	logger.Info("IRVE import finished", "imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// PublishCatalogUpdated notifies API replicas that the catalog changed.
func (a *IRVEActivities) PublishCatalogUpdated(ctx context.Context, res ImportResult) error {
	if a.Publisher == nil {
		activity.GetLogger(ctx).Info("no publisher configured, catalog.updated not sent")
		return nil
	}
	return a.Publisher.PublishCatalogUpdated(ctx, domain.CatalogUpdated{
		Imported:   res.Imported,
		Skipped:    res.Skipped + res.Failed,
		Source:     "irve",
		ImportedAt: time.Now().UTC(),
	})
}

// CleanupCSV removes the downloaded file. A missing file is not an error.
func (a *IRVEActivities) CleanupCSV(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// importer streams CSV rows into the writer.
type importer struct {
	writer   ports.StationWriter
	progress func(ImportResult)
	rejected func(domain.ChargingStation, error)
}

func (im *importer) run(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return res, temporal.NewNonRetryableApplicationError("read csv header", "BadCSV", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	batch := make([]domain.ChargingStation, 0, BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ok, failed, err := im.upsert(ctx, batch)
		res.Imported += ok
		res.Failed += failed
		metrics.IRVERows.WithLabelValues("imported").Add(float64(ok))
		metrics.IRVERows.WithLabelValues("failed").Add(float64(failed))
		batch = batch[:0]
		if im.progress != nil {
			im.progress(res)
		}
		return err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Skipped++
				metrics.IRVERows.WithLabelValues("skipped").Inc()
				continue
			}
			return res, fmt.Errorf("read csv: %w", err)
		}

		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		s, ok := MapRow(row)
		if !ok {
			res.Skipped++
			metrics.IRVERows.WithLabelValues("skipped").Inc()
			continue
		}
		batch = append(batch, s)
		if len(batch) >= BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// upsert writes a batch, halving it on failure until single bad rows can be dropped.
// Only a cancelled context aborts the import.
func (im *importer) upsert(ctx context.Context, batch []domain.ChargingStation) (int, int, error) {
	err := im.writer.UpsertBatch(ctx, batch)
	if err == nil {
		return len(batch), 0, nil
	}
	if ctx.Err() != nil {
		return 0, 0, ctx.Err()
	}
	if len(batch) == 1 {
		if im.rejected != nil {
			im.rejected(batch[0], err)
		}
		return 0, 1, nil
	}

	mid := len(batch) / 2
	okL, failL, err := im.upsert(ctx, batch[:mid])
	if err != nil {
		return okL, failL, err
	}
	okR, failR, err := im.upsert(ctx, batch[mid:])
	return okL + okR, failL + failR, err
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
