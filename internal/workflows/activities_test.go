package workflows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/stazy/chargeshare/internal/core/domain"
)

const csvHeader = "id_pdc_itinerance,nom_station,consolidated_longitude,consolidated_latitude,prise_type_2,etat_pdc\n"

// fakeWriter rejects any batch that contains one of the bad ids.
type fakeWriter struct {
	mu      sync.Mutex
	bad     map[string]bool
	stored  []string
	batches int
}

func (w *fakeWriter) UpsertBatch(_ context.Context, stations []domain.ChargingStation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches++
	for _, s := range stations {
		if w.bad[s.ID] {
			return fmt.Errorf("constraint violation on %s", s.ID)
		}
	}
	for _, s := range stations {
		w.stored = append(w.stored, s.ID)
	}
	return nil
}

func csvWithRows(n int) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "P%d,Station %d,2.%d,48.%d,true,en service\n", i, i, i+1, i+1)
	}
	return b.String()
}

func TestImporter_BatchesRows(t *testing.T) {
	w := &fakeWriter{}
	var heartbeats int
	im := &importer{writer: w, progress: func(ImportResult) { heartbeats++ }}

	res, err := im.run(context.Background(), strings.NewReader(csvWithRows(1201)))
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Imported: 1201}, res)
	assert.Equal(t, 3, w.batches)
	assert.Equal(t, 3, heartbeats)
	assert.Len(t, w.stored, 1201)
}

func TestImporter_SkipsRowsWithoutCoordinates(t *testing.T) {
	data := csvHeader +
		"A,Good,2.35,48.85,true,en service\n" +
		"B,No coords,,,true,en service\n" +
		"C,Sentinel,0,0,false,hors-service\n"

	w := &fakeWriter{}
	res, err := (&importer{writer: w}).run(context.Background(), strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Imported: 1, Skipped: 2}, res)
	assert.Equal(t, []string{"A"}, w.stored)
}

func TestImporter_SplitsFailingBatch(t *testing.T) {
	w := &fakeWriter{bad: map[string]bool{"P7": true, "P300": true}}
	var rejected []string
	im := &importer{writer: w, rejected: func(s domain.ChargingStation, _ error) { rejected = append(rejected, s.ID) }}

	res, err := im.run(context.Background(), strings.NewReader(csvWithRows(500)))
	require.NoError(t, err)

	assert.Equal(t, 498, res.Imported)
	assert.Equal(t, 2, res.Failed)
	assert.ElementsMatch(t, []string{"P7", "P300"}, rejected)
	assert.NotContains(t, w.stored, "P7")
	assert.Contains(t, w.stored, "P499")
}

func TestImporter_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{bad: map[string]bool{"P0": true}}
	_, err := (&importer{writer: w}).run(ctx, strings.NewReader(csvWithRows(10)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, w.batches)
}

func TestImporter_StripsBOM(t *testing.T) {
	data := "\ufeff" + csvHeader + "A,Good,2.35,48.85,true,en service\n"
	w := &fakeWriter{}
	_, err := (&importer{writer: w}).run(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, w.stored)
}

func TestImporter_EmptyFile(t *testing.T) {
	_, err := (&importer{writer: &fakeWriter{}}).run(context.Background(), strings.NewReader(""))
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
}

func TestDownloadCSV_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csvWithRows(2)))
	}))
	defer srv.Close()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	acts := &IRVEActivities{Client: srv.Client(), TempDir: t.TempDir()}
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.DownloadCSV, srv.URL+"/irve.csv")
	require.NoError(t, err)

	var path string
	require.NoError(t, val.Get(&path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, csvWithRows(2), string(data))
}

func TestDownloadCSV_ClientErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	acts := &IRVEActivities{Client: srv.Client(), TempDir: t.TempDir()}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.DownloadCSV, srv.URL)
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
}

func TestImportStations_Activity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "irve.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvWithRows(3)), 0o600))

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	w := &fakeWriter{}
	acts := &IRVEActivities{Stations: w}
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.ImportStations, path)
	require.NoError(t, err)

	var res ImportResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, []string{"P0", "P1", "P2"}, w.stored)
}

type capturePublisher struct {
	got []domain.CatalogUpdated
}

func (p *capturePublisher) PublishCatalogUpdated(_ context.Context, ev domain.CatalogUpdated) error {
	p.got = append(p.got, ev)
	return nil
}

func (p *capturePublisher) PublishReservationCreated(context.Context, *domain.Reservation) error {
	return nil
}

func TestPublishCatalogUpdated(t *testing.T) {
	pub := &capturePublisher{}
	acts := &IRVEActivities{Publisher: pub}

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.PublishCatalogUpdated, ImportResult{Imported: 10, Skipped: 2, Failed: 1})
	require.NoError(t, err)
	require.Len(t, pub.got, 1)
	assert.Equal(t, 10, pub.got[0].Imported)
	assert.Equal(t, 3, pub.got[0].Skipped)
	assert.Equal(t, "irve", pub.got[0].Source)
}

func TestCleanupCSV_MissingFileIsFine(t *testing.T) {
	acts := &IRVEActivities{}
	assert.NoError(t, acts.CleanupCSV(context.Background(), filepath.Join(t.TempDir(), "gone.csv")))
}
