package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/stazy/chargeshare/internal/adapters/nats"
	"github.com/stazy/chargeshare/internal/adapters/postgres"
	"github.com/stazy/chargeshare/internal/core/ports"
	"github.com/stazy/chargeshare/internal/pkg/config"
	"github.com/stazy/chargeshare/internal/pkg/logging"
	"github.com/stazy/chargeshare/internal/workflows"
)

func main() {
	run := flag.Bool("run", false, "start one IRVE import after the worker is up")
	url := flag.String("url", "", "IRVE CSV url (defaults to catalog.irve_url)")
	flag.Parse()

	cfg, err := config.Load("chargeshare-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var publisher ports.EventPublisher
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "chargeshare-importer"); err != nil {
		slog.Warn("nats unavailable, catalog.updated will not be sent", "error", err)
	} else {
		defer nc.Close()
		if pub, err := natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("jetstream publisher unavailable", "error", err)
		} else {
			publisher = pub
		}
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 2,
	})
	w.RegisterWorkflow(workflows.IRVEImportWorkflow)
	w.RegisterActivity(&workflows.IRVEActivities{
		Stations:  postgres.NewStationRepo(db),
		Publisher: publisher,
		Client:    &http.Client{Timeout: 10 * time.Minute},
	})

	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer w.Stop()
	slog.Info("importer worker started", "task_queue", cfg.Temporal.TaskQueue)

	if *run {
		csvURL := *url
		if csvURL == "" {
			csvURL = cfg.Catalog.IRVEURL
		}
		go trigger(ctx, c, cfg.Temporal.TaskQueue, csvURL)
	}

	<-worker.InterruptCh()
	slog.Info("importer worker stopping")
}

// trigger starts one import and logs its outcome.
func trigger(ctx context.Context, c client.Client, queue, csvURL string) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "irve-import-" + time.Now().UTC().Format("20060102-150405"),
		TaskQueue: queue,
	}, workflows.IRVEImportWorkflow, workflows.IRVEImportInput{CSVURL: csvURL})
	if err != nil {
		slog.Error("start import", "error", err)
		return
	}
	slog.Info("import started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.ImportResult
	if err := run.Get(ctx, &res); err != nil {
		slog.Error("import failed", "workflow_id", run.GetID(), "error", err)
		return
	}
	slog.Info("import finished", "imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed)
}
