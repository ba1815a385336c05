package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// IRVEImportInput is the input for the IRVE import workflow.
type IRVEImportInput struct {
	CSVURL string
}

// IRVEImportWorkflow downloads the national IRVE file, upserts its stations and tells
// the API replicas to reload their catalog. The downloaded file is removed on every path.
func IRVEImportWorkflow(ctx workflow.Context, input IRVEImportInput) (ImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting IRVE import", "url", input.CSVURL)

	downloadCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	var path string
	if err := workflow.ExecuteActivity(downloadCtx, "DownloadCSV", input.CSVURL).Get(ctx, &path); err != nil {
		return ImportResult{}, err
	}

	defer func() {
		cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
		cleanupCtx = workflow.WithActivityOptions(cleanupCtx, workflow.ActivityOptions{
			StartToCloseTimeout: 30 * time.Second,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
		})
		if err := workflow.ExecuteActivity(cleanupCtx, "CleanupCSV", path).Get(cleanupCtx, nil); err != nil {
			logger.Warn("cleanup failed", "path", path, "error", err)
		}
	}()

	importCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})

	var result ImportResult
	if err := workflow.ExecuteActivity(importCtx, "ImportStations", path).Get(ctx, &result); err != nil {
		return ImportResult{}, err
	}

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	if err := workflow.ExecuteActivity(publishCtx, "PublishCatalogUpdated", result).Get(ctx, nil); err != nil {
		// The import itself succeeded; replicas pick the new rows up on their next reload.
		logger.Warn("catalog.updated not published", "error", err)
	}

	logger.Info("IRVE import completed", "imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}
