package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/landmark-labs/sitescan/internal/model"
)

var (
	batchInput string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the pipeline for multiple areas of interest",
	Long:  "Reads a JSON array of pipeline requests and processes them concurrently. Individual run failures do not abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := loadBatchRequests(batchInput)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			zap.L().Info("no requests in batch file")
			return nil
		}
		if batchLimit > 0 && len(reqs) > batchLimit {
			reqs = reqs[:batchLimit]
		}

		// All requests in a batch share one mode, so one provider serves them.
		env, err := initPipeline(ctx, reqs[0].Mode, reqs[0].Seed)
		if err != nil {
			return err
		}
		defer env.Close()

		return processBatch(ctx, reqs, cfg.Batch.MaxConcurrentRuns, env.Pipeline.Run)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "JSON file containing an array of pipeline requests (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of requests to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

func loadBatchRequests(path string) ([]model.PipelineRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}
	var reqs []model.PipelineRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, eris.Wrap(err, "parse batch file")
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "batch request %d", i)
		}
		if reqs[i].Mode != reqs[0].Mode {
			return nil, eris.New("all batch requests must use the same mode")
		}
	}
	return reqs, nil
}

// runFunc is the callback signature for executing one pipeline request.
type runFunc func(ctx context.Context, req model.PipelineRequest) (*model.PipelineResult, error)

// processBatch runs requests concurrently with the given limit. A failed
// run is logged and counted but does not abort the rest of the batch.
func processBatch(ctx context.Context, reqs []model.PipelineRequest, concurrency int, run runFunc) error {
	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, req := range reqs {
		g.Go(func() error {
			log := zap.L().With(zap.Int("request", i))

			result, err := run(gctx, req)
			if err != nil {
				failed.Add(1)
				log.Error("run failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("run complete",
				zap.String("run_id", result.RunID),
				zap.String("status", string(result.Status)),
				zap.Int("sites", len(result.Sites)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
