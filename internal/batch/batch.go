// Package batch converts many JSON files concurrently.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/iancoleman/strcase"
	"golang.org/x/sync/errgroup"

	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
)

// Job converts one input file into one output file.
type Job struct {
	InputPath  string
	OutputPath string
	Options    models.Options
}

// Result is the outcome of one Job. Err is set when the job failed.
type Result struct {
	Job        Job
	Statistics models.Statistics
	LineCount  int
	Err        error
}

// Runner executes jobs with bounded concurrency.
type Runner struct {
	conv    *converter.Converter
	workers int
	logger  *slog.Logger
}

// NewRunner creates a Runner. Workers below one use the number of CPUs.
func NewRunner(conv *converter.Converter, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{conv: conv, workers: workers, logger: logger}
}

// TableNameFor derives a table name from a file path: the snake_case form
// of its base name without extension.
func TableNameFor(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strcase.ToSnake(base)
	if name == "" {
		return models.DefaultTableName
	}
	return name
}

// Plan builds one job per input, writing <outDir>/<base>.<format>. When
// opts has no table name each job gets one derived from its file name. Inputs
// sharing a base name get a numeric suffix (<base>_2, <base>_3, ...) so no two
// jobs write the same file.
func Plan(inputs []string, outDir string, opts models.Options) []Job {
	explicitTable := opts.TableName != ""
	opts = opts.WithDefaults()

	used := make(map[string]struct{}, len(inputs))
	jobs := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		jobOpts := opts
		if !explicitTable {
			jobOpts.TableName = TableNameFor(in)
		}
		base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		jobs = append(jobs, Job{
			InputPath:  in,
			OutputPath: uniqueOutputPath(used, outDir, base, string(opts.Format)),
			Options:    jobOpts,
		})
	}
	return jobs
}

func uniqueOutputPath(used map[string]struct{}, outDir, base, ext string) string {
	path := filepath.Join(outDir, base+"."+ext)
	for n := 2; ; n++ {
		if _, taken := used[path]; !taken {
			break
		}
		path = filepath.Join(outDir, fmt.Sprintf("%s_%d.%s", base, n, ext))
	}
	used[path] = struct{}{}
	return path
}

// Run executes every job and returns their results in job order. A failing
// job does not stop the others; only cancellation of ctx aborts the run.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.runJob(ctx, job)
			if results[i].Err != nil {
				r.logger.Warn("conversion failed",
					slog.String("input", job.InputPath),
					slog.String("error", results[i].Err.Error()))
			} else {
				r.logger.Debug("converted",
					slog.String("input", job.InputPath),
					slog.String("output", job.OutputPath),
					slog.Int("rows", results[i].Statistics.RowsProcessed))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) runJob(ctx context.Context, job Job) Result {
	res := Result{Job: job}

	data, err := parser.ReadFile(job.InputPath)
	if err != nil {
		res.Err = err
		return res
	}

	conv, err := r.conv.Convert(ctx, string(data), job.Options)
	if err != nil {
		res.Err = err
		return res
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		res.Err = errors.NewOutputError("failed to create output directory", err)
		return res
	}
	if err := os.WriteFile(job.OutputPath, []byte(conv.Output), 0644); err != nil {
		res.Err = errors.NewOutputError("failed to write "+job.OutputPath, err)
		return res
	}

	res.Statistics = conv.Statistics
	res.LineCount = conv.LineCount
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
