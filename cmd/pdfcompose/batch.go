package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/pdfcompose/compose"
	"github.com/wudi/pdfcompose/observability"
)

// manifest lists edit jobs. Relative paths resolve against the manifest's
// directory.
type manifest struct {
	Jobs []manifestJob `yaml:"jobs"`
}

type manifestJob struct {
	Source    string            `yaml:"source"`
	Request   string            `yaml:"request"`
	Assets    map[string]string `yaml:"assets"`
	AssetsDir string            `yaml:"assetsDir"`
	Output    string            `yaml:"output"`
}

// jobResult is the outcome of one manifest job.
type jobResult struct {
	Source   string
	Output   string
	Err      error
	Duration time.Duration
}

func loadManifest(path string) (*manifest, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	m := &manifest{}
	if err := unmarshalStrict(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("%w: %s lists no jobs", ErrConfigParse, path)
	}
	base := filepath.Dir(path)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Source == "" || j.Request == "" {
			return nil, fmt.Errorf("%w: job %d needs source and request", ErrConfigParse, i)
		}
		j.Source = resolve(base, j.Source)
		j.Request = resolve(base, j.Request)
		j.AssetsDir = resolve(base, j.AssetsDir)
		j.Output = resolve(base, j.Output)
		for k, p := range j.Assets {
			j.Assets[k] = resolve(base, p)
		}
	}
	return m, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// plannedJob is a manifest job with its request decoded and its output
// path fixed before any job runs.
type plannedJob struct {
	manifestJob
	req  compose.EditRequest
	path string
	// err is a request failure reported as this job's result.
	err  error
}

// planJobs decodes every request and resolves every output path. Two jobs
// resolving to the same path are a manifest error.
func planJobs(m *manifest, f commonFlags, cfg *fileConfig, now time.Time) ([]plannedJob, error) {
	jobs := make([]plannedJob, len(m.Jobs))
	owners := make(map[string]int, len(m.Jobs))
	for i, j := range m.Jobs {
		p := plannedJob{manifestJob: j}
		p.req, p.err = readRequest(j.Request)
		if p.err == nil {
			// -o names a single file; each job writes its own.
			jf := f
			jf.output, jf.name = j.Output, ""
			p.path = filepath.Clean(outputPath(jf, cfg, "edit", j.Source, p.req.OutputName, now))
			if prev, taken := owners[p.path]; taken {
				return nil, fmt.Errorf("%w: jobs %d and %d both write %s", ErrConfigParse, prev, i, p.path)
			}
			owners[p.path] = i
		}
		jobs[i] = p
	}
	return jobs, nil
}

// runBatch runs every manifest job with a bounded number in flight. All
// jobs run even when some fail; the failures are joined.
func runBatch(ctx context.Context, args []string, e *env) error {
	f, rest, err := parseBatchFlags(args, e.stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.common.config)
	if err != nil {
		return err
	}
	cfg.merge(f.common)
	m, err := loadManifest(rest[0])
	if err != nil {
		return err
	}
	jobs, err := planJobs(m, f.common, cfg, e.now())
	if err != nil {
		return err
	}

	// One compositor for all jobs so the font program is read once.
	c := cfg.compositor(f.common, e)
	log := newLogger(f.common, e)
	results := make([]jobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(cfg.workers(f.workers))
	var mu sync.Mutex
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			start := time.Now()
			res := jobResult{Source: j.Source}
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Output, res.Err = runJob(c, j)
			}
			res.Duration = time.Since(start)
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			if res.Err != nil {
				log.Error("job failed", observability.String("source", res.Source), observability.Error("error", res.Err))
			} else if !f.common.quiet {
				fmt.Fprintf(e.stdout, "Created %s (%v)\n", res.Output, res.Duration.Round(time.Millisecond))
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
		}
	}
	if len(errs) > 0 && !f.common.quiet {
		fmt.Fprintf(e.stderr, "%d of %d jobs failed\n", len(errs), len(results))
	}
	return errors.Join(errs...)
}

func runJob(c *compose.Compositor, j plannedJob) (string, error) {
	if j.err != nil {
		return "", j.err
	}
	src, err := readInput(j.Source)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(j.Assets))
	for k, p := range j.Assets {
		pairs = append(pairs, k+"="+p)
	}
	assets, err := loadAssets(pairs, j.AssetsDir)
	if err != nil {
		return "", err
	}
	out, err := c.Apply(src, j.req, assets)
	if err != nil {
		return "", err
	}
	if err := writeOutput(j.path, out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return j.path, nil
}
