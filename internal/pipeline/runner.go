// Package pipeline runs each enabled platform once: build the harvester, walk every
// tracked entity, finalize the tables and hand each of them to the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"harvester/internal/config"
	"harvester/internal/harvesterr"
	"harvester/internal/logger"
	"harvester/internal/sink"
)

// TableReport describes one saved table.
type TableReport struct {
	Name    string
	Records int
}

// PlatformReport is the outcome of one platform run.
type PlatformReport struct {
	Err      error
	Platform string
	Tables   []TableReport
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	Started   time.Time
	RunID     string
	Platforms []PlatformReport
}

// Failed returns the platforms whose run ended with an error.
func (r *Report) Failed() []string {
	var names []string

	for _, p := range r.Platforms {
		if p.Err != nil {
			names = append(names, p.Platform)
		}
	}

	return names
}

// Records returns the number of records saved across all platforms.
func (r *Report) Records() int {
	n := 0

	for _, p := range r.Platforms {
		for _, t := range p.Tables {
			n += t.Records
		}
	}

	return n
}

// Options configures a Runner.
type Options struct {
	Logger *logger.Logger
	Now    func() time.Time
}

// Runner runs the enabled platforms of a config in order.
type Runner struct {
	cfg   *config.Config
	sink  sink.Sink
	build BuildFunc
	log   *logger.Logger
	now   func() time.Time
}

// NewRunner creates a Runner. build constructs per-platform harvesters; pass
// NewBuilder(cfg, creds, log).Build for the HTTP platforms.
func NewRunner(cfg *config.Config, out sink.Sink, build BuildFunc, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{cfg: cfg, sink: out, build: build, log: log, now: now}
}

// Run harvests every enabled platform. A failing platform is recorded in the report
// and the run moves on; only context cancellation stops the run early.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: r.now(),
	}

	log := r.log.With("run_id", report.RunID)
	log.Info("run started", "platforms", r.cfg.EnabledPlatforms())

	for _, name := range r.cfg.EnabledPlatforms() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := r.now()
		pr := r.runPlatform(ctx, log.With("platform", name), name)
		pr.Duration = r.now().Sub(started)

		report.Platforms = append(report.Platforms, pr)

		if pr.Err != nil && (errors.Is(pr.Err, context.Canceled) || errors.Is(pr.Err, context.DeadlineExceeded)) {
			return report, pr.Err
		}
	}

	log.Info("run finished", "records", report.Records(), "failed", report.Failed())

	return report, nil
}

func (r *Runner) runPlatform(ctx context.Context, log *logger.Logger, name string) PlatformReport {
	pr := PlatformReport{Platform: name}

	h, err := r.build(ctx, name)
	if err == nil {
		err = h.Validate()
	}

	if err != nil {
		pr.Err = err
		logFailure(log, "platform not started", err)

		return pr
	}

	tables, err := h.Harvest(ctx)
	if err != nil {
		pr.Err = err
		logFailure(log, "harvest failed", err)

		return pr
	}

	for _, t := range tables {
		if saveErr := r.sink.Save(ctx, t); saveErr != nil {
			pr.Err = errors.Join(pr.Err, fmt.Errorf("save %s: %w", t.Name, saveErr))
			log.Error("saving table failed", "table", t.Name, "error", saveErr)

			continue
		}

		pr.Tables = append(pr.Tables, TableReport{Name: t.Name, Records: t.Len()})
	}

	return pr
}

func logFailure(log *logger.Logger, msg string, err error) {
	if harvesterr.IsConfiguration(err) {
		log.Error(msg+": configuration", "error", err)

		return
	}

	log.Error(msg, "error", err)
}
