package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize bounds how many days generate concurrently.
	DefaultBatchSize = 4
	// unitTimeout bounds one day's generation. Timeouts are per unit so a
	// single slow collaborator call delays only its own chunk.
	unitTimeout = 30 * time.Second
	// slowChunkThreshold triggers an execution trace capture when set up.
	slowChunkThreshold = 10 * time.Second
)

// TraceCapturer persists a recent execution trace. The orchestrator calls it
// after a chunk that ran suspiciously long.
type TraceCapturer interface {
	Capture(ctx context.Context) error
}

// defaultFocusCycle maps weekdays to a training focus when the request does
// not pin its own rotation.
var defaultFocusCycle = map[time.Weekday]string{
	time.Monday:    "push",
	time.Tuesday:   "pull",
	time.Wednesday: "legs",
	time.Thursday:  "upper body",
	time.Friday:    "lower body",
	time.Saturday:  "full body",
	time.Sunday:    "full body",
}

// rangeResult is the fold of one multi-day generation run. Partial success is
// the normal shape: failures are per date, never all-or-nothing.
type rangeResult struct {
	generated []VersionedPlanUnit
	// failures maps a date in YYYY-MM-DD form to the reason its unit was not
	// generated.
	failures map[string]error
}

// orchestrator fans a date range out into concurrency-bounded chunks of
// single-unit generations.
type orchestrator struct {
	repo      *repository
	generator *unitGenerator
	logger    *slog.Logger
	recorder  TraceCapturer
}

// generateRange processes dates in consecutive chunks. Every chunk reads one
// avoid-list snapshot, runs its units concurrently against staggered slices
// of that snapshot, and folds the names it used back into the tracker before
// the next chunk starts. Chunks are strictly sequential.
//
// Cancellation lets the in-flight chunk finish, so no unit is left half
// written, and then stops. Remaining dates surface in the failure map.
func (o *orchestrator) generateRange(
	ctx context.Context,
	userID string,
	dates []time.Time,
	params GenerationParams,
) rangeResult {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	variety := newVarietyTracker(o.repo, params.VarietyWindowDays)

	result := rangeResult{
		generated: nil,
		failures:  make(map[string]error),
	}

	for start := 0; start < len(dates); start += batchSize {
		if err := ctx.Err(); err != nil {
			for _, date := range dates[start:] {
				result.failures[formatDate(date)] = fmt.Errorf("generation cancelled: %w", err)
			}
			break
		}

		end := min(start+batchSize, len(dates))
		chunk := dates[start:end]
		chunkStart := time.Now()

		avoid, err := variety.NextAvoidList(ctx, userID)
		if err != nil {
			for _, date := range chunk {
				result.failures[formatDate(date)] = fmt.Errorf("build avoid list: %w", err)
			}
			continue
		}

		type outcome struct {
			unit VersionedPlanUnit
			used []string
			err  error
		}
		outcomes := make([]outcome, len(chunk))

		// Plain errgroup without a derived context: one date's failure must
		// not cancel its siblings, so tasks stash errors and return nil.
		var group errgroup.Group
		group.SetLimit(batchSize)
		for i, date := range chunk {
			group.Go(func() error {
				// Detached from run cancellation: a cancel mid-chunk lets the
				// in-flight units finish and commit, and the between-chunk
				// check above is the only point where the run stops.
				unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unitTimeout)
				defer cancel()

				unit, used, genErr := o.generator.Generate(unitCtx, unitRequest{
					userID: userID,
					date:   date,
					focus:  resolveFocus(date, start+i, params.Focuses),
					params: params,
					avoid:  staggeredAvoid(avoid, i),
				})
				if genErr != nil {
					outcomes[i].err = genErr
					return nil
				}
				stored, storeErr := o.repo.versions.create(unitCtx, unit)
				if storeErr != nil {
					outcomes[i].err = fmt.Errorf("persist unit: %w", storeErr)
					return nil
				}
				outcomes[i] = outcome{unit: stored, used: used, err: nil}
				return nil
			})
		}
		// Wait never errors: tasks always return nil.
		_ = group.Wait()

		var chunkUsed []string
		for i, out := range outcomes {
			if out.err != nil {
				result.failures[formatDate(chunk[i])] = out.err
				o.logger.LogAttrs(ctx, slog.LevelWarn, "unit generation failed",
					slog.String("user_id", userID),
					slog.String("date", formatDate(chunk[i])),
					slog.Any("error", out.err))
				continue
			}
			result.generated = append(result.generated, out.unit)
			chunkUsed = append(chunkUsed, out.used...)
		}
		variety.RecordUsage(chunkUsed)

		if took := time.Since(chunkStart); took > slowChunkThreshold && o.recorder != nil {
			if captureErr := o.recorder.Capture(ctx); captureErr != nil {
				o.logger.LogAttrs(ctx, slog.LevelError, "trace capture failed",
					slog.Any("error", captureErr))
			}
		}
	}
	return result
}

// resolveFocus picks the focus for a date. A pinned rotation in params cycles
// by position in the range; otherwise the weekday decides.
func resolveFocus(date time.Time, position int, pinned []string) string {
	if len(pinned) > 0 {
		return pinned[position%len(pinned)]
	}
	return defaultFocusCycle[date.Weekday()]
}
