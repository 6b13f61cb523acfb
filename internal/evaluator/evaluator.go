package evaluator

import (
	"context"
	"fmt"
	"sort"

	"lodepa-air/internal/metrics"
	"lodepa-air/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Evaluation one classified parameter
type Evaluation struct {
	Parameter models.Parameter           `json:"parameter"`
	Raw       float64                    `json:"raw"`
	Value     float64                    `json:"value"`   // normalized, full precision
	Display   float64                    `json:"display"` // normalized, rounded
	Status    models.Status              `json:"status"`
	Bounds    models.ThresholdDefinition `json:"bounds"`
	// Degraded bounds could not be resolved; Status defaulted to GOOD
	Degraded bool `json:"degraded,omitempty"`
}

// BatchResult outcome of ClassifyBatch. Failures is keyed by the raw input key.
type BatchResult struct {
	RoomID   string
	Statuses map[models.Parameter]Evaluation
	Failures map[string]error
}

// Evaluator normalizes and classifies readings against a room's thresholds
type Evaluator struct {
	resolver    Resolver
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewEvaluator concurrency bounds the per-parameter fallback lookups; m may be nil
func NewEvaluator(resolver Resolver, concurrency int, m *metrics.Metrics, logger *zap.Logger) *Evaluator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Evaluator{
		resolver:    resolver,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

// Resolver the resolver the evaluator classifies against
func (e *Evaluator) Resolver() Resolver {
	return e.resolver
}

// Evaluate normalizes raw and classifies it against bounds
func Evaluate(p models.Parameter, raw float64, bounds models.ThresholdDefinition) (Evaluation, error) {
	value, err := Normalize(p, raw)
	if err != nil {
		return Evaluation{}, err
	}
	status, err := Classify(value, bounds)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Parameter: p,
		Raw:       raw,
		Value:     value,
		Display:   RoundForDisplay(p, value),
		Status:    status,
		Bounds:    bounds,
	}, nil
}

type pending struct {
	key    string
	param  models.Parameter
	raw    float64
	bounds models.ThresholdDefinition
	err    error
}

// ClassifyBatch classifies every reading of one room. It never fails as a whole:
// malformed keys and invalid values land in Failures, and a parameter whose bounds
// cannot be resolved defaults to GOOD with Degraded set.
func (e *Evaluator) ClassifyBatch(ctx context.Context, roomID string, readings map[string]float64) BatchResult {
	result := BatchResult{
		RoomID:   roomID,
		Statuses: make(map[models.Parameter]Evaluation, len(readings)),
		Failures: make(map[string]error),
	}

	items := e.parse(readings, result.Failures)
	if len(items) == 0 {
		return result
	}

	table, err := e.resolver.ResolveMany(ctx, roomID)
	if err == nil {
		for i := range items {
			items[i].bounds = BoundsFor(table, items[i].param)
		}
	} else {
		e.logger.Warn("Batch threshold lookup failed, resolving per parameter",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		e.resolveEach(ctx, roomID, items)
	}

	for _, it := range items {
		if it.err != nil {
			// Degraded: the value is still validated and normalized, only the bounds are missing.
			ev, evalErr := Evaluate(it.param, it.raw, models.NoBounds(it.param))
			if evalErr != nil {
				result.Failures[it.key] = evalErr
				continue
			}
			ev.Degraded = true
			e.metrics.Degraded()
			e.logger.Error("Failed to resolve threshold, defaulting to good",
				zap.String("room_id", roomID),
				zap.String("parameter", it.param.String()),
				zap.Error(it.err),
			)
			result.Statuses[it.param] = ev
			continue
		}

		ev, evalErr := Evaluate(it.param, it.raw, it.bounds)
		if evalErr != nil {
			result.Failures[it.key] = evalErr
			continue
		}
		e.metrics.Classified(it.param.String(), ev.Status.String())
		result.Statuses[it.param] = ev
	}

	return result
}

// parse canonicalizes keys in sorted order so duplicates are reported deterministically
func (e *Evaluator) parse(readings map[string]float64, failures map[string]error) []pending {
	keys := make([]string, 0, len(readings))
	for k := range readings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[models.Parameter]string, len(keys))
	items := make([]pending, 0, len(keys))
	for _, k := range keys {
		p, err := models.ParseParameter(k)
		if err != nil {
			failures[k] = err
			continue
		}
		if first, dup := seen[p]; dup {
			failures[k] = fmt.Errorf("%w: %q and %q both map to %s", ErrDuplicateParameter, first, k, p)
			continue
		}
		seen[p] = k
		items = append(items, pending{key: k, param: p, raw: readings[k]})
	}
	return items
}

// resolveEach resolves every item on its own, at most e.concurrency at a time.
// Each goroutine owns one slot of items.
func (e *Evaluator) resolveEach(ctx context.Context, roomID string, items []pending) {
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range items {
		g.Go(func() error {
			items[i].bounds, items[i].err = e.resolver.Resolve(ctx, roomID, items[i].param)
			return nil
		})
	}
	_ = g.Wait()
}
