package simpleattachment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultReconcileConcurrency bounds the per-attachment operations of one
// reconciliation run.
const DefaultReconcileConcurrency = 4

// Reconciler keeps attachment reference sets in line with the reference
// lists broadcast by the services owning videos and modules. The same
// algorithm serves every element kind.
type Reconciler struct {
	refs        ReferenceService
	logger      *slog.Logger
	concurrency int
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithReconcileLogger sets the reconciler logger
func WithReconcileLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithReconcileConcurrency sets how many attachments are updated in parallel
func WithReconcileConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewReconciler creates a reconciler working through refs.
func NewReconciler(refs ReferenceService, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		refs:        refs,
		logger:      slog.Default(),
		concurrency: DefaultReconcileConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcileResult reports what a reconciliation run did, per attachment id.
type ReconcileResult struct {
	Added     []string
	Removed   []string
	Unchanged []string
	Failed    []string
}

type referenceOp string

const (
	opAdd    referenceOp = "add"
	opRemove referenceOp = "remove"
)

type pendingOp struct {
	id string
	op referenceOp
}

// Reconcile aligns the reference sets for kind with the current attachment
// list of elementID. attachmentIDs must be the element's complete current
// list, not a delta, so that redelivered or reordered events converge.
//
// Failures on individual attachments are logged and reported in the result;
// only invalid input or a failure to read the current references is
// returned as an error.
func (r *Reconciler) Reconcile(ctx context.Context, kind ElementKind, trigger Trigger, elementID string, attachmentIDs []string) (*ReconcileResult, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidElementKind, kind)
	}
	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, trigger)
	}
	if elementID == "" {
		return nil, fmt.Errorf("element id is required")
	}

	r.logger.InfoContext(ctx, "Reconciling element references",
		"element_kind", kind, "trigger", trigger, "element_id", elementID, "attachments", len(attachmentIDs))

	var ops []pendingOp
	switch trigger {
	case TriggerCreate:
		for _, id := range dedupe(attachmentIDs) {
			ops = append(ops, pendingOp{id: id, op: opAdd})
		}

	case TriggerDelete:
		old, err := r.referencing(ctx, kind, elementID)
		if err != nil {
			return nil, err
		}
		for _, id := range old {
			ops = append(ops, pendingOp{id: id, op: opRemove})
		}

	case TriggerUpdate:
		old, err := r.referencing(ctx, kind, elementID)
		if err != nil {
			return nil, err
		}
		current := dedupe(attachmentIDs)
		for _, id := range difference(current, old) {
			ops = append(ops, pendingOp{id: id, op: opAdd})
		}
		for _, id := range difference(old, current) {
			ops = append(ops, pendingOp{id: id, op: opRemove})
		}
	}

	result := r.apply(ctx, kind, elementID, ops)
	r.logger.InfoContext(ctx, "Element references reconciled",
		"element_kind", kind, "element_id", elementID,
		"added", len(result.Added), "removed", len(result.Removed),
		"unchanged", len(result.Unchanged), "failed", len(result.Failed))
	return result, nil
}

func (r *Reconciler) referencing(ctx context.Context, kind ElementKind, elementID string) ([]string, error) {
	ids, err := r.refs.ListReferencing(ctx, kind, elementID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out, nil
}

// apply runs every op independently; one failure never stops the others.
func (r *Reconciler) apply(ctx context.Context, kind ElementKind, elementID string, ops []pendingOp) *ReconcileResult {
	var (
		mu     sync.Mutex
		result ReconcileResult
		g      errgroup.Group
	)
	g.SetLimit(r.concurrency)

	record := func(p pendingOp, changed bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			result.Failed = append(result.Failed, p.id)
			referenceOperationsTotal.WithLabelValues(string(kind), string(p.op), "failed").Inc()
		case !changed:
			result.Unchanged = append(result.Unchanged, p.id)
			referenceOperationsTotal.WithLabelValues(string(kind), string(p.op), "unchanged").Inc()
		case p.op == opAdd:
			result.Added = append(result.Added, p.id)
			referenceOperationsTotal.WithLabelValues(string(kind), string(p.op), "changed").Inc()
		default:
			result.Removed = append(result.Removed, p.id)
			referenceOperationsTotal.WithLabelValues(string(kind), string(p.op), "changed").Inc()
		}
	}

	for _, p := range ops {
		p := p
		g.Go(func() error {
			changed, err := r.applyOne(ctx, kind, elementID, p)
			if err != nil {
				r.logger.WarnContext(ctx, "Reference reconciliation failed for attachment",
					"element_kind", kind, "element_id", elementID,
					"attachment_id", p.id, "op", p.op, "error", err)
			}
			record(p, changed, err)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Unchanged)
	sort.Strings(result.Failed)
	return &result
}

func (r *Reconciler) applyOne(ctx context.Context, kind ElementKind, elementID string, p pendingOp) (bool, error) {
	id, err := uuid.Parse(p.id)
	if err != nil {
		return false, fmt.Errorf("invalid attachment id %q: %w", p.id, err)
	}
	if p.op == opAdd {
		return r.refs.AddReference(ctx, id, kind, elementID)
	}
	return r.refs.RemoveReference(ctx, id, kind, elementID)
}

// dedupe returns ids without duplicates or empty entries, keeping order.
// Valid UUIDs are put in canonical form so they compare equal to stored ids.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// difference returns the members of a that are not in b.
func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
