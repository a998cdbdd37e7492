// Package reclassify backfills buy-in tier and game type on tournament records that
// were imported without them, using the owner's Buy In records of the same
// tournament as reference. Both passes only touch records still missing the value,
// so running them again changes nothing.
package reclassify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/poker-ledger/pkg/metrics"
)

// Pass names used in logs and metrics.
const (
	PassTiers     = "tiers"
	PassGameTypes = "game_types"
)

// Store is the part of the record store the passes need.
type Store interface {
	FindByFilter(ctx context.Context, owner uuid.UUID, f repository.Filter) ([]*ledger.Record, error)
	Update(ctx context.Context, id uuid.UUID, p repository.Patch) error
}

// PassResult counts what one pass did.
type PassResult struct {
	References int `json:"references"`
	Candidates int `json:"candidates"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
}

// Result is the outcome of both passes for one owner.
type Result struct {
	Tiers     PassResult `json:"tiers"`
	GameTypes PassResult `json:"game_types"`
}

// Reclassifier runs the backfill passes.
type Reclassifier struct {
	store   Store
	tiers   categorization.TierScheme
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

const tracerName = "github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"

func New(store Store, tiers categorization.TierScheme, logger *slog.Logger) *Reclassifier {
	return &Reclassifier{
		store:  store,
		tiers:  tiers,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *Reclassifier) WithMetrics(m *metrics.Metrics) *Reclassifier {
	r.metrics = m
	return r
}

func (r *Reclassifier) WithTracerProvider(tp trace.TracerProvider) *Reclassifier {
	r.tracer = tp.Tracer(tracerName)
	return r
}

// Run executes the tier pass and then the game type pass. An error is returned
// only when the store cannot be queried; failed updates are counted.
func (r *Reclassifier) Run(ctx context.Context, owner uuid.UUID) (*Result, error) {
	tiers, err := r.BackfillTiers(ctx, owner)
	if err != nil {
		return nil, err
	}
	games, err := r.BackfillGameTypes(ctx, owner)
	if err != nil {
		return &Result{Tiers: tiers}, err
	}
	return &Result{Tiers: tiers, GameTypes: games}, nil
}

// BackfillTiers gives every untiered related tournament record the tier of its
// tournament's Buy In, falling back to the record's own amount.
func (r *Reclassifier) BackfillTiers(ctx context.Context, owner uuid.UUID) (res PassResult, err error) {
	ctx, span := r.tracer.Start(ctx, "reclassify.Tiers", trace.WithAttributes(attribute.String("owner", owner.String())))
	defer func() { endSpan(span, res, err) }()

	tournament := ledger.CategoryTournament
	refs, err := r.store.FindByFilter(ctx, owner, repository.Filter{
		Category:      &tournament,
		MovementTypes: []ledger.MovementType{ledger.MovementBuyIn},
	})
	if err != nil {
		return res, fmt.Errorf("failed to load buy-in references: %w", err)
	}
	lookup := newLookup[ledger.BuyinTier]()
	for _, ref := range refs {
		if ref.Tiered() {
			lookup.add(ref.Description, *ref.BuyinTier)
		}
	}
	res.References = lookup.len()

	candidates, err := r.store.FindByFilter(ctx, owner, repository.Filter{
		Category:      &tournament,
		MovementTypes: ledger.RelatedMovements,
		UntieredOnly:  true,
	})
	if err != nil {
		return res, fmt.Errorf("failed to load untiered records: %w", err)
	}
	res.Candidates = len(candidates)

	for _, rec := range candidates {
		tier, ok := lookup.match(rec.Description)
		if !ok {
			tier = r.tiers.Tier(rec.AmountCents)
		}
		if err := r.store.Update(ctx, rec.ID, repository.Patch{BuyinTier: &tier}); err != nil {
			res.Failed++
			r.logger.Warn("failed to backfill tier",
				slog.String("record_id", rec.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		res.Updated++
	}

	r.metrics.AddReclassified(PassTiers, res.Updated)
	r.logger.Info("tier backfill completed",
		slog.String("owner", owner.String()),
		slog.Int("references", res.References),
		slog.Int("candidates", res.Candidates),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// BackfillGameTypes replaces the generic Tournament game type of related records
// with the specific game of their tournament's Buy In. Records without a matching
// reference keep the placeholder.
func (r *Reclassifier) BackfillGameTypes(ctx context.Context, owner uuid.UUID) (res PassResult, err error) {
	ctx, span := r.tracer.Start(ctx, "reclassify.GameTypes", trace.WithAttributes(attribute.String("owner", owner.String())))
	defer func() { endSpan(span, res, err) }()

	refs, err := r.store.FindByFilter(ctx, owner, repository.Filter{
		MovementTypes: []ledger.MovementType{ledger.MovementBuyIn},
	})
	if err != nil {
		return res, fmt.Errorf("failed to load buy-in references: %w", err)
	}
	lookup := newLookup[ledger.GameType]()
	for _, ref := range refs {
		if !ref.GameType.IsGeneric() {
			lookup.add(ref.Description, ref.GameType)
		}
	}
	res.References = lookup.len()

	placeholder := ledger.GameTournament
	candidates, err := r.store.FindByFilter(ctx, owner, repository.Filter{
		MovementTypes: ledger.RelatedMovements,
		GameType:      &placeholder,
	})
	if err != nil {
		return res, fmt.Errorf("failed to load placeholder records: %w", err)
	}
	res.Candidates = len(candidates)
	if lookup.len() == 0 {
		return res, nil
	}

	for _, rec := range candidates {
		game, ok := lookup.match(rec.Description)
		if !ok {
			continue
		}
		if err := r.store.Update(ctx, rec.ID, repository.Patch{GameType: &game}); err != nil {
			res.Failed++
			r.logger.Warn("failed to backfill game type",
				slog.String("record_id", rec.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		res.Updated++
	}

	r.metrics.AddReclassified(PassGameTypes, res.Updated)
	r.logger.Info("game type backfill completed",
		slog.String("owner", owner.String()),
		slog.Int("references", res.References),
		slog.Int("candidates", res.Candidates),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func endSpan(span trace.Span, res PassResult, err error) {
	span.SetAttributes(
		attribute.Int("candidates", res.Candidates),
		attribute.Int("updated", res.Updated),
		attribute.Int("failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// lookup maps Buy In descriptions to a value. The first reference seen for a
// description wins.
type lookup[V any] struct {
	byDesc map[string]V
	sorted []string
}

func newLookup[V any]() *lookup[V] {
	return &lookup[V]{byDesc: make(map[string]V)}
}

func (l *lookup[V]) add(desc string, v V) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return
	}
	if _, ok := l.byDesc[desc]; ok {
		return
	}
	l.byDesc[desc] = v
	l.sorted = nil
}

func (l *lookup[V]) len() int { return len(l.byDesc) }

// match tries the exact description, then any reference that starts with the
// description's first token followed by a space.
func (l *lookup[V]) match(desc string) (V, bool) {
	desc = strings.TrimSpace(desc)
	if v, ok := l.byDesc[desc]; ok {
		return v, true
	}

	var zero V
	id, _, _ := strings.Cut(desc, " ")
	if id == "" {
		return zero, false
	}
	if l.sorted == nil {
		l.sorted = make([]string, 0, len(l.byDesc))
		for d := range l.byDesc {
			l.sorted = append(l.sorted, d)
		}
		sort.Strings(l.sorted)
	}

	prefix := id + " "
	i := sort.SearchStrings(l.sorted, prefix)
	if i < len(l.sorted) && strings.HasPrefix(l.sorted[i], prefix) {
		return l.byDesc[l.sorted[i]], true
	}
	return zero, false
}
