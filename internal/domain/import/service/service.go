// Package service provides the import orchestration logic: detect the export
// format, parse and classify its rows, drop rows already in the ledger and insert
// the rest in chunks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/dedup"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/parser"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
	"github.com/FACorreiaa/poker-ledger/pkg/metrics"
	"github.com/FACorreiaa/poker-ledger/pkg/money"
)

const (
	defaultChunkSize        = 200
	defaultProgressEvery    = 50
	defaultDuplicatePreview = 10
	maxErrorDetails         = 100
)

// Options tunes an ImportService. Zero values select the defaults.
type Options struct {
	ChunkSize        int
	ProgressEvery    int
	DuplicatePreview int
	DedupMode        dedup.Mode
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = defaultProgressEvery
	}
	if o.DuplicatePreview <= 0 {
		o.DuplicatePreview = defaultDuplicatePreview
	}
	if o.DedupMode == "" {
		o.DedupMode = dedup.ModeBulk
	}
	return o
}

// Reclassifier runs the backfill passes after rows were inserted.
type Reclassifier interface {
	Run(ctx context.Context, owner uuid.UUID) (*reclassify.Result, error)
}

// Request describes one file to import.
type Request struct {
	Owner    uuid.UUID
	Filename string
	Data     []byte
	// Room overrides the room label the detector derives from the format.
	Room string
	// Layout forces the header row or delimiter when detection picks the wrong one.
	Layout   sniffer.Options
	Progress ProgressSink
}

// DuplicateDetail describes a skipped duplicate for the caller's preview.
type DuplicateDetail struct {
	Line         int    `json:"line"`
	Date         string `json:"date"`
	Time         string `json:"time,omitempty"`
	MovementType string `json:"movement_type"`
	Description  string `json:"description"`
	AmountCents  int64  `json:"amount_cents"`
	Amount       string `json:"amount"`
	Category     string `json:"category"`
	GameType     string `json:"game_type"`
}

// ImportResult is the summary of one import. RowsInFile always equals
// RowsDroppedNoDate + RowsErrored + RowsImported + RowsDuplicate once the import
// reached PhaseDone.
type ImportResult struct {
	ImportID          uuid.UUID          `json:"import_id"`
	Owner             uuid.UUID          `json:"owner"`
	Format            sniffer.Format     `json:"format,omitempty"`
	Room              string             `json:"room,omitempty"`
	Phase             Phase              `json:"phase"`
	RowsInFile        int                `json:"rows_in_file"`
	RowsDroppedNoDate int                `json:"rows_dropped_no_date"`
	RowsErrored       int                `json:"rows_errored"`
	RowsImported      int                `json:"rows_imported"`
	RowsDuplicate     int                `json:"rows_duplicate"`
	RowsLost          int                `json:"rows_lost"`
	RowsClamped       int                `json:"rows_clamped"`
	Duplicates        []DuplicateDetail  `json:"duplicates"`
	Errors            []parser.RowError  `json:"errors,omitempty"`
	Reclassified      *reclassify.Result `json:"reclassified,omitempty"`
	Duration          time.Duration      `json:"duration"`
}

const tracerName = "github.com/FACorreiaa/poker-ledger/internal/domain/import/service"

// ImportService orchestrates detection, parsing, classification, deduplication and
// insertion of one export file.
type ImportService struct {
	store        repository.Store
	categorizer  *categorization.Categorizer
	reclassifier Reclassifier // optional
	metrics      *metrics.Metrics
	opts         Options
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewImportService creates a new import service
func NewImportService(store repository.Store, categorizer *categorization.Categorizer, logger *slog.Logger) *ImportService {
	return &ImportService{
		store:       store,
		categorizer: categorizer,
		opts:        Options{}.withDefaults(),
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// WithReclassifier runs the backfill passes after every import that inserted rows.
func (s *ImportService) WithReclassifier(r Reclassifier) *ImportService {
	s.reclassifier = r
	return s
}

func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithTracerProvider replaces the global tracer provider for import spans.
func (s *ImportService) WithTracerProvider(tp trace.TracerProvider) *ImportService {
	s.tracer = tp.Tracer(tracerName)
	return s
}

func (s *ImportService) WithOptions(opts Options) *ImportService {
	s.opts = opts.withDefaults()
	return s
}

// candidate is a classified row waiting for the dedup check.
type candidate struct {
	line   int
	record *ledger.Record
}

// Import runs one file through the pipeline. The returned result is never nil;
// when err is non-nil it carries the counts reached before the failure.
func (s *ImportService) Import(ctx context.Context, req Request) (res *ImportResult, err error) {
	started := s.now()
	res = &ImportResult{
		ImportID:   uuid.New(),
		Owner:      req.Owner,
		Duplicates: []DuplicateDetail{},
	}
	progress := newTracker(req.Progress)
	log := s.logger.With(slog.String("owner", req.Owner.String()), slog.String("import_id", res.ImportID.String()))

	ctx, span := s.tracer.Start(ctx, "import.File", trace.WithAttributes(
		attribute.String("owner", req.Owner.String()),
		attribute.String("filename", req.Filename),
	))
	defer func() {
		res.Duration = s.now().Sub(started)
		span.SetAttributes(
			attribute.String("format", string(res.Format)),
			attribute.Int("rows_imported", res.RowsImported),
			attribute.Int("rows_duplicate", res.RowsDuplicate),
		)
		if err != nil {
			failedIn := progress.last
			res.Phase = PhaseFailed
			progress.emit(PhaseFailed, 0, 0)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("import failed", slog.String("phase", string(failedIn)), slog.Any("error", err))
		}
		span.End()
	}()

	// Detecting
	progress.emit(PhaseDetecting, 0, 0)
	det, err := sniffer.DetectWithOptions(req.Data, req.Filename, req.Layout)
	if err != nil {
		return res, fmt.Errorf("failed to detect format: %w", err)
	}
	res.Format = det.Format
	res.Room = det.Room
	if req.Room != "" {
		res.Room = req.Room
	}
	log = log.With(slog.String("format", string(det.Format)), slog.String("room", res.Room))

	// Parsing
	progress.emit(PhaseParsing, 0, 0)
	parsed, err := parse(req.Data, det)
	if err != nil {
		return res, err
	}
	res.RowsInFile = parsed.TotalRows
	res.RowsDroppedNoDate = parsed.DroppedNoDate
	res.RowsErrored = len(parsed.Errors)
	res.Errors = capErrors(parsed.Errors)
	for _, rowErr := range parsed.Errors {
		log.Debug("row skipped", slog.Int("line", rowErr.Row), slog.String("column", rowErr.Column), slog.String("error", rowErr.Message))
	}
	log.Info("file parsed",
		slog.Int("rows", parsed.TotalRows),
		slog.Int("valid", len(parsed.Rows)),
		slog.Int("dropped_no_date", parsed.DroppedNoDate),
		slog.Int("errored", len(parsed.Errors)),
	)

	// Categorizing & keying
	total := len(parsed.Rows)
	progress.emit(PhaseCategorizing, 0, total)
	importedAt := s.now().UTC()
	candidates := make([]candidate, 0, total)
	for i, row := range parsed.Rows {
		rec, clamped := s.buildRecord(row, req.Owner, res.Room, importedAt)
		if clamped {
			res.RowsClamped++
			log.Warn("amount clamped to storage limit", slog.Int("line", row.Line), slog.Int64("amount_cents", rec.AmountCents))
		}
		candidates = append(candidates, candidate{line: row.Line, record: rec})
		progress.every(s.opts.ProgressEvery, PhaseCategorizing, i+1, total)
	}

	// Dedup filtering
	progress.emit(PhaseDedupFiltering, 0, total)
	checker, err := dedup.NewChecker(ctx, s.opts.DedupMode, req.Owner, s.store)
	if err != nil {
		return res, fmt.Errorf("failed to prepare duplicate check: %w", err)
	}
	pending := make([]*ledger.Record, 0, len(candidates))
	for i, c := range candidates {
		dup, err := checker.Duplicate(ctx, c.record.DedupKey)
		if err != nil {
			return res, fmt.Errorf("failed to check duplicates: %w", err)
		}
		if dup {
			s.recordDuplicate(res, c.line, c.record)
		} else {
			pending = append(pending, c.record)
		}
		progress.every(s.opts.ProgressEvery, PhaseDedupFiltering, i+1, total)
	}

	// Inserting
	progress.emit(PhaseInserting, 0, len(pending))
	ins := &inserter{svc: s, log: log, progress: progress, total: len(pending)}
	err = ins.insert(ctx, pending, s.opts.ChunkSize)
	res.RowsImported = ins.inserted
	res.RowsLost = ins.lost
	res.RowsErrored += ins.lost
	res.RowsDuplicate += ins.conflicts
	s.recordMetrics(res)
	if err != nil {
		return res, fmt.Errorf("import aborted after %d rows: %w", ins.inserted, err)
	}

	if s.reclassifier != nil && res.RowsImported > 0 {
		reclassified, err := s.reclassifier.Run(ctx, req.Owner)
		if err != nil {
			log.Warn("reclassification failed", slog.Any("error", err))
		}
		res.Reclassified = reclassified
	}

	res.Phase = PhaseDone
	progress.emit(PhaseDone, total, total)
	s.metrics.ObserveImport(string(res.Format), s.now().Sub(started).Seconds())
	log.Info("import completed",
		slog.Int("rows_imported", res.RowsImported),
		slog.Int("rows_duplicate", res.RowsDuplicate),
		slog.Int("rows_errored", res.RowsErrored),
		slog.Int("rows_dropped_no_date", res.RowsDroppedNoDate),
	)
	return res, nil
}

func parse(data []byte, det *sniffer.Detection) (*parser.Result, error) {
	table, err := parser.ReadTable(data, det)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s export: %w", det.Container, err)
	}
	p, err := parser.New(det.Format)
	if err != nil {
		return nil, err
	}
	parsed, err := p.Parse(table)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rows: %w", err)
	}
	return parsed, nil
}

// buildRecord classifies a parsed row and computes its dedup key. The second return
// reports whether the amount had to be clamped.
func (s *ImportService) buildRecord(row parser.Row, owner uuid.UUID, room string, importedAt time.Time) (*ledger.Record, bool) {
	cls := s.categorizer.Classify(categorization.Input{
		Label:         row.Label,
		CategoryLabel: row.CategoryLabel,
		Description:   row.Description,
		AmountCents:   row.AmountCents,
	})

	amount := row.AmountCents
	if row.Unsigned {
		amount = ledger.SignedCents(cls.MovementType, amount)
	}
	amount, clamped := money.Clamp(amount)

	rec := &ledger.Record{
		ID:           uuid.New(),
		OwnerID:      owner,
		Date:         row.Date,
		Time:         row.Time,
		Description:  row.Description,
		AmountCents:  amount,
		Category:     cls.Category,
		MovementType: cls.MovementType,
		GameType:     cls.GameType,
		BuyinTier:    cls.BuyinTier,
		Room:         room,
		ImportedAt:   importedAt,
	}
	rec.DedupKey = dedup.KeyOf(rec)
	return rec, clamped
}

func (s *ImportService) recordDuplicate(res *ImportResult, line int, rec *ledger.Record) {
	res.RowsDuplicate++
	if len(res.Duplicates) >= s.opts.DuplicatePreview {
		return
	}
	detail := DuplicateDetail{
		Line:         line,
		Date:         rec.Date.Format("2006-01-02"),
		MovementType: string(rec.MovementType),
		Description:  rec.Description,
		AmountCents:  rec.AmountCents,
		Amount:       money.New(rec.AmountCents, money.USD).Display(),
		Category:     string(rec.Category),
		GameType:     string(rec.GameType),
	}
	if rec.Time != nil {
		detail.Time = rec.Time.Format("15:04:05")
	}
	res.Duplicates = append(res.Duplicates, detail)
}

func (s *ImportService) recordMetrics(res *ImportResult) {
	s.metrics.AddRows(metrics.OutcomeImported, res.RowsImported)
	s.metrics.AddRows(metrics.OutcomeDuplicate, res.RowsDuplicate)
	s.metrics.AddRows(metrics.OutcomeErrored, res.RowsErrored-res.RowsLost)
	s.metrics.AddRows(metrics.OutcomeLost, res.RowsLost)
	s.metrics.AddRows(metrics.OutcomeNoDate, res.RowsDroppedNoDate)
}

func capErrors(errs []parser.RowError) []parser.RowError {
	if len(errs) > maxErrorDetails {
		return errs[:maxErrorDetails]
	}
	return errs
}

// inserter writes records in chunks. A failed chunk is retried in halves down to
// single records; a failing single record is skipped. Only ErrUnavailable stops it.
type inserter struct {
	svc       *ImportService
	log       *slog.Logger
	progress  *tracker
	total     int
	inserted  int
	conflicts int
	lost      int
}

func (in *inserter) insert(ctx context.Context, records []*ledger.Record, size int) error {
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunk := records[start:end]

		n, err := in.svc.store.Insert(ctx, chunk)
		if err == nil {
			in.inserted += int(n)
			in.progress.emit(PhaseInserting, in.done(), in.total)
			continue
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return err
		}

		if len(chunk) == 1 {
			rec := chunk[0]
			if errors.Is(err, repository.ErrDuplicateKey) {
				in.conflicts++
				in.log.Debug("record already stored", slog.String("dedup_key", rec.DedupKey))
			} else {
				in.lost++
				in.log.Warn("record could not be inserted",
					slog.String("date", rec.Date.Format("2006-01-02")),
					slog.String("description", rec.Description),
					slog.Any("error", err),
				)
			}
			in.progress.emit(PhaseInserting, in.done(), in.total)
			continue
		}

		half := (len(chunk) + 1) / 2
		in.log.Warn("chunk insert failed, retrying in smaller chunks",
			slog.Int("rows", len(chunk)),
			slog.Int("retry_size", half),
			slog.Any("error", err),
		)
		if err := in.insert(ctx, chunk, half); err != nil {
			return err
		}
	}
	return nil
}

func (in *inserter) done() int {
	return in.inserted + in.conflicts + in.lost
}
