package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/poker-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
	"github.com/FACorreiaa/poker-ledger/pkg/interceptors"
	"github.com/FACorreiaa/poker-ledger/pkg/storage"
)

const (
	defaultMaxUpload = 32 << 20
	progressBuffer   = 64
)

// Importer runs one file through the import pipeline.
type Importer interface {
	Import(ctx context.Context, req importservice.Request) (*importservice.ImportResult, error)
}

type Reclassifier interface {
	Run(ctx context.Context, owner uuid.UUID) (*reclassify.Result, error)
}

type RecordDeleter interface {
	DeleteBy(ctx context.Context, owner uuid.UUID, room *string) (int64, error)
}

// ImportHandler exposes the import pipeline over HTTP.
type ImportHandler struct {
	importer     Importer
	reclassifier Reclassifier
	records      RecordDeleter
	archive      storage.Archive // optional
	maxUpload    int64
	logger       *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importer Importer, reclassifier Reclassifier, records RecordDeleter, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importer:     importer,
		reclassifier: reclassifier,
		records:      records,
		maxUpload:    defaultMaxUpload,
		logger:       logger,
	}
}

// WithArchive stores every upload before it is imported.
func (h *ImportHandler) WithArchive(a storage.Archive) *ImportHandler {
	h.archive = a
	return h
}

// WithMaxUpload limits the request body size in bytes.
func (h *ImportHandler) WithMaxUpload(n int64) *ImportHandler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

// Register mounts the routes on mux.
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/imports", h.Import)
	mux.HandleFunc("POST /v1/imports/stream", h.ImportStream)
	mux.HandleFunc("GET /v1/imports/archive", h.ListArchive)
	mux.HandleFunc("DELETE /v1/records", h.DeleteRecords)
	mux.HandleFunc("POST /v1/reclassify", h.Reclassify)
}

// upload is a parsed multipart import request.
type upload struct {
	owner    uuid.UUID
	filename string
	room     string
	layout   sniffer.Options
	data     []byte
}

// Import imports the uploaded file and answers with the summary.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.importer.Import(r.Context(), importservice.Request{
		Owner:    up.owner,
		Filename: up.filename,
		Data:     up.data,
		Room:     up.room,
		Layout:   up.layout,
	})
	if err != nil {
		writeError(w, statusFor(err), err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ImportStream imports the uploaded file and streams progress as server-sent
// events, ending with a "result" or "error" event.
func (h *ImportHandler) ImportStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	type outcome struct {
		res *importservice.ImportResult
		err error
	}
	events := make(chan importservice.Progress, progressBuffer)
	done := make(chan outcome, 1)

	go func() {
		res, err := h.importer.Import(r.Context(), importservice.Request{
			Owner:    up.owner,
			Filename: up.filename,
			Data:     up.data,
			Room:     up.room,
			Layout:   up.layout,
			Progress: func(p importservice.Progress) {
				select {
				case events <- p:
				default: // slow client, drop
				}
			},
		})
		done <- outcome{res, err}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case p := <-events:
			writeEvent(w, "progress", p)
			flusher.Flush()
		case out := <-done:
			for drained := false; !drained; {
				select {
				case p := <-events:
					writeEvent(w, "progress", p)
				default:
					drained = true
				}
			}
			if out.err != nil {
				writeEvent(w, "error", errorBody{Error: out.err.Error(), Result: out.res})
			} else {
				writeEvent(w, "result", out.res)
			}
			flusher.Flush()
			return
		}
	}
}

// ListArchive lists the caller's archived uploads.
func (h *ImportHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if h.archive == nil {
		writeJSON(w, http.StatusOK, []*storage.Entry{})
		return
	}
	entries, err := h.archive.List(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list archive", slog.String("owner", owner.String()), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type deleteResponse struct {
	Deleted int64  `json:"deleted"`
	Room    string `json:"room,omitempty"`
}

// DeleteRecords removes the caller's records, only those of ?room= when given.
func (h *ImportHandler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}

	var room *string
	if v := strings.TrimSpace(r.URL.Query().Get("room")); v != "" {
		room = &v
	}
	n, err := h.records.DeleteBy(r.Context(), owner, room)
	if err != nil {
		h.logger.Error("failed to delete records", slog.String("owner", owner.String()), slog.Any("error", err))
		writeError(w, statusFor(err), err, nil)
		return
	}

	h.logger.Info("records deleted", slog.String("owner", owner.String()), slog.Int64("deleted", n))
	resp := deleteResponse{Deleted: n}
	if room != nil {
		resp.Room = *room
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reclassify runs both backfill passes for the caller.
func (h *ImportHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	res, err := h.reclassifier.Run(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to reclassify", slog.String("owner", owner.String()), slog.Any("error", err))
		writeError(w, statusFor(err), err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readUpload parses the multipart form (fields "file" and optional "room") and
// archives the file. It writes the error response itself when it returns false.
func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err, nil)
		} else {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err), nil)
		}
		return nil, false
	}

	layout, err := layoutFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err), nil)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err), nil)
		return nil, false
	}

	up := &upload{
		owner:    owner,
		filename: header.Filename,
		room:     strings.TrimSpace(r.FormValue("room")),
		layout:   layout,
		data:     data,
	}

	if h.archive != nil {
		entry, err := h.archive.Save(r.Context(), owner, up.filename, data)
		if err != nil {
			h.logger.Warn("failed to archive upload", slog.String("owner", owner.String()), slog.Any("error", err))
		} else {
			h.logger.Debug("upload archived", slog.String("archive_id", entry.ID.String()), slog.String("sha256", entry.SHA256))
		}
	}
	return up, true
}

// layoutFrom reads the optional "header_row" (1-based) and "delimiter" fields.
func layoutFrom(r *http.Request) (sniffer.Options, error) {
	var opts sniffer.Options
	if v := strings.TrimSpace(r.FormValue("header_row")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid header_row %q: must be a positive line number", v)
		}
		opts.HeaderRow = n
	}
	d, err := sniffer.ParseDelimiter(r.FormValue("delimiter"))
	if err != nil {
		return opts, fmt.Errorf("invalid delimiter %q: %w", r.FormValue("delimiter"), err)
	}
	opts.Delimiter = d
	return opts, nil
}

func ownerFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		writeError(w, http.StatusUnauthorized, errors.New("unauthenticated"), nil)
		return uuid.Nil, false
	}
	owner, err := uuid.Parse(userIDStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid owner id"), nil)
		return uuid.Nil, false
	}
	return owner, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sniffer.ErrUnrecognizedFormat), errors.Is(err, sniffer.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sniffer.ErrInvalidDelimiter):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, partial any) {
	body := errorBody{Error: err.Error()}
	if !isNil(partial) {
		body.Result = partial
	}
	writeJSON(w, status, body)
}

// isNil reports whether v is nil or a typed nil pointer of a result type.
func isNil(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case *importservice.ImportResult:
		return p == nil
	case *reclassify.Result:
		return p == nil
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
