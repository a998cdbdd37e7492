// Package e2etest drives the HTTP API end to end: authentication, upload,
// deduplication, progress streaming, reclassification and deletion.
package e2etest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/handler"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/poker-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
	"github.com/FACorreiaa/poker-ledger/pkg/interceptors"
	"github.com/FACorreiaa/poker-ledger/pkg/metrics"
	"github.com/FACorreiaa/poker-ledger/pkg/storage"
)

const secret = "e2e-secret"

const starsExport = "Date/Time,Action,Table/Tournament,Amount,Balance\n" +
	"2024/01/31 09:15 PM,Tournament Registration,12345 $10 NLH Freezeout,-10.00,90.00\n" +
	"2024/01/31 11:40 PM,Bounty,12345 $10 NLH Freezeout,5.00,95.00\n"

const wptExport = "Date,Money In,Money Out,Payment Method,Description\n" +
	"10:00:00 2024-01-01,0,10,Buy In,$10 NLH\n" +
	"10:00:00 2024-01-01,0,10,Buy In,$10 NLH\n" +
	"11:00:00 2024-01-01,25,0,Winnings,$10 NLH\n"

// ============================================================================
// Harness
// ============================================================================

type harness struct {
	t      *testing.T
	server *httptest.Server
	store  *repository.MemoryStore
	auth   *interceptors.Authenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	categorizer, err := categorization.NewDefault(categorization.StandardTiers)
	require.NoError(t, err)
	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	store := repository.NewMemoryStore()
	rc := reclassify.New(store, categorizer.TierScheme(), log).WithMetrics(m)
	svc := importservice.NewImportService(store, categorizer, log).
		WithReclassifier(rc).
		WithMetrics(m).
		WithOptions(importservice.Options{ChunkSize: 2, ProgressEvery: 1})

	api := http.NewServeMux()
	handler.NewImportHandler(svc, rc, store, log).WithArchive(archive).Register(api)

	auth := interceptors.NewAuthenticator(secret, log)
	root := http.NewServeMux()
	root.Handle("/v1/", auth.Middleware(api))

	srv := httptest.NewServer(interceptors.Chain(root,
		interceptors.Logging(log),
		interceptors.CORS([]string{"*"}),
		interceptors.RateLimit(1000, 1000, log),
	))
	t.Cleanup(srv.Close)

	return &harness{t: t, server: srv, store: store, auth: auth}
}

func (h *harness) token(owner uuid.UUID) string {
	h.t.Helper()
	tok, err := h.auth.Sign(owner, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, body)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) upload(path, token, filename, content string) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(h.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())
	return h.do(http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type event struct {
	name string
	data string
}

func readEvents(t *testing.T, body io.Reader) []event {
	t.Helper()
	var events []event
	var cur event
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = event{}
		}
	}
	require.NoError(t, sc.Err())
	return events
}

// ============================================================================
// Tests
// ============================================================================

func TestUnauthenticated(t *testing.T) {
	h := newHarness(t)

	resp := h.upload("/v1/imports", "", "stars.csv", starsExport)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.upload("/v1/imports", "not-a-token", "stars.csv", starsExport)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, h.store.Records())
}

func TestImportLifecycle(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	tok := h.token(owner)

	t.Run("first upload imports and backfills", func(t *testing.T) {
		resp := h.upload("/v1/imports", tok, "stars.csv", starsExport)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decode[importservice.ImportResult](t, resp)
		assert.Equal(t, owner, res.Owner)
		assert.Equal(t, ledger.RoomPokerStars, res.Room)
		assert.Equal(t, 2, res.RowsImported)
		assert.Equal(t, 0, res.RowsDuplicate)
		require.NotNil(t, res.Reclassified)
		assert.Equal(t, 1, res.Reclassified.Tiers.Updated)
	})

	t.Run("re-upload is all duplicates", func(t *testing.T) {
		resp := h.upload("/v1/imports", tok, "stars.csv", starsExport)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decode[importservice.ImportResult](t, resp)
		assert.Equal(t, 0, res.RowsImported)
		assert.Equal(t, 2, res.RowsDuplicate)
		assert.Len(t, res.Duplicates, 2)
		assert.Nil(t, res.Reclassified)
	})

	t.Run("stream reports progress then the result", func(t *testing.T) {
		resp := h.upload("/v1/imports/stream", tok, "wpt.csv", wptExport)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		events := readEvents(t, resp.Body)
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		require.Equal(t, "result", last.name)
		for _, e := range events[:len(events)-1] {
			assert.Equal(t, "progress", e.name)
		}

		var res importservice.ImportResult
		require.NoError(t, json.Unmarshal([]byte(last.data), &res))
		assert.Equal(t, ledger.RoomWPTGlobal, res.Room)
		assert.Equal(t, 2, res.RowsImported)
		assert.Equal(t, 1, res.RowsDuplicate)
	})

	t.Run("manual reclassify finds nothing left", func(t *testing.T) {
		resp := h.do(http.MethodPost, "/v1/reclassify", tok, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decode[reclassify.Result](t, resp)
		assert.Equal(t, 0, res.Tiers.Updated)
		assert.Equal(t, 0, res.GameTypes.Updated)
	})

	t.Run("archive keeps one entry per distinct upload", func(t *testing.T) {
		resp := h.do(http.MethodGet, "/v1/imports/archive", tok, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		entries := decode[[]storage.Entry](t, resp)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		assert.ElementsMatch(t, []string{"stars.csv", "wpt.csv"}, names)
	})

	t.Run("delete by room", func(t *testing.T) {
		path := "/v1/records?room=" + url.QueryEscape(ledger.RoomWPTGlobal)
		resp := h.do(http.MethodDelete, path, tok, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.EqualValues(t, 2, body["deleted"])
		assert.Equal(t, ledger.RoomWPTGlobal, body["room"])
		assert.Len(t, h.store.Records(), 2)
	})

	t.Run("deleted rows import again", func(t *testing.T) {
		resp := h.upload("/v1/imports", tok, "wpt.csv", wptExport)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		res := decode[importservice.ImportResult](t, resp)
		assert.Equal(t, 2, res.RowsImported)
	})
}

func TestOwnersAreIsolated(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()

	resp := h.upload("/v1/imports", h.token(alice), "stars.csv", starsExport)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.upload("/v1/imports", h.token(bob), "stars.csv", starsExport)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[importservice.ImportResult](t, resp)
	assert.Equal(t, 2, res.RowsImported)

	resp = h.do(http.MethodDelete, "/v1/records", h.token(alice), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	owners, err := h.store.ListOwners(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob}, owners)
}

func TestUnrecognizedUpload(t *testing.T) {
	h := newHarness(t)

	resp := h.upload("/v1/imports", h.token(uuid.New()), "notes.csv", "foo,bar\n1,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, h.store.Records())
}
