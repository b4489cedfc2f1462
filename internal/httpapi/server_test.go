package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidboard/internal/credential"
	"bidboard/internal/snapshot"
	"bidboard/internal/store"
	"bidboard/internal/upstream"
)

const sampleCSV = "代码,名称,涨幅\n000001,平安银行,10.01\n600000,浦发银行,nan\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// memRecorder keeps audit events in memory.
type memRecorder struct {
	store.NoopRecorder
	mu       sync.Mutex
	queries  []store.QueryEvent
	upstream []store.UpstreamEvent
}

func (m *memRecorder) RecordQuery(_ context.Context, evt *store.QueryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, *evt)
	return nil
}

func (m *memRecorder) RecordUpstream(_ context.Context, evt *store.UpstreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstream = append(m.upstream, *evt)
	return nil
}

type fixture struct {
	snapDir   string
	staticDir string
	pwFile    string
	rec       *memRecorder
	opts      Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		snapDir:   t.TempDir(),
		staticDir: t.TempDir(),
		rec:       &memRecorder{},
	}
	f.pwFile = filepath.Join(t.TempDir(), "password.json")

	writeFile(t, f.snapDir, "bidding_2025-07-18_0915_limit.csv", sampleCSV)
	writeFile(t, f.snapDir, "bidding_2025-07-18_092000_limit.csv", sampleCSV)
	writeFile(t, f.snapDir, "bidding_2025-07-18_093000_limit.csv", sampleCSV)
	writeFile(t, f.staticDir, "index.html", "<html>app</html>")
	writeFile(t, f.staticDir, "static/js/main.js", "console.log(1)")

	dec, err := snapshot.NewDecoder(nil, "")
	require.NoError(t, err)
	f.opts = Options{
		Snapshots:    snapshot.NewService(f.snapDir, dec, 2, discardLogger()),
		Recorder:     f.rec,
		PasswordFile: f.pwFile,
		StaticDir:    f.staticDir,
	}
	return f
}

func (f *fixture) handler() http.Handler {
	return NewServer(f.opts, discardLogger()).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// ---------------------------------------------------------------------------
// /api/bidding
// ---------------------------------------------------------------------------

func TestBiddingExampleDay(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler(), "/api/bidding?date=2025-07-18&start=091500&end=092500")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	body := decode[struct {
		Timestamps []string                `json:"timestamps"`
		Data       map[string][][]*string `json:"data"`
	}](t, rr)
	assert.Equal(t, []string{"091500", "092000"}, body.Timestamps)
	require.Contains(t, body.Data, "091500")
	assert.Equal(t, "代码", *body.Data["091500"][0][0])
	assert.Nil(t, body.Data["091500"][2][2])

	// Non-ASCII is written verbatim and absent cells are null.
	assert.Contains(t, rr.Body.String(), "平安银行")
	assert.Contains(t, rr.Body.String(), "null")

	require.Len(t, f.rec.queries, 1)
	evt := f.rec.queries[0]
	assert.Equal(t, http.StatusOK, evt.Status)
	assert.Equal(t, 2, evt.Returned)
	assert.Equal(t, "2025-07-18", evt.Date)
	assert.NotEmpty(t, evt.RequestID)
}

func TestBiddingErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		msg    string
	}{
		{"no files for date", "date=2099-01-01&start=091500&end=092500", http.StatusNotFound, "no data files found for date 2099-01-01"},
		{"empty range", "date=2025-07-18&start=100000&end=110000", http.StatusNotFound, "no data found between 100000 and 110000"},
		{"missing end", "date=2025-07-18&start=091500", http.StatusBadRequest, "date, start and end are required"},
		{"missing all", "", http.StatusBadRequest, "date, start and end are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := get(t, f.handler(), "/api/bidding?"+tt.query)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.msg, decode[ErrorResponse](t, rr).Error)

			require.Len(t, f.rec.queries, 1)
			assert.Equal(t, tt.status, f.rec.queries[0].Status)
		})
	}
}

func TestBiddingSkipsUnreadableFile(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.snapDir, "bidding_2025-07-18_091800_limit.csv", "a,b\n1,2,3\n")

	rr := get(t, f.handler(), "/api/bidding?date=2025-07-18&start=091500&end=092500")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[snapshot.Result](t, rr)
	assert.Equal(t, []string{"091500", "092000"}, body.Timestamps)
	assert.NotContains(t, body.Data, "091800")
	assert.Equal(t, 1, f.rec.queries[0].Dropped)
}

func TestBiddingSkipsNonUTF8File(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.snapDir, "bidding_2025-07-18_091800_limit.csv", "a,b\n\xc6\xbd\xb0\xb2,2\n")

	rr := get(t, f.handler(), "/api/bidding?date=2025-07-18&start=091500&end=092500")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, utf8.Valid(rr.Body.Bytes()), "body must be valid UTF-8")

	body := decode[snapshot.Result](t, rr)
	assert.Equal(t, []string{"091500", "092000"}, body.Timestamps)
	assert.NotContains(t, body.Data, "091800")
}

func TestRequestTimeout(t *testing.T) {
	f := newFixture(t)
	f.opts.RequestTimeout = time.Millisecond
	s := NewServer(f.opts, discardLogger())

	h := s.withTimeout(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/bidding", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	body := decode[ErrorResponse](t, rr)
	assert.Equal(t, "request timed out", body.Error)
}

func TestWriteJSONEncodeFailureUsesServerLogger(t *testing.T) {
	var buf strings.Builder
	s := NewServer(newFixture(t).opts, slog.New(slog.NewTextHandler(&buf, nil)))

	rr := httptest.NewRecorder()
	s.writeJSON(rr, map[string]any{"c": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rr.Body.String())
	assert.Contains(t, buf.String(), "encoding JSON response")
}

func TestRequestTimeoutKeepsHandlerContentType(t *testing.T) {
	f := newFixture(t)
	f.opts.RequestTimeout = time.Minute

	rr := get(t, f.handler(), "/api/bidding?date=2025-07-18&start=091500&end=092500")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
}

// ---------------------------------------------------------------------------
// /api/bidding/dates
// ---------------------------------------------------------------------------

func TestDates(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.snapDir, "bidding_2025-07-21_0925_limit.csv", sampleCSV)

	rr := get(t, f.handler(), "/api/bidding/dates")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"2025-07-18", "2025-07-21"}, decode[DatesResponse](t, rr).Dates)
}

func TestDatesFromIndex(t *testing.T) {
	f := newFixture(t)
	idx := snapshot.NewIndex(f.snapDir, discardLogger())
	require.NoError(t, idx.Refresh())
	f.opts.Index = idx

	// Files added after the refresh are not visible until the next one.
	writeFile(t, f.snapDir, "bidding_2025-07-21_0925_limit.csv", sampleCSV)

	rr := get(t, f.handler(), "/api/bidding/dates")
	assert.Equal(t, []string{"2025-07-18"}, decode[DatesResponse](t, rr).Dates)
}

func TestDatesEmptyDir(t *testing.T) {
	f := newFixture(t)
	dec, _ := snapshot.NewDecoder(nil, "")
	f.opts.Snapshots = snapshot.NewService(filepath.Join(t.TempDir(), "missing"), dec, 1, discardLogger())

	rr := get(t, f.handler(), "/api/bidding/dates")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"dates":[]}`, rr.Body.String())
}

// ---------------------------------------------------------------------------
// /api/realtime_limit
// ---------------------------------------------------------------------------

func TestRealtimePassThrough(t *testing.T) {
	const payload = `{"list":[["000001","平安银行",10.01]],"errcode":"0"}`
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("Token"))
		w.Write([]byte(payload))
	}))
	defer up.Close()

	f := newFixture(t)
	f.opts.Upstream = upstream.NewClient(upstream.Options{
		URLTemplate: up.URL + "/?Token={token}&DeviceID={device_id}&UserID={user_id}",
		Token:       "tok",
		Timeout:     time.Second,
	})

	rr := get(t, f.handler(), "/api/realtime_limit")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, payload, rr.Body.String())

	require.Len(t, f.rec.upstream, 1)
	assert.Equal(t, len(payload), f.rec.upstream[0].Bytes)
}

func TestRealtimeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		token   string
		msg     string
	}{
		{"not configured", nil, "", "upstream not configured"},
		{"upstream 502", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, "tok", "realtime data unavailable"},
		{"html body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}, "tok", "realtime data malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "http://127.0.0.1:1/"
			if tt.handler != nil {
				up := httptest.NewServer(tt.handler)
				defer up.Close()
				url = up.URL + "/"
			}

			f := newFixture(t)
			f.opts.Upstream = upstream.NewClient(upstream.Options{
				URLTemplate: url + "?Token={token}",
				Token:       tt.token,
				Timeout:     time.Second,
			})

			rr := get(t, f.handler(), "/api/realtime_limit")
			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.JSONEq(t, `{"error":"`+tt.msg+`","data":[]}`, rr.Body.String())
		})
	}
}

func TestRealtimeNoClient(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler(), "/api/realtime_limit")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"upstream not configured","data":[]}`, rr.Body.String())
}

// ---------------------------------------------------------------------------
// /api/password, /api/password_hash
// ---------------------------------------------------------------------------

func TestPasswordMissingFile(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/password").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/password_hash").Code)
}

func TestPassword(t *testing.T) {
	f := newFixture(t)
	info := credential.New("Ab3dE6gH", time.Unix(1752800000, 0))
	require.NoError(t, credential.Save(f.pwFile, info))
	h := f.handler()

	rr := get(t, h, "/api/password")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"password":"Ab3dE6gH","generated_at":"1752800000"}`, rr.Body.String())

	rr = get(t, h, "/api/password_hash")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, credential.Hash("Ab3dE6gH"), decode[HashResponse](t, rr).Hash)
}

func TestPasswordHashMissing(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Dir(f.pwFile), filepath.Base(f.pwFile), `{"password":"x"}`)

	rr := get(t, f.handler(), "/api/password_hash")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPasswordCorruptFile(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Dir(f.pwFile), filepath.Base(f.pwFile), `{not json`)

	rr := get(t, f.handler(), "/api/password")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// ---------------------------------------------------------------------------
// health, static, middleware
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t)
	s := NewServer(f.opts, discardLogger())
	s.now = func() time.Time { return time.Date(2025, 7, 18, 9, 15, 0, 0, time.UTC) }

	rr := get(t, s.Handler(), "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2025-07-18T09:15:00Z","service":"stock-data-api"}`, rr.Body.String())
}

func TestStatic(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	rr := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<html>app</html>", rr.Body.String())

	rr = get(t, h, "/static/js/main.js")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "console.log(1)", rr.Body.String())

	// Client-side routes fall back to the index page.
	rr = get(t, h, "/history/2025-07-18")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<html>app</html>", rr.Body.String())

	// Missing assets do not.
	rr = get(t, h, "/static/js/missing.js")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", decode[ErrorResponse](t, rr).Error)

	rr = get(t, h, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", decode[ErrorResponse](t, rr).Error)
}

func TestStaticNotBuilt(t *testing.T) {
	f := newFixture(t)
	f.opts.StaticDir = filepath.Join(t.TempDir(), "missing")

	rr := get(t, f.handler(), "/dashboard")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStaticTraversal(t *testing.T) {
	f := newFixture(t)
	h := newSPAHandler(f.staticDir, "", discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../../etc/passwd"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "<html>app</html>", rr.Body.String())
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	rr := get(t, h, "/api/health")
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "client-supplied", rr.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/bidding", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, strings.ToUpper(rr.Header().Get("Access-Control-Allow-Methods")), "GET")
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", decode[ErrorResponse](t, rr).Error)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(snapshot.ErrMissingParameter))
	assert.Equal(t, http.StatusNotFound, statusFor(snapshot.ErrNoDataForDate))
	assert.Equal(t, http.StatusNotFound, statusFor(snapshot.ErrNoDataInRange))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}
