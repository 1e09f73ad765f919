package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/champbox/internal/assets"
	"github.com/desertthunder/champbox/internal/flow"
	"github.com/desertthunder/champbox/internal/models"
	"github.com/desertthunder/champbox/internal/repositories"
	"github.com/desertthunder/champbox/internal/services"
	"github.com/desertthunder/champbox/internal/shared"
	"github.com/desertthunder/champbox/internal/tasks"
	tu "github.com/desertthunder/champbox/internal/testing"
)

const redirectURI = "http://localhost:3000"

type testApp struct {
	upstream *tu.FakeUpstream
	router   *BasicRouter
	runs     *repositories.RunRepository
	store    *assets.Store
	logs     *bytes.Buffer
}

func newTestApp(t *testing.T, mode string) *testApp {
	t.Helper()
	return newTestAppWithRedirect(t, mode, redirectURI)
}

func newTestAppWithRedirect(t *testing.T, mode, redirect string) *testApp {
	t.Helper()

	upstream := tu.NewFakeUpstream(t)
	upstream.Champions["Ahri"] = []byte("ahri-loading-art")
	upstream.Champions["Annie"] = []byte("annie-loading-art")
	upstream.Codes["code-a"] = "token-a"
	upstream.Codes["code-b"] = "token-b"

	dropbox, err := services.NewDropboxService(shared.DropboxConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  redirect,
		AuthorizeURL: upstream.URL + "/oauth2/authorize",
		TokenURL:     upstream.URL + "/oauth2/token",
		ContentURL:   upstream.URL,
	}, upstream.Client())
	if err != nil {
		t.Fatalf("failed to create dropbox service: %v", err)
	}

	coordinator, err := flow.New(mode, 0)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	store, err := assets.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create asset store: %v", err)
	}

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	runs := repositories.NewRunRepository(db)

	logs := &bytes.Buffer{}
	logger := shared.NewLogger(logs)

	pipeline, err := tasks.NewPipeline(tasks.PipelineOpts{
		Source:      services.NewDDragonService(upstream.URL, upstream.Version, upstream.Client()),
		Storage:     dropbox,
		Assets:      store,
		Coordinator: coordinator,
		Recorder:    runs,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}

	callback, err := CallbackPath(redirect)
	if err != nil {
		t.Fatalf("invalid redirect uri: %v", err)
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(NewFlowHandler(pipeline, logger, callback))
	router.Handler(NewRunsHandler(runs, logger))

	return &testApp{upstream: upstream, router: router, runs: runs, store: store, logs: logs}
}

func (a *testApp) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func stateOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	return loc.Query().Get("state")
}

func TestFlowHandler(t *testing.T) {
	t.Run("valid champion redirects to authorize endpoint", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		w := app.get(t, "/?championName=Ahri")

		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
		}

		loc, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid Location: %v", err)
		}
		if loc.Path != "/oauth2/authorize" {
			t.Errorf("expected authorize path, got %s", loc.Path)
		}

		q := loc.Query()
		if q.Get("client_id") != "client-id" {
			t.Errorf("expected client_id, got %q", q.Get("client_id"))
		}
		if q.Get("redirect_uri") != redirectURI {
			t.Errorf("expected redirect_uri, got %q", q.Get("redirect_uri"))
		}
		if q.Get("response_type") != "code" {
			t.Errorf("expected response_type=code, got %q", q.Get("response_type"))
		}
		if q.Get("token_access_type") != "offline" {
			t.Errorf("expected token_access_type=offline, got %q", q.Get("token_access_type"))
		}
		if q.Get("state") == "" {
			t.Error("expected state in keyed mode")
		}
	})

	t.Run("callback uploads and redirects to viewer", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		state := stateOf(t, app.get(t, "/?championName=Ahri"))
		w := app.get(t, "/?code=code-a&state="+url.QueryEscape(state))

		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
		}
		if got := w.Header().Get("Location"); got != "https://www.dropbox.com/home?preview=Ahri.jpg" {
			t.Errorf("unexpected viewer location %s", got)
		}

		uploads := app.upstream.Uploads()
		if len(uploads) != 1 {
			t.Fatalf("expected 1 upload, got %d", len(uploads))
		}
		if uploads[0].Token != "token-a" {
			t.Errorf("expected bearer token-a, got %s", uploads[0].Token)
		}
		if string(uploads[0].Body) != "ahri-loading-art" {
			t.Errorf("unexpected upload body %q", uploads[0].Body)
		}
		if uploads[0].Arg != `{"path":"/Ahri.jpg","mode":"add","autorename":true,"mute":false}` {
			t.Errorf("unexpected Dropbox-API-Arg %s", uploads[0].Arg)
		}
		if codes := app.upstream.ExchangedCodes(); len(codes) != 1 || codes[0] != "code-a" {
			t.Errorf("expected code-a exchanged once, got %v", codes)
		}

		tu.AssertFileExists(t, app.store.Path("Ahri.jpg"))
	})

	t.Run("unknown champion returns error body without redirect", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)

		w := app.get(t, "/?championName=NotAChampion")

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if w.Header().Get("Location") != "" {
			t.Error("expected no redirect")
		}
		if w.Body.String() != msgValidationFailed {
			t.Errorf("unexpected body %q", w.Body.String())
		}

		cb := app.get(t, "/?code=code-a")
		if cb.Code != http.StatusBadRequest || cb.Body.String() != msgNoPendingFlow {
			t.Errorf("expected nothing pending, got %d %q", cb.Code, cb.Body.String())
		}
		if _, _, exchange := app.upstream.Calls(); exchange != 0 {
			t.Errorf("expected no token exchange, got %d", exchange)
		}
	})

	t.Run("champion lookup transport failure has its own message", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)
		app.upstream.Close()

		w := app.get(t, "/?championName=Ahri")

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != msgFetchFailed {
			t.Errorf("unexpected body %q", w.Body.String())
		}
		if w.Header().Get("Location") != "" {
			t.Error("expected no redirect")
		}
	})

	t.Run("callback on redirect uri path resumes the flow", func(t *testing.T) {
		app := newTestAppWithRedirect(t, flow.ModeSlot, "http://localhost:3000/callback")

		start := app.get(t, "/?championName=Ahri")
		if start.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", start.Code, start.Body.String())
		}
		loc, _ := url.Parse(start.Header().Get("Location"))
		if got := loc.Query().Get("redirect_uri"); got != "http://localhost:3000/callback" {
			t.Errorf("expected callback redirect_uri, got %q", got)
		}

		w := app.get(t, "/callback?code=code-a")
		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.HasSuffix(w.Header().Get("Location"), "Ahri.jpg") {
			t.Errorf("expected Ahri viewer URL, got %s", w.Header().Get("Location"))
		}

		if other := app.get(t, "/elsewhere?code=code-b"); other.Code != http.StatusNotFound {
			t.Errorf("expected 404 off the callback path, got %d", other.Code)
		}
	})

	t.Run("overlapping flows in slot mode resume the latest champion", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)

		app.get(t, "/?championName=Ahri")
		app.get(t, "/?championName=Annie")

		w := app.get(t, "/?code=code-a")
		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.HasSuffix(w.Header().Get("Location"), "Annie.jpg") {
			t.Errorf("expected Annie viewer URL, got %s", w.Header().Get("Location"))
		}

		second := app.get(t, "/?code=code-b")
		if second.Code != http.StatusBadRequest || second.Body.String() != msgNoPendingFlow {
			t.Errorf("expected second callback rejected, got %d %q", second.Code, second.Body.String())
		}
	})

	t.Run("overlapping flows in keyed mode stay isolated", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		stateA := stateOf(t, app.get(t, "/?championName=Ahri"))
		stateB := stateOf(t, app.get(t, "/?championName=Annie"))

		wa := app.get(t, "/?code=code-a&state="+url.QueryEscape(stateA))
		wb := app.get(t, "/?code=code-b&state="+url.QueryEscape(stateB))

		if !strings.HasSuffix(wa.Header().Get("Location"), "Ahri.jpg") {
			t.Errorf("expected Ahri for first callback, got %s", wa.Header().Get("Location"))
		}
		if !strings.HasSuffix(wb.Header().Get("Location"), "Annie.jpg") {
			t.Errorf("expected Annie for second callback, got %s", wb.Header().Get("Location"))
		}
	})

	t.Run("callback without pending flow", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		w := app.get(t, "/?code=code-a&state=unknown")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if w.Body.String() != msgNoPendingFlow {
			t.Errorf("unexpected body %q", w.Body.String())
		}

		validate, image, exchange := app.upstream.Calls()
		if validate+image+exchange != 0 || len(app.upstream.Uploads()) != 0 {
			t.Error("expected no upstream calls")
		}
	})

	t.Run("bad code fails without download or upload", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)

		app.get(t, "/?championName=Ahri")
		w := app.get(t, "/?code=expired")

		if w.Code != http.StatusBadGateway || w.Body.String() != msgUploadFailed {
			t.Errorf("expected 502 upload failure, got %d %q", w.Code, w.Body.String())
		}
		if _, image, _ := app.upstream.Calls(); image != 0 {
			t.Errorf("expected no image download, got %d", image)
		}
		if len(app.upstream.Uploads()) != 0 {
			t.Error("expected no upload")
		}
	})

	t.Run("malformed token response fails the run", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)
		app.upstream.MalformToken = true

		app.get(t, "/?championName=Ahri")
		w := app.get(t, "/?code=code-a")

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", w.Code)
		}
		if len(app.upstream.Uploads()) != 0 {
			t.Error("expected no upload")
		}
	})

	t.Run("image fetch failure is a real gate", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)
		app.upstream.FailImage = true

		app.get(t, "/?championName=Ahri")
		w := app.get(t, "/?code=code-a")

		if w.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", w.Code)
		}
		if len(app.upstream.Uploads()) != 0 {
			t.Error("expected no upload")
		}
	})

	t.Run("upload rejection fails the run", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)
		app.upstream.FailUpload = true

		app.get(t, "/?championName=Ahri")
		w := app.get(t, "/?code=code-a")

		if w.Code != http.StatusBadGateway || w.Body.String() != msgUploadFailed {
			t.Errorf("expected 502 upload failure, got %d %q", w.Code, w.Body.String())
		}

		failed, err := app.runs.List(map[string]any{"stage": models.StageFailed})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(failed) != 1 {
			t.Errorf("expected 1 failed run, got %d", len(failed))
		}
	})

	t.Run("provider denial clears the pending flow", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		state := stateOf(t, app.get(t, "/?championName=Ahri"))
		w := app.get(t, "/?error=access_denied&state="+url.QueryEscape(state))

		if w.Code != http.StatusForbidden || w.Body.String() != msgAuthDenied {
			t.Errorf("expected 403 denial, got %d %q", w.Code, w.Body.String())
		}

		replay := app.get(t, "/?code=code-a&state="+url.QueryEscape(state))
		if replay.Code != http.StatusBadRequest {
			t.Errorf("expected pending flow cleared, got %d", replay.Code)
		}
	})

	t.Run("missing parameters", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		w := app.get(t, "/")

		if w.Code != http.StatusBadRequest || w.Body.String() != msgInvalidRequest {
			t.Errorf("expected 400 invalid request, got %d %q", w.Code, w.Body.String())
		}
		if !strings.Contains(app.logs.String(), "invalid request") {
			t.Error("expected invalid request to be logged")
		}
	})

	t.Run("other methods are rejected", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/?championName=Ahri", nil))

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
		if w.Header().Get("Allow") != http.MethodGet {
			t.Errorf("expected Allow: GET, got %q", w.Header().Get("Allow"))
		}
	})

	t.Run("unknown paths are not found", func(t *testing.T) {
		app := newTestApp(t, flow.ModeKeyed)

		if w := app.get(t, "/favicon.ico"); w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tc := []struct {
		name     string
		redirect string
		want     string
		wantErr  bool
	}{
		{name: "root without path", redirect: "http://localhost:3000", want: "/"},
		{name: "root with slash", redirect: "http://localhost:3000/", want: "/"},
		{name: "callback path", redirect: "http://localhost:3000/callback", want: "/callback"},
		{name: "nested path", redirect: "https://example.com/oauth/dropbox", want: "/oauth/dropbox"},
		{name: "reserved runs path", redirect: "http://localhost:3000/runs", wantErr: true},
		{name: "pattern braces", redirect: "http://localhost:3000/{id}", wantErr: true},
		{name: "unparsable", redirect: "http://[::1", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CallbackPath(tt.redirect)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("flow handler routes skip duplicates", func(t *testing.T) {
		h := NewFlowHandler(nil, shared.NewLogger(io.Discard), "/", "/callback", "", "/callback")
		routes := h.Routes()
		if len(routes) != 2 || routes[0] != "/" || routes[1] != "/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}

type mockLister struct {
	runs  []*models.Run
	err   error
	limit int
}

func (m *mockLister) Recent(limit int) ([]*models.Run, error) {
	m.limit = limit
	return m.runs, m.err
}

func TestRunsHandler(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	serve := func(h *RunsHandler, target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	t.Run("lists recorded runs", func(t *testing.T) {
		app := newTestApp(t, flow.ModeSlot)

		app.get(t, "/?championName=Ahri")
		app.get(t, "/?code=code-a")

		w := app.get(t, "/runs")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var body struct {
			Runs []struct {
				Subject  string `json:"subject"`
				Stage    string `json:"stage"`
				Location string `json:"location"`
			} `json:"runs"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(body.Runs) != 1 || body.Runs[0].Subject != "Ahri" || body.Runs[0].Stage != "done" {
			t.Errorf("unexpected runs %+v", body.Runs)
		}
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		w := serve(NewRunsHandler(&mockLister{}, logger), "/runs")

		if strings.TrimSpace(w.Body.String()) != `{"runs":[]}` {
			t.Errorf("unexpected body %s", w.Body.String())
		}
	})

	t.Run("limit is clamped", func(t *testing.T) {
		lister := &mockLister{}
		serve(NewRunsHandler(lister, logger), "/runs?limit=500")

		if lister.limit != maxRunsLimit {
			t.Errorf("expected limit %d, got %d", maxRunsLimit, lister.limit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := serve(NewRunsHandler(&mockLister{}, logger), "/runs?limit=abc")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("lister error", func(t *testing.T) {
		w := serve(NewRunsHandler(&mockLister{err: errors.New("database is locked")}, logger), "/runs")

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("Logging records status", func(t *testing.T) {
		var buf bytes.Buffer
		h := Logging(shared.NewLogger(&buf))(ok)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/runs") {
			t.Errorf("unexpected log output %q", out)
		}
	})

	t.Run("Recover turns panics into 500", func(t *testing.T) {
		h := Recover(shared.NewLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})

	t.Run("RateLimit rejects beyond burst", func(t *testing.T) {
		h := RateLimit(0.001, 2)(ok)

		codes := []int{}
		for range 3 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, w.Code)
		}

		if codes[0] != http.StatusTeapot || codes[1] != http.StatusTeapot || codes[2] != http.StatusTooManyRequests {
			t.Errorf("unexpected codes %v", codes)
		}
	})

	t.Run("RateLimit disabled", func(t *testing.T) {
		h := RateLimit(0, 0)(ok)

		for range 5 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != http.StatusTeapot {
				t.Fatalf("expected pass-through, got %d", w.Code)
			}
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/runs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestServer(t *testing.T) {
	t.Run("shuts down when context is cancelled", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		addr := l.Addr().String()
		l.Close()

		srv := NewServer(addr, http.NotFoundHandler(), shared.NewLogger(io.Discard))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- srv.ListenAndServe(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("reports listen errors", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		defer l.Close()

		srv := NewServer(l.Addr().String(), http.NotFoundHandler(), shared.NewLogger(io.Discard))
		if err := srv.ListenAndServe(context.Background()); err == nil {
			t.Error("expected error for address in use")
		}
	})
}
