package integration

import (
	"io"
	"log"
	"net/http"
	"testing"

	"board_query_cache/internal/admin"
	"board_query_cache/internal/boards"
	"board_query_cache/internal/durable"
	"board_query_cache/internal/obs"
	"board_query_cache/internal/querycache"
	"board_query_cache/internal/server"
	"board_query_cache/internal/testutil"
)

const adminToken = "integration-token"

type stack struct {
	cache     *querycache.Cache
	metrics   *obs.Metrics
	report    querycache.LoadReport
	boardsURL string
	admin     *testutil.AdminClient
	shutdown  func()
}

func fixture() []boards.Board {
	return []boards.Board{
		{ID: "1", Name: "Alpha", OwnerID: "u1"},
		{ID: "2", Name: "Bravo", OwnerID: "u2"},
		{ID: "3", Name: "Charlie", OwnerID: "u1"},
	}
}

// startStack wires the same pieces as cmd/boardcache on ephemeral ports.
func startStack(t *testing.T, store durable.Store, cfg querycache.Config) *stack {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	metrics := obs.NewMetrics()
	cache := querycache.New(cfg, store, querycache.Options{
		Logger:  logger,
		Metrics: metrics,
		Events:  obs.NewEventLog(io.Discard),
	})
	report := cache.Load()

	catalog := boards.NewCatalog(fixture())
	service := boards.NewService(cache, catalog, logger)
	catalog.SetNotifier(service)

	auth, err := admin.NewAuthenticator(admin.AuthConfig{Token: adminToken})
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	adminSrv, err := server.Start(admin.NewHandler(admin.HandlerConfig{
		Cache:  cache,
		Auth:   auth,
		Logger: logger,
	}), "127.0.0.1:0", server.Options{})
	if err != nil {
		t.Fatalf("start admin: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", boards.NewHandler(service, catalog))
	mainSrv, err := server.Start(mux, "127.0.0.1:0", server.Options{})
	if err != nil {
		_ = adminSrv.Shutdown()
		t.Fatalf("start server: %v", err)
	}

	s := &stack{
		cache:     cache,
		metrics:   metrics,
		report:    report,
		boardsURL: "http://" + mainSrv.Addr,
		admin:     testutil.NewAdminClient(t, adminSrv.Addr, adminToken),
	}
	s.shutdown = func() {
		_ = mainSrv.Shutdown()
		_ = adminSrv.Shutdown()
	}
	t.Cleanup(s.shutdown)
	return s
}

func (s *stack) list(t *testing.T, query string) (string, boards.Page) {
	t.Helper()
	resp, err := http.Get(s.boardsURL + "/boards" + query)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list boards: status %d", resp.StatusCode)
	}
	var page boards.Page
	if err := decodeBody(resp.Body, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return resp.Header.Get("X-Cache"), page
}
