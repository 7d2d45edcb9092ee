package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/alanyoungcy/dlmmbot/internal/server/handler"
)

type emptyReader struct{}

func (emptyReader) Load(context.Context) ([]domain.Position, error) {
	return nil, nil
}

func (emptyReader) Get(_ context.Context, addr string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func testServer(apiKey string) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	status := handler.NewStatusHandler(emptyReader{}, nil, config.NewRuntime(config.Defaults().Hedge), "monitor", log)
	return New(Config{Port: 0, APIKey: apiKey}, status, log)
}

func TestAuthProtectsAPIButNotHealth(t *testing.T) {
	srv := testServer("secret")
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200 without credentials", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp.StatusCode)
	}
}

func TestEmptyAPIKeyDisablesAuth(t *testing.T) {
	srv := testServer("")
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/positions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 when auth disabled", resp.StatusCode)
	}
}
