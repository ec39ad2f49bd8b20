package leads

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type rescoreCall struct {
	tenantID string
	leadID   string
	reason   string
	by       string
}

type recordingRescorer struct {
	calls chan rescoreCall
}

func (f *recordingRescorer) Recalculate(ctx context.Context, tenantID, leadID, reason, updatedBy string) (Score, error) {
	f.calls <- rescoreCall{tenantID: tenantID, leadID: leadID, reason: reason, by: updatedBy}
	return Score{}, nil
}

// Rescoring runs in a goroutine that outlives the handler, so the caller's
// role has to be captured before the response is written. Drive the handler
// through the real auth middleware and check the role arrives intact.
func TestUpdateStatusRescoresWithCallerRole(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)
	scorer := &recordingRescorer{calls: make(chan rescoreCall, 1)}
	handler := NewHandler(svc, scorer, nil, nil, nil, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	manager := &auth.Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
	token, err := manager.NewAccessToken("seller", "t1")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Ana"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.TenantAuth("", manager))
		protected.Patch("/leads/{id}/status", handler.UpdateStatus)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/leads/"+lead.ID+"/status", strings.NewReader(`{"status":"contacted"}`))
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: token})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: got %d, want 200", resp.StatusCode)
	}

	select {
	case call := <-scorer.calls:
		if call.by != "seller" {
			t.Fatalf("rescore attributed to %q, want seller", call.by)
		}
		if call.tenantID != "t1" || call.leadID != lead.ID {
			t.Fatalf("unexpected rescore target %+v", call)
		}
		if call.reason != "status changed to contacted" {
			t.Fatalf("unexpected rescore reason %q", call.reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rescore was never triggered")
	}
}

func TestAddInteractionRescoresWithCallerRole(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, time.UTC)
	scorer := &recordingRescorer{calls: make(chan rescoreCall, 1)}
	handler := NewHandler(svc, scorer, nil, nil, nil, validation.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	manager := &auth.Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
	token, err := manager.NewAccessToken("dealer", "t1")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}

	lead, err := svc.Create(context.Background(), "t1", CreateRequest{Name: "Luis"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.TenantAuth("", manager))
		protected.Post("/leads/{id}/interactions", handler.AddInteraction)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/leads/"+lead.ID+"/interactions", strings.NewReader(`{"type":"call","note":"left voicemail"}`))
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: token})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add interaction: got %d, want 200", resp.StatusCode)
	}

	select {
	case call := <-scorer.calls:
		if call.by != "dealer" {
			t.Fatalf("rescore attributed to %q, want dealer", call.by)
		}
		if call.reason != "interaction added" {
			t.Fatalf("unexpected rescore reason %q", call.reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rescore was never triggered")
	}
}
