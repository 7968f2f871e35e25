package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// paymentsServer serves a fake payments API with fixed charge lists.
func paymentsServer(t *testing.T, charges []PaymentRecord) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v1/charges":
			_ = json.NewEncoder(w).Encode(charges)
		case "/v1/refunds":
			_ = json.NewEncoder(w).Encode([]PaymentRecord{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPaymentsAdapter(t *testing.T) {
	t.Parallel()

	t.Run("connect fails against unreachable service", func(t *testing.T) {
		t.Parallel()
		a := NewPaymentsAdapter("payments", "http://127.0.0.1:1", "sk_test",
			WithPaymentsClient(&http.Client{Timeout: 200 * time.Millisecond}))
		if err := a.Connect(context.Background()); err == nil {
			t.Error("expected connect to fail")
		}
	})

	t.Run("charge created by the action passes", func(t *testing.T) {
		t.Parallel()
		existing := PaymentRecord{ID: "ch_old", Amount: 500, Currency: "usd", Status: "succeeded", Created: time.Now()}
		srv := paymentsServer(t, []PaymentRecord{existing})
		a := NewPaymentsAdapter("payments", srv.URL, "sk_test")
		if err := a.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}

		pre, err := a.CaptureState(context.Background())
		if err != nil {
			t.Fatalf("capture: %v", err)
		}

		// The "action" creates a new charge: swap the server's list.
		fresh := PaymentRecord{ID: "ch_new", Amount: 1999, Currency: "usd", Status: "succeeded", Created: time.Now()}
		srv2 := paymentsServer(t, []PaymentRecord{existing, fresh})
		a.baseURL = srv2.URL

		exp := expect.Expectation{
			Kind:    expect.ExpectService,
			Adapter: "payments",
			Check:   map[string]string{"type": "charge_exists", "amount": "1999", "currency": "usd"},
		}
		r, err := a.Verify(context.Background(), model.Action{}, exp, pre, model.AdapterSnapshot{})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !r.Passed {
			t.Errorf("expected pass, got %+v", r)
		}
	})

	t.Run("pre-existing charge does not satisfy the expectation", func(t *testing.T) {
		t.Parallel()
		existing := PaymentRecord{ID: "ch_old", Amount: 1999, Currency: "usd", Status: "succeeded", Created: time.Now()}
		srv := paymentsServer(t, []PaymentRecord{existing})
		a := NewPaymentsAdapter("payments", srv.URL, "sk_test")
		if err := a.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}

		pre, _ := a.CaptureState(context.Background())

		exp := expect.Expectation{
			Kind:    expect.ExpectService,
			Adapter: "payments",
			Check:   map[string]string{"amount": "1999"},
		}
		r, err := a.Verify(context.Background(), model.Action{}, exp, pre, model.AdapterSnapshot{})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if r.Passed {
			t.Errorf("expected failure for pre-existing charge, got %+v", r)
		}
		if !strings.Contains(r.Message, "no new charge") {
			t.Errorf("unexpected message %q", r.Message)
		}
	})
}

func TestServiceAdapter(t *testing.T) {
	t.Parallel()

	t.Run("maps the service verdict", func(t *testing.T) {
		t.Parallel()
		var gotPayload verifyRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health":
				w.WriteHeader(http.StatusOK)
			case "/verify":
				_ = json.NewDecoder(r.Body).Decode(&gotPayload)
				_ = json.NewEncoder(w).Encode(verifyResponse{
					Passed:   false,
					Message:  "embedding not found",
					Expected: "1 embedding",
					Actual:   "0 embeddings",
				})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		t.Cleanup(srv.Close)

		a := NewServiceAdapter("ai", srv.URL, "key123")
		if err := a.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}

		exp := expect.Expectation{
			Kind:    expect.ExpectService,
			Adapter: "ai",
			Check:   map[string]string{"index": "songs", "operation": "embed"},
		}
		action := model.Action{Type: model.ActionClick, Label: "Add Song", Locator: "#add"}

		r, err := a.Verify(context.Background(), action, exp, model.AdapterSnapshot{}, model.AdapterSnapshot{})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if r.Passed {
			t.Error("expected the service's failing verdict to be preserved")
		}
		if r.Message != "embedding not found" || r.Actual != "0 embeddings" {
			t.Errorf("verdict not mapped: %+v", r)
		}
		if gotPayload.Action != "click" || gotPayload.Expects["index"] != "songs" {
			t.Errorf("unexpected payload %+v", gotPayload)
		}
	})

	t.Run("health failure fails connect", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		a := NewServiceAdapter("ai", srv.URL, "")
		if err := a.Connect(context.Background()); err == nil {
			t.Error("expected connect to fail on 500 health")
		}
	})
}
