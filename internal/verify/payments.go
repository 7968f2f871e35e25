package verify

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// recencyWindow is how far back a payments check looks when matching a
// charge or refund to the action just executed. Snapshots are captured
// seconds apart; anything older belongs to a previous action or run.
const recencyWindow = 2 * time.Minute

// paymentsBodyLimit caps how much of a payments response is read. List
// endpoints are paginated; a misbehaving one must not exhaust memory.
const paymentsBodyLimit = 1 << 20

// PaymentRecord is one charge or refund as reported by the payments
// service's list endpoints.
type PaymentRecord struct {
	ID       string    `json:"id"`
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency"`
	Status   string    `json:"status"`
	Created  time.Time `json:"created"`
}

// paymentsListing is the snapshot payload: the recent charges and refunds
// at capture time.
type paymentsListing struct {
	Charges []PaymentRecord `json:"charges"`
	Refunds []PaymentRecord `json:"refunds"`
}

// PaymentsAdapter verifies expectations against a payments service by
// reading its list endpoints. All calls are GETs with the service secret in
// the Authorization header; the adapter never creates or mutates payment
// objects.
type PaymentsAdapter struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
	connected bool
}

// PaymentsOption configures a PaymentsAdapter.
type PaymentsOption func(*PaymentsAdapter)

// WithPaymentsClient sets a custom HTTP client, used by tests to point the
// adapter at an httptest server with tight timeouts.
func WithPaymentsClient(client *http.Client) PaymentsOption {
	return func(a *PaymentsAdapter) {
		a.client = client
	}
}

// NewPaymentsAdapter creates an adapter for the payments service at
// baseURL, authenticating with secretKey.
func NewPaymentsAdapter(name, baseURL, secretKey string, opts ...PaymentsOption) *PaymentsAdapter {
	a := &PaymentsAdapter{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter's registered name.
func (a *PaymentsAdapter) Name() string {
	return a.name
}

// Connect verifies the service is reachable and the credential accepted by
// listing charges once.
func (a *PaymentsAdapter) Connect(ctx context.Context) error {
	if _, err := a.list(ctx, "/v1/charges"); err != nil {
		return fmt.Errorf("payments service unreachable: %w", err)
	}
	a.connected = true
	return nil
}

// Disconnect releases nothing; the adapter holds no persistent connection.
func (a *PaymentsAdapter) Disconnect(_ context.Context) error {
	a.connected = false
	return nil
}

// CaptureState snapshots the recent charges and refunds.
func (a *PaymentsAdapter) CaptureState(ctx context.Context) (model.AdapterSnapshot, error) {
	if !a.connected {
		return model.AdapterSnapshot{}, ErrNotConnected
	}

	charges, err := a.list(ctx, "/v1/charges")
	if err != nil {
		return model.AdapterSnapshot{}, err
	}
	refunds, err := a.list(ctx, "/v1/refunds")
	if err != nil {
		return model.AdapterSnapshot{}, err
	}

	listing := paymentsListing{Charges: charges, Refunds: refunds}
	raw, err := json.Marshal(listing)
	if err != nil {
		return model.AdapterSnapshot{}, err
	}

	sum := sha256.Sum256(raw)
	return model.AdapterSnapshot{
		Adapter: a.name,
		Digest:  fmt.Sprintf("%x", sum[:16]),
		Data:    raw,
	}, nil
}

// Verify checks a payments expectation. The check map supports:
//
//	type:     "charge_exists" (default) or "refund_exists"
//	amount:   exact amount in minor units, e.g. "1999"
//	currency: ISO currency code, e.g. "usd"
//	status:   required record status, e.g. "succeeded"
//
// A record matches when it satisfies every given criterion, appeared after
// the pre-snapshot was taken, and is no older than the recency window.
func (a *PaymentsAdapter) Verify(ctx context.Context, _ model.Action, exp expect.Expectation, pre, _ model.AdapterSnapshot) (model.VerificationResult, error) {
	if !a.connected {
		return model.VerificationResult{}, ErrNotConnected
	}

	r := model.VerificationResult{Expectation: exp.Describe()}

	kind := exp.Check["type"]
	if kind == "" {
		kind = "charge_exists"
	}
	path := "/v1/charges"
	if kind == "refund_exists" {
		path = "/v1/refunds"
	}

	// Re-list live rather than trusting the post snapshot: the payment may
	// land asynchronously after the UI settles.
	records, err := a.list(ctx, path)
	if err != nil {
		return r, err
	}

	preIDs := knownIDs(pre, kind)
	criteria := describeCriteria(exp.Check)
	cutoff := time.Now().Add(-recencyWindow)

	for _, rec := range records {
		if preIDs[rec.ID] {
			continue // existed before the action
		}
		if !rec.Created.IsZero() && rec.Created.Before(cutoff) {
			continue
		}
		if !matchesCriteria(rec, exp.Check) {
			continue
		}
		r.Passed = true
		r.Expected = criteria
		r.Actual = fmt.Sprintf("%s %s", kind, rec.ID)
		return r, nil
	}

	r.Expected = criteria
	r.Actual = "no matching record"
	r.Message = fmt.Sprintf("no new %s matching %s within %s", strings.TrimSuffix(kind, "_exists"), criteria, recencyWindow)
	return r, nil
}

// list fetches one list endpoint and decodes its records. Both bare arrays
// and Stripe-style {"data": [...]} envelopes are accepted.
func (a *PaymentsAdapter) list(ctx context.Context, path string) ([]PaymentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, paymentsBodyLimit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}

	var records []PaymentRecord
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Data []PaymentRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return envelope.Data, nil
}

// knownIDs extracts the record IDs present in the pre snapshot so only
// records created by the action count as matches.
func knownIDs(snap model.AdapterSnapshot, kind string) map[string]bool {
	out := make(map[string]bool)
	if len(snap.Data) == 0 {
		return out
	}
	var listing paymentsListing
	if err := json.Unmarshal(snap.Data, &listing); err != nil {
		return out
	}
	records := listing.Charges
	if kind == "refund_exists" {
		records = listing.Refunds
	}
	for _, rec := range records {
		out[rec.ID] = true
	}
	return out
}

// matchesCriteria reports whether a record satisfies every given criterion.
func matchesCriteria(rec PaymentRecord, check map[string]string) bool {
	if amount, ok := check["amount"]; ok && amount != fmt.Sprintf("%d", rec.Amount) {
		return false
	}
	if currency, ok := check["currency"]; ok && !strings.EqualFold(currency, rec.Currency) {
		return false
	}
	if status, ok := check["status"]; ok && !strings.EqualFold(status, rec.Status) {
		return false
	}
	return true
}

// describeCriteria renders the check map for messages, keys sorted.
func describeCriteria(check map[string]string) string {
	if len(check) == 0 {
		return "any record"
	}
	cols := sortedKeys(check)
	parts := make([]string, 0, len(cols))
	for _, k := range cols {
		if k == "type" {
			continue
		}
		parts = append(parts, k+"="+check[k])
	}
	if len(parts) == 0 {
		return "any record"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
