package verify

import (
	"bytes"
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

// ServiceAdapter delegates verification to an external verification
// endpoint: an AI service, a search index, anything that exposes its own
// notion of "did the expected side effect happen". The adapter posts the
// action and the expectation's check map; the service answers with a
// verdict.
//
// This is the generic escape hatch of the verifier plugin set. The sqlite
// and payments adapters interpret expectations themselves; the service
// adapter forwards them to a backend that knows its own semantics.
type ServiceAdapter struct {
	name      string
	baseURL   string
	apiKey    string
	client    *http.Client
	connected bool
}

// ServiceOption configures a ServiceAdapter.
type ServiceOption func(*ServiceAdapter)

// WithServiceClient sets a custom HTTP client.
func WithServiceClient(client *http.Client) ServiceOption {
	return func(a *ServiceAdapter) {
		a.client = client
	}
}

// NewServiceAdapter creates an adapter for the verification service at
// baseURL. The apiKey may be empty for unauthenticated local services.
func NewServiceAdapter(name, baseURL, apiKey string, opts ...ServiceOption) *ServiceAdapter {
	a := &ServiceAdapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter's registered name.
func (a *ServiceAdapter) Name() string {
	return a.name
}

// Connect verifies the service answers its health endpoint.
func (a *ServiceAdapter) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("verification service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("verification service health returned %d", resp.StatusCode)
	}
	a.connected = true
	return nil
}

// Disconnect releases nothing; the adapter holds no persistent connection.
func (a *ServiceAdapter) Disconnect(_ context.Context) error {
	a.connected = false
	return nil
}

// CaptureState asks the service for its state digest via GET /state. A
// service without meaningful state may return any stable body; the digest
// is computed over whatever it answers.
func (a *ServiceAdapter) CaptureState(ctx context.Context) (model.AdapterSnapshot, error) {
	if !a.connected {
		return model.AdapterSnapshot{}, ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/state", nil)
	if err != nil {
		return model.AdapterSnapshot{}, err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return model.AdapterSnapshot{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, paymentsBodyLimit))
	if err != nil {
		return model.AdapterSnapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return model.AdapterSnapshot{}, fmt.Errorf("/state returned %d", resp.StatusCode)
	}

	sum := sha256.Sum256(body)
	return model.AdapterSnapshot{
		Adapter: a.name,
		Digest:  fmt.Sprintf("%x", sum[:16]),
		Data:    body,
	}, nil
}

// verifyRequest is the payload posted to the service's /verify endpoint.
type verifyRequest struct {
	Action  string            `json:"action"`
	Locator string            `json:"locator,omitempty"`
	Label   string            `json:"label,omitempty"`
	Value   string            `json:"value,omitempty"`
	Expects map[string]string `json:"expects"`
}

// verifyResponse is the service's verdict.
type verifyResponse struct {
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Verify posts the action and the expectation's check map to /verify and
// maps the JSON verdict onto a VerificationResult.
func (a *ServiceAdapter) Verify(ctx context.Context, action model.Action, exp expect.Expectation, _, _ model.AdapterSnapshot) (model.VerificationResult, error) {
	if !a.connected {
		return model.VerificationResult{}, ErrNotConnected
	}

	r := model.VerificationResult{Expectation: exp.Describe()}

	payload, err := json.Marshal(verifyRequest{
		Action:  action.Type.String(),
		Locator: action.Locator,
		Label:   action.Label,
		Value:   action.Value,
		Expects: exp.Check,
	})
	if err != nil {
		return r, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return r, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return r, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, paymentsBodyLimit))
	if err != nil {
		return r, err
	}
	if resp.StatusCode != http.StatusOK {
		return r, fmt.Errorf("/verify returned %d", resp.StatusCode)
	}

	var verdict verifyResponse
	if err := json.Unmarshal(body, &verdict); err != nil {
		return r, fmt.Errorf("decode verdict: %w", err)
	}

	r.Passed = verdict.Passed
	r.Message = verdict.Message
	r.Expected = verdict.Expected
	r.Actual = verdict.Actual
	return r, nil
}

func (a *ServiceAdapter) authorize(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}
