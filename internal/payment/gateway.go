package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPaystackBaseURL is the production API host.
	DefaultPaystackBaseURL = "https://api.paystack.co"

	// StatusSuccess is the transaction status reported for a captured charge.
	StatusSuccess = "success"

	pathInitialize        = "/transaction/initialize"
	pathVerify            = "/transaction/verify/"
	gatewayBodyLimit      = 1 << 20
	defaultGatewayTimeout = 15 * time.Second
	mockReferencePrefix   = "mock_ref_"
	mockAuthorizationURL  = "/mock-payment?reference="
)

// Initialization is returned when a checkout is started.
type Initialization struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// Verification describes a transaction as the provider sees it.
type Verification struct {
	Status     string
	AmountKobo int64
	Email      string
	Reference  string
}

// Succeeded reports whether the charge was captured.
func (verification Verification) Succeeded() bool {
	return verification.Status == StatusSuccess
}

// Gateway starts and verifies card payments.
type Gateway interface {
	Initialize(ctx context.Context, email string, amountKobo int64, callbackURL string) (Initialization, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}

// PaystackGateway calls the Paystack REST API.
type PaystackGateway struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// NewPaystackGateway validates configuration. An empty baseURL selects DefaultPaystackBaseURL.
func NewPaystackGateway(baseURL string, secretKey string, httpClient *http.Client) (*PaystackGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%w: secret key is required", ErrGatewayConfig)
	}
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = DefaultPaystackBaseURL
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayConfig, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGatewayTimeout}
	}
	return &PaystackGateway{baseURL: trimmedBase, secretKey: secretKey, httpClient: httpClient}, nil
}

func (gateway *PaystackGateway) Initialize(ctx context.Context, email string, amountKobo int64, callbackURL string) (Initialization, error) {
	if strings.TrimSpace(email) == "" || amountKobo <= 0 {
		return Initialization{}, fmt.Errorf("%w: email and positive amount are required", ErrInvalidPaymentInput)
	}
	payload, err := json.Marshal(paystackInitializeRequest{Email: email, Amount: amountKobo, CallbackURL: callbackURL})
	if err != nil {
		return Initialization{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	var initialization Initialization
	if err := gateway.call(ctx, http.MethodPost, pathInitialize, payload, &initialization); err != nil {
		return Initialization{}, err
	}
	return initialization, nil
}

func (gateway *PaystackGateway) Verify(ctx context.Context, reference string) (Verification, error) {
	if strings.TrimSpace(reference) == "" {
		return Verification{}, fmt.Errorf("%w: reference is required", ErrInvalidPaymentInput)
	}
	var data paystackVerifyData
	if err := gateway.call(ctx, http.MethodGet, pathVerify+url.PathEscape(reference), nil, &data); err != nil {
		return Verification{}, err
	}
	if data.Reference == "" {
		data.Reference = reference
	}
	return Verification{
		Status:     data.Status,
		AmountKobo: data.Amount,
		Email:      data.Customer.Email,
		Reference:  data.Reference,
	}, nil
}

func (gateway *PaystackGateway) call(ctx context.Context, method string, path string, payload []byte, target any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, gateway.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	request.Header.Set("Authorization", "Bearer "+gateway.secretKey)
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := gateway.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer response.Body.Close()

	var envelope paystackEnvelope
	decodeErr := json.NewDecoder(io.LimitReader(response.Body, gatewayBodyLimit)).Decode(&envelope)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d %s", ErrGatewayUnavailable, response.StatusCode, envelope.Message)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode: %v", ErrGatewayUnavailable, decodeErr)
	}
	if !envelope.Status {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, envelope.Message)
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

// MockGateway stands in for Paystack when no secret key is configured.
// References are mock_ref_<n>. Only references it issued verify as successful.
type MockGateway struct {
	mutex   sync.Mutex
	counter int
	pending map[string]Verification
}

// NewMockGateway returns an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{pending: map[string]Verification{}}
}

func (gateway *MockGateway) Initialize(_ context.Context, email string, amountKobo int64, _ string) (Initialization, error) {
	if strings.TrimSpace(email) == "" || amountKobo <= 0 {
		return Initialization{}, fmt.Errorf("%w: email and positive amount are required", ErrInvalidPaymentInput)
	}
	gateway.mutex.Lock()
	defer gateway.mutex.Unlock()
	gateway.counter++
	reference := fmt.Sprintf("%s%d", mockReferencePrefix, gateway.counter)
	gateway.pending[reference] = Verification{
		Status:     StatusSuccess,
		AmountKobo: amountKobo,
		Email:      email,
		Reference:  reference,
	}
	return Initialization{AuthorizationURL: mockAuthorizationURL + reference, Reference: reference}, nil
}

// Verify reports the initialized charge. References it never issued fail with ErrPaymentNotSuccessful.
func (gateway *MockGateway) Verify(_ context.Context, reference string) (Verification, error) {
	if strings.TrimSpace(reference) == "" {
		return Verification{}, fmt.Errorf("%w: reference is required", ErrInvalidPaymentInput)
	}
	gateway.mutex.Lock()
	defer gateway.mutex.Unlock()
	if verification, ok := gateway.pending[reference]; ok {
		return verification, nil
	}
	return Verification{}, fmt.Errorf("%w: unknown mock reference %q", ErrPaymentNotSuccessful, reference)
}
