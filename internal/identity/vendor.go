package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	vendorPathNIN        = "nin"
	vendorPathBVN        = "bvn"
	vendorBodyLimit      = 1 << 20
	defaultVendorTimeout = 10 * time.Second
)

// ErrVendorConfig indicates a missing base URL or api key.
var ErrVendorConfig = errors.New("invalid kyc vendor config")

// VendorProvider calls a KYC vendor over HTTPS.
type VendorProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type vendorEnvelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    Record `json:"data"`
}

// NewVendorProvider validates configuration. A nil client gets a 10s timeout client.
func NewVendorProvider(baseURL string, apiKey string, httpClient *http.Client) (*VendorProvider, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrVendorConfig)
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorConfig, err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrVendorConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultVendorTimeout}
	}
	return &VendorProvider{baseURL: trimmedBase, apiKey: apiKey, httpClient: httpClient}, nil
}

func (provider *VendorProvider) FetchByNIN(ctx context.Context, nin string) (Record, error) {
	return provider.lookup(ctx, vendorPathNIN, nin)
}

func (provider *VendorProvider) FetchByBVN(ctx context.Context, bvn string) (Record, error) {
	return provider.lookup(ctx, vendorPathBVN, bvn)
}

func (provider *VendorProvider) lookup(ctx context.Context, path string, identifier string) (Record, error) {
	endpoint := provider.baseURL + "/" + path + "/" + url.PathEscape(identifier)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	request.Header.Set("Authorization", "Bearer "+provider.apiKey)
	request.Header.Set("Accept", "application/json")

	response, err := provider.httpClient.Do(request)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return Record{}, fmt.Errorf("%w: vendor returned 404", ErrIdentityNotFound)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Record{}, fmt.Errorf("%w: vendor status %d", ErrProviderUnavailable, response.StatusCode)
	}
	var envelope vendorEnvelope
	if err := json.NewDecoder(io.LimitReader(response.Body, vendorBodyLimit)).Decode(&envelope); err != nil {
		return Record{}, fmt.Errorf("%w: decode: %v", ErrProviderUnavailable, err)
	}
	if !envelope.Status {
		return Record{}, fmt.Errorf("%w: %s", ErrIdentityNotFound, envelope.Message)
	}
	if envelope.Data.Identifier == "" {
		envelope.Data.Identifier = identifier
	}
	return envelope.Data, nil
}
