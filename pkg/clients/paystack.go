package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider verification calls must not hang a request handler; the
// provider gets a hard deadline and no automatic retry.
const DefaultTimeout = time.Second * 30

var ErrFailedCloseResponseBody = errors.New("failed close response body")

// ProviderVerification is the provider's answer for one reference.
// Amount is in minor units (kobo/pesewas), the provider's convention.
type ProviderVerification struct {
	Status   string
	Amount   int64
	Currency string
}

type HTTPClientI interface {
	Do(req *http.Request) (*http.Response, error)
}

// Paystack is a thin client for the provider verification API. The
// provider is a black box here: one reference in, one status/amount out.
type Paystack struct {
	baseURL string
	secret  string
	client  HTTPClientI
}

func NewPaystack(baseURL, secret string, timeout time.Duration) *Paystack {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Paystack{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetClient swaps the underlying HTTP client, used by tests.
func (p *Paystack) SetClient(client HTTPClientI) {
	p.client = client
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (result *ProviderVerification, err error) {
	url := p.baseURL + "/transaction/verify/" + reference
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			err = errors.Join(err, ErrFailedCloseResponseBody)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("provider rejected verification: %s", parsed.Message)
	}

	return &ProviderVerification{
		Status:   parsed.Data.Status,
		Amount:   parsed.Data.Amount,
		Currency: parsed.Data.Currency,
	}, nil
}
