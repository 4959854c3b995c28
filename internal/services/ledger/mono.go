package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trust-verification-backend/internal/errs"
)

// MonoProvider fetches normalized transaction history from the Mono-style
// aggregator API. The engine only ever sees this normalized shape.
type MonoProvider struct {
	baseURL string
	client  *http.Client
}

func NewMonoProvider(baseURL string, timeout time.Duration) *MonoProvider {
	return &MonoProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type monoTransaction struct {
	ID       string    `json:"id"`
	Amount   float64   `json:"amount"`
	Type     string    `json:"type"`
	Category string    `json:"category"`
	Date     time.Time `json:"date"`
}

func (p *MonoProvider) FetchTransactions(ctx context.Context, token string) ([]ProviderTransaction, error) {
	url := fmt.Sprintf("%s/accounts/%s/transactions", p.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build provider request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrTransientProvider, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Revoked or dead link. Retrying cannot help.
		return nil, errs.Wrapf(errs.ErrTerminalProvider, "provider status %d", resp.StatusCode)
	default:
		return nil, errs.Wrapf(errs.ErrTransientProvider, "provider status %d", resp.StatusCode)
	}

	var body struct {
		Data []monoTransaction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.Wrap(errs.ErrTransientProvider, "decode provider response")
	}

	records := make([]ProviderTransaction, 0, len(body.Data))
	for _, tx := range body.Data {
		records = append(records, ProviderTransaction{
			ExternalID: tx.ID,
			Amount:     tx.Amount,
			Direction:  tx.Type,
			Category:   tx.Category,
			OccurredAt: tx.Date,
		})
	}
	return records, nil
}
