package ledger

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ndviet/market-gate/internal/core/domain"
)

// HTTPClient talks to the ledger gateway's REST API for reads and buy
// submission. Timeouts come from the caller's context on top of a hard
// per-request ceiling.
type HTTPClient struct {
	http *resty.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := resty.New()
	client.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &HTTPClient{http: client}
}

type itemResponse struct {
	ItemID    string `json:"item_id"`
	Price     string `json:"price"`
	Inventory int64  `json:"inventory"`
}

type buyRequest struct {
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	RequestID string `json:"request_id"`
}

type buyResponse struct {
	RequestID string `json:"request_id"`
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	TxRef     string `json:"tx_ref"`
	Error     string `json:"error"`
}

// ReadItem fetches the current price and inventory pair in one call.
func (c *HTTPClient) ReadItem(ctx context.Context, itemID string) (decimal.Decimal, int64, error) {
	var out itemResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/items/%s", itemID))
	if err != nil {
		return decimal.Decimal{}, 0, fmt.Errorf("read item %s: %w", itemID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Decimal{}, 0, fmt.Errorf("read item %s: status %d", itemID, resp.StatusCode())
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Decimal{}, 0, fmt.Errorf("read item %s: bad price %q: %w", itemID, out.Price, err)
	}
	if price.IsNegative() || out.Inventory < 0 {
		return decimal.Decimal{}, 0, fmt.Errorf("read item %s: negative state from ledger", itemID)
	}
	return price, out.Inventory, nil
}

// SubmitBuy submits a buy and waits for the ledger's settlement answer.
// A 4xx answer with an error body maps to domain.ErrLedgerRejected.
func (c *HTTPClient) SubmitBuy(ctx context.Context, itemID string, quantity int64, requestID string) (domain.Confirmation, error) {
	var out buyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(buyRequest{ItemID: itemID, Quantity: quantity, RequestID: requestID}).
		SetResult(&out).
		SetError(&out).
		Post("/api/buy")
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("submit buy %s: %w", itemID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return domain.Confirmation{
			RequestID: out.RequestID,
			ItemID:    out.ItemID,
			Quantity:  out.Quantity,
			TxRef:     out.TxRef,
		}, nil
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		reason := out.Error
		if reason == "" {
			reason = resp.Status()
		}
		return domain.Confirmation{}, fmt.Errorf("%w: %s", domain.ErrLedgerRejected, reason)
	default:
		return domain.Confirmation{}, fmt.Errorf("submit buy %s: status %d", itemID, resp.StatusCode())
	}
}
