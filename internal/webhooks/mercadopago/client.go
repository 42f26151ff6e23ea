package mpwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avoberry/avoberry-backend/pkg/config"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

// Payment is the gateway's payment resource, trimmed to the fields the
// reconciliation path consumes.
type Payment struct {
	ID                 int64              `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	CurrencyID         string             `json:"currency_id"`
	DateApproved       *time.Time         `json:"date_approved"`
	TransactionAmount  float64            `json:"transaction_amount"`
	ShippingAmount     float64            `json:"shipping_amount"`
	PaymentMethodID    string             `json:"payment_method_id"`
	PaymentTypeID      string             `json:"payment_type_id"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	AdditionalInfo     AdditionalInfo     `json:"additional_info"`
}

type TransactionDetails struct {
	TotalPaidAmount   float64 `json:"total_paid_amount"`
	NetReceivedAmount float64 `json:"net_received_amount"`
}

type AdditionalInfo struct {
	Items []PaymentLineItem `json:"items"`
}

// PaymentLineItem is one purchased line. The gateway serializes quantity as
// either a number or a string depending on the integration, hence json.Number.
type PaymentLineItem struct {
	ID       string      `json:"id"`
	Quantity json.Number `json:"quantity"`
}

// Qty returns the line quantity, zero when the cell is absent or malformed.
func (i PaymentLineItem) Qty() int {
	n, err := i.Quantity.Int64()
	if err != nil {
		return 0
	}
	return int(n)
}

// Client fetches payments from the gateway REST API. Notifications only
// carry the payment id; the full record always comes from this lookup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg config.MercadoPagoConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.AccessToken,
	}
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found", id))
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment")
	}
	return &payment, nil
}
