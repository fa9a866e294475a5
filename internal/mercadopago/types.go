package mercadopago

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mistika/checkout/internal/checkout/domain"
)

// ID is a provider identifier kept as an opaque string. Mercado Pago sends most
// ids as JSON numbers; they are never coerced to integers here.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type paymentResponse struct {
	ID                ID              `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateApproved      *time.Time      `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

func (p paymentResponse) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		TransactionAmount: p.TransactionAmount,
		CurrencyID:        p.CurrencyID,
		PayerEmail:        p.Payer.Email,
		DateApproved:      p.DateApproved,
	}
}

type chargebackResponse struct {
	ID                  ID              `json:"id"`
	Payments            []ID            `json:"payments"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	CoverageApplied     bool            `json:"coverage_applied"`
	DocumentationStatus string          `json:"documentation_status"`
}

func (c chargebackResponse) toDomain() *domain.Chargeback {
	paymentIDs := make([]string, 0, len(c.Payments))
	for _, id := range c.Payments {
		paymentIDs = append(paymentIDs, id.String())
	}
	return &domain.Chargeback{
		ID:                  c.ID.String(),
		PaymentIDs:          paymentIDs,
		Amount:              c.Amount,
		Currency:            c.Currency,
		CoverageApplied:     c.CoverageApplied,
		DocumentationStatus: c.DocumentationStatus,
	}
}

type claimResponse struct {
	ID         ID     `json:"id"`
	ResourceID ID     `json:"resource_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Type       string `json:"type"`
}

func (c claimResponse) toDomain() *domain.Claim {
	return &domain.Claim{
		ID:         c.ID.String(),
		ResourceID: c.ResourceID.String(),
		Status:     c.Status,
		Stage:      c.Stage,
		Type:       c.Type,
	}
}
