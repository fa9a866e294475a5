package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/mistika/checkout/internal/checkout/domain"
)

const confirmationCategory = "order-confirmation"

var (
	confirmationText = texttemplate.Must(texttemplate.New("text").Parse(`Thank you for your order!

Order number: {{.OrderNumber}}
Total: {{.Total}} {{.Currency}}

You can follow your order here for the next 24 hours:
{{.DetailURL}}

MISTIKA
`))

	confirmationHTML = template.Must(template.New("html").Parse(`<!doctype html>
<html>
<body style="font-family: Georgia, serif; color: #2b2118;">
<h1>Thank you for your order!</h1>
<p>Order number: <strong>{{.OrderNumber}}</strong></p>
<p>Total: {{.Total}} {{.Currency}}</p>
<p><a href="{{.DetailURL}}">View your order</a> (the link is valid for 24 hours).</p>
<p>MISTIKA</p>
</body>
</html>
`))
)

type confirmationData struct {
	OrderNumber string
	Total       string
	Currency    string
	DetailURL   string
}

// ConfirmationMailer implements ports.ConfirmationMailer.
type ConfirmationMailer struct {
	sender Sender
}

func NewConfirmationMailer(sender Sender) *ConfirmationMailer {
	return &ConfirmationMailer{sender: sender}
}

func (m *ConfirmationMailer) SendOrderConfirmation(ctx context.Context, order domain.Order, detailURL string) error {
	data := confirmationData{
		OrderNumber: order.OrderNumber,
		Total:       decimal.New(order.AmountCents, -2).StringFixed(2),
		Currency:    order.Currency,
		DetailURL:   detailURL,
	}

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, data); err != nil {
		return fmt.Errorf("render confirmation text: %w", err)
	}
	if err := confirmationHTML.Execute(&html, data); err != nil {
		return fmt.Errorf("render confirmation html: %w", err)
	}

	return m.sender.Send(ctx, Message{
		To:       order.CustomerEmail,
		Subject:  fmt.Sprintf("Your MISTIKA order %s", order.OrderNumber),
		Text:     text.String(),
		HTML:     html.String(),
		Category: confirmationCategory,
	})
}
