package commands_test

import (
	"context"
	"sync"

	"github.com/mistika/checkout/internal/checkout/domain"
)

type fakeProvider struct {
	mu          sync.Mutex
	payments    map[string]*domain.Payment
	chargebacks map[string]*domain.Chargeback
	claims      map[string]*domain.Claim
	calls       int
	// onPayment runs before each payment lookup returns.
	onPayment func(id string)
}

func (p *fakeProvider) GetPayment(_ context.Context, id string) *domain.Payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.onPayment != nil {
		p.onPayment(id)
	}
	return p.payments[id]
}

func (p *fakeProvider) GetChargeback(_ context.Context, id string) *domain.Chargeback {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.chargebacks[id]
}

func (p *fakeProvider) GetClaim(_ context.Context, id string) *domain.Claim {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.claims[id]
}

type sentMail struct {
	order     domain.Order
	detailURL string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, order domain.Order, detailURL string) error {
	m.sent = append(m.sent, sentMail{order: order, detailURL: detailURL})
	return m.err
}

type fakeLinks struct{}

func (fakeLinks) BuildDetailURL(orderID, orderNumber, _ string) string {
	return "https://mistika.example/orders/details/" + orderID + "?orderNumber=" + orderNumber
}

type fakeEventBus struct {
	confirmed   []string
	chargebacks []string
	claims      []string
	err         error
}

func (b *fakeEventBus) PublishOrderConfirmed(_ context.Context, orderID, _ string) error {
	b.confirmed = append(b.confirmed, orderID)
	return b.err
}

func (b *fakeEventBus) PublishChargeback(_ context.Context, orderID, _ string) error {
	b.chargebacks = append(b.chargebacks, orderID)
	return b.err
}

func (b *fakeEventBus) PublishClaimOpened(_ context.Context, orderID, _ string) error {
	b.claims = append(b.claims, orderID)
	return b.err
}
