// Package paymenttest provides an in-memory payment.Gateway.
package paymenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"stagepay/internal/payment"
)

// ValidSignature is the only signature Gateway.VerifyWebhook accepts.
const ValidSignature = "t=1,v1=valid"

// Gateway records calls. Charges succeed unless ChargeFunc says otherwise.
type Gateway struct {
	mu sync.Mutex

	ChargeFunc func(req payment.ChargeRequest) (*payment.Charge, error)

	Charges     []payment.ChargeRequest
	Customers   []payment.CustomerRequest
	ByTxn       map[string]*payment.Charge
	ByReference map[string]*payment.Charge
	Cards       map[string][]payment.Card
	nextID      int
}

func New() *Gateway {
	return &Gateway{
		ByTxn:       map[string]*payment.Charge{},
		ByReference: map[string]*payment.Charge{},
		Cards:       map[string][]payment.Card{},
	}
}

var _ payment.Gateway = (*Gateway)(nil)

func (g *Gateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s_%d", prefix, g.nextID)
}

func (g *Gateway) EnsureCustomer(_ context.Context, req payment.CustomerRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Customers = append(g.Customers, req)
	return g.id("cus"), nil
}

func (g *Gateway) CreateOffSessionCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	g.Charges = append(g.Charges, req)
	fn := g.ChargeFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c := &payment.Charge{TransactionID: g.id("pi"), Status: payment.ChargeSucceeded}
	c.TransferID = g.id("tr")
	g.ByTxn[c.TransactionID] = c
	g.ByReference[req.Reference] = c
	return c, nil
}

// ChargeCount returns how many charges were attempted.
func (g *Gateway) ChargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Charges)
}

func (g *Gateway) CreateSetupIntent(_ context.Context, customerID string) (*payment.SetupIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id("seti")
	return &payment.SetupIntent{ID: id, ClientSecret: id + "_secret_" + customerID}, nil
}

func (g *Gateway) AttachPaymentMethod(_ context.Context, customerID, paymentMethodID string) (*payment.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := payment.Card{PaymentMethodID: paymentMethodID, Brand: "visa", Last4: "4242"}
	g.Cards[customerID] = append(g.Cards[customerID], c)
	return &c, nil
}

func (g *Gateway) ListPaymentMethods(_ context.Context, customerID string) ([]payment.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.Card(nil), g.Cards[customerID]...), nil
}

func (g *Gateway) GetCharge(_ context.Context, transactionID string) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.ByTxn[transactionID]
	if !ok {
		return nil, fmt.Errorf("no such charge %s", transactionID)
	}
	cp := *c
	return &cp, nil
}

func (g *Gateway) FindChargeByReference(_ context.Context, reference string) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.ByReference[reference]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// VerifyWebhook decodes payload as a payment.WebhookEvent.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if signature != ValidSignature {
		return nil, payment.ErrInvalidSignature
	}
	var ev payment.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}
