package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/shopspring/decimal"
)

// StatusSource decides what a sandbox payment reports the first time it is checked.
type StatusSource interface {
	Status(referenceID string) domain.PaymentStatus
}

type FixedStatus domain.PaymentStatus

func (s FixedStatus) Status(string) domain.PaymentStatus {
	return domain.PaymentStatus(s)
}

// RandomStatus succeeds 95% of the time; the rest is split between a payment
// that is still processing and one that was canceled.
type RandomStatus struct{}

func (RandomStatus) Status(string) domain.PaymentStatus {
	return calcStatus(rand.Intn(101))
}

func calcStatus(randomInt int) domain.PaymentStatus {
	switch {
	case randomInt < 95:
		return domain.PaymentStatusSucceeded
	case randomInt < 98:
		return domain.PaymentStatusProcessing
	default:
		return domain.PaymentStatusCanceled
	}
}

// SandboxGateway is an in-memory PaymentGateway for local runs without a
// processor account.
type SandboxGateway struct {
	mu        sync.Mutex
	seq       int
	customers map[string]string
	intents   map[string]*PaymentIntent
	resolved  map[string]bool
	source    StatusSource
}

func NewSandboxGateway(source StatusSource) *SandboxGateway {
	if source == nil {
		source = FixedStatus(domain.PaymentStatusSucceeded)
	}
	return &SandboxGateway{
		customers: map[string]string{},
		intents:   map[string]*PaymentIntent{},
		resolved:  map[string]bool{},
		source:    source,
	}
}

// CreateOrReuseCustomer returns existingID when this gateway created it.
// Ids it has never seen, such as ids stored before a restart or by another
// gateway, get a fresh sandbox customer instead of a lookup error.
func (g *SandboxGateway) CreateOrReuseCustomer(_ context.Context, existingID, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.customers[existingID]; ok && existingID != "" {
		return existingID, nil
	}
	g.seq++
	id := fmt.Sprintf("cus_sandbox_%d", g.seq)
	g.customers[id] = email
	return id, nil
}

func (g *SandboxGateway) CreatePaymentIntent(_ context.Context, customerID string, amount decimal.Decimal, currency string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: unknown customer %s", ErrGateway, customerID)
	}
	g.seq++
	ref := fmt.Sprintf("pi_sandbox_%d", g.seq)
	intent := &PaymentIntent{
		ReferenceID:  ref,
		ClientSecret: ref + "_secret",
		CustomerID:   customerID,
		Status:       domain.PaymentStatusRequiresPaymentMethod,
		Amount:       MinorUnits(amount),
		Currency:     currency,
	}
	g.intents[ref] = intent
	cp := *intent
	return &cp, nil
}

func (g *SandboxGateway) RetrievePaymentStatus(_ context.Context, referenceID string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[referenceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, referenceID)
	}
	if !g.resolved[referenceID] {
		intent.Status = g.source.Status(referenceID)
		g.resolved[referenceID] = true
	}
	cp := *intent
	return &cp, nil
}
