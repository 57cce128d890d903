package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/fjod/go_cart/checkout-payment/internal/gateway"
	"github.com/fjod/go_cart/checkout-payment/internal/lock"
	r "github.com/fjod/go_cart/checkout-payment/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore keeps Store state in memory with the same conflict rules as Postgres.
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[int64]*domain.UserProfile
	carts     map[int64][]domain.CartLineItem
	sessions  []*domain.PaymentSession
	orders    map[string]*domain.Order
	findCalls int

	CreateSessionErr error
	RecordOrderErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[int64]*domain.UserProfile{},
		carts:    map[int64][]domain.CartLineItem{},
		orders:   map[string]*domain.Order{},
	}
}

func (f *fakeStore) addUser(id int64, email string, items ...domain.CartLineItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = &domain.UserProfile{UserID: id, Email: email}
	f.carts[id] = items
}

func (f *fakeStore) setCart(id int64, items ...domain.CartLineItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[id] = items
}

func (f *fakeStore) GetUserProfile(_ context.Context, userID int64) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, r.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) FindLineItems(_ context.Context, userID int64) ([]domain.CartLineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	return append(make([]domain.CartLineItem, 0), f.carts[userID]...), nil
}

func (f *fakeStore) ClearCart(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, userID)
	return nil
}

func (f *fakeStore) CreatePaymentSession(_ context.Context, session *domain.PaymentSession, supersedes *domain.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateSessionErr != nil {
		return f.CreateSessionErr
	}
	if supersedes != nil && supersedes.Status == domain.SessionStatusPending {
		stored := f.sessionByID(supersedes.ID)
		if stored == nil || stored.Version != supersedes.Version || stored.Status != domain.SessionStatusPending {
			return r.ErrSessionConflict
		}
		stored.Status = domain.SessionStatusSuperseded
		stored.Version++
	}
	for _, s := range f.sessions {
		if s.UserID == session.UserID && s.Status == domain.SessionStatusPending {
			return r.ErrSessionConflict
		}
	}
	f.profiles[session.UserID].GatewayCustomerID = session.GatewayCustomerID
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	cp := *session
	f.sessions = append(f.sessions, &cp)
	return nil
}

func (f *fakeStore) GetCurrentSession(_ context.Context, userID int64) (*domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.UserID == userID && s.Status != domain.SessionStatusSuperseded {
			cp := *s
			return &cp, nil
		}
	}
	return nil, r.ErrSessionNotFound
}

func (f *fakeStore) UpdateSessionStatus(_ context.Context, session *domain.PaymentSession, status domain.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateStatus(session, status)
}

func (f *fakeStore) updateStatus(session *domain.PaymentSession, status domain.SessionStatus) error {
	stored := f.sessionByID(session.ID)
	if stored == nil || stored.Version != session.Version || !domain.CanTransitionTo(stored.Status, status) {
		return r.ErrVersionConflict
	}
	stored.Status = status
	stored.Version++
	session.Status = status
	session.Version = stored.Version
	return nil
}

func (f *fakeStore) RecordOrder(_ context.Context, session *domain.PaymentSession, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RecordOrderErr != nil {
		return f.RecordOrderErr
	}
	if _, exists := f.orders[order.PaymentReferenceID]; exists {
		return r.ErrDuplicateOrder
	}
	if err := f.updateStatus(session, domain.SessionStatusPaid); err != nil {
		return err
	}
	order.CreatedAt = time.Now()
	cp := *order
	f.orders[order.PaymentReferenceID] = &cp
	return nil
}

func (f *fakeStore) GetOrderByPaymentReference(_ context.Context, referenceID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[referenceID]
	if !ok {
		return nil, r.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) MarkOrderPublished(_ context.Context, orderID uuid.UUID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == orderID && o.MessageID == "" {
			now := time.Now()
			o.MessageID = messageID
			o.PublishedAt = &now
		}
	}
	return nil
}

func (f *fakeStore) GetUnpublishedOrders(_ context.Context, _ time.Duration, limit int) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Order
	for _, o := range f.orders {
		if !o.Published() && len(out) < limit {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) sessionByID(id uuid.UUID) *domain.PaymentSession {
	for _, s := range f.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeStore) order(referenceID string) *domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[referenceID]
}

// fakeGateway hands out sequential payment references whose status tests set.
type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	statuses      map[string]domain.PaymentStatus
	amounts       map[string]decimal.Decimal
	customerCalls []string
	retrieved     []string

	CustomerErr error
	IntentErr   error
	RetrieveErr error

	// when set, RetrievePaymentStatus signals retrieveStarted and waits for
	// retrieveGate to close or ctx to end
	retrieveGate    chan struct{}
	retrieveStarted chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: map[string]domain.PaymentStatus{},
		amounts:  map[string]decimal.Decimal{},
	}
}

func (g *fakeGateway) CreateOrReuseCustomer(_ context.Context, existingID, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalls = append(g.customerCalls, existingID)
	if g.CustomerErr != nil {
		return "", g.CustomerErr
	}
	if existingID != "" {
		return existingID, nil
	}
	return "cus_" + email, nil
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, customerID string, amount decimal.Decimal, currency string) (*gateway.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.IntentErr != nil {
		return nil, g.IntentErr
	}
	g.seq++
	ref := fmt.Sprintf("pi_%d", g.seq)
	g.statuses[ref] = domain.PaymentStatusRequiresPaymentMethod
	g.amounts[ref] = amount
	return &gateway.PaymentIntent{
		ReferenceID:  ref,
		ClientSecret: ref + "_secret",
		CustomerID:   customerID,
		Status:       domain.PaymentStatusRequiresPaymentMethod,
		Amount:       gateway.MinorUnits(amount),
		Currency:     currency,
	}, nil
}

func (g *fakeGateway) RetrievePaymentStatus(ctx context.Context, referenceID string) (*gateway.PaymentIntent, error) {
	if g.retrieveGate != nil {
		g.retrieveStarted <- struct{}{}
		select {
		case <-g.retrieveGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieved = append(g.retrieved, referenceID)
	if g.RetrieveErr != nil {
		return nil, g.RetrieveErr
	}
	status, ok := g.statuses[referenceID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &gateway.PaymentIntent{ReferenceID: referenceID, Status: status}, nil
}

func (g *fakeGateway) setStatus(ref string, status domain.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[ref] = status
}

func (g *fakeGateway) retrieveCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.retrieved)
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []events.Message
	FailNext int
	attempts int
}

func (p *mockPublisher) Publish(_ context.Context, msg events.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.FailNext > 0 {
		p.FailNext--
		return "", fmt.Errorf("kafka: broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return msg.ID, nil
}

func (p *mockPublisher) Close() error {
	return nil
}

func (p *mockPublisher) published() []events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Message(nil), p.messages...)
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	Err  error
}

func (l *mockLocker) Acquire(_ context.Context, key string) (lock.Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, lock.ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}
