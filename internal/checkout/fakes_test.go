package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/domain"
)

// fakeInventory is a mutex-guarded capacity store with the same
// check-then-mutate semantics the row-locked store provides.
type fakeInventory struct {
	mu     sync.Mutex
	events map[string]*domain.Event
	err    error
}

func newFakeInventory(events ...domain.Event) *fakeInventory {
	f := &fakeInventory{events: make(map[string]*domain.Event)}
	for i := range events {
		e := events[i]
		f.events[e.ID] = &e
	}
	return f
}

func (f *fakeInventory) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeInventory) CheckAvailability(ctx context.Context, eventID string) (domain.Availability, error) {
	e, err := f.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{Available: e.Remaining(), Total: e.TotalCapacity}, nil
}

func (f *fakeInventory) ReserveTicket(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	e, ok := f.events[eventID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if e.SoldCount >= e.TotalCapacity {
		return false, nil
	}
	e.SoldCount++
	return true, nil
}

func (f *fakeInventory) soldCount(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].SoldCount
}

type fakeVouchers struct {
	mu   sync.Mutex
	byID map[string]*domain.Voucher
}

func newFakeVouchers(vouchers ...domain.Voucher) *fakeVouchers {
	f := &fakeVouchers{byID: make(map[string]*domain.Voucher)}
	for i := range vouchers {
		v := vouchers[i]
		f.byID[v.Code] = &v
	}
	return f
}

func (f *fakeVouchers) Insert(ctx context.Context, v domain.Voucher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byID[v.Code]; exists {
		return fmt.Errorf("duplicate code %s", v.Code)
	}
	f.byID[v.Code] = &v
	return nil
}

func (f *fakeVouchers) Get(ctx context.Context, code string) (*domain.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVouchers) Redeem(ctx context.Context, code, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[code]
	if !ok {
		return domain.ErrNotFound
	}
	if v.Status != domain.VoucherActive {
		return domain.ErrAlreadyRedeemed
	}
	v.Status = domain.VoucherRedeemed
	id := eventID
	v.RedeemedForEventID = &id
	return nil
}

type fakeRegistrations struct {
	mu        sync.Mutex
	bySession map[string]*domain.Registration
	err       error
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{bySession: make(map[string]*domain.Registration)}
}

func (f *fakeRegistrations) Insert(ctx context.Context, reg *domain.Registration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, exists := f.bySession[reg.SessionID]; exists {
		return false, nil
	}
	cp := *reg
	f.bySession[reg.SessionID] = &cp
	return true, nil
}

func (f *fakeRegistrations) GetBySessionID(ctx context.Context, sessionID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	reg, ok := f.bySession[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (f *fakeRegistrations) ListByEvent(ctx context.Context, eventID string) ([]domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var regs []domain.Registration
	for _, reg := range f.bySession {
		if reg.EventID == eventID {
			regs = append(regs, *reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.Before(regs[j].CreatedAt) })
	return regs, nil
}

func (f *fakeRegistrations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bySession)
}

func (f *fakeRegistrations) get(sessionID string) *domain.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bySession[sessionID]
}

// fakeGateway verifies callbacks with the same HMAC scheme as the real
// client and records created sessions.
type fakeGateway struct {
	mu       sync.Mutex
	secret   string
	sessions []payment.SessionRequest
	err      error
	nextID   int
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{secret: secret}
}

func (f *fakeGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	f.sessions = append(f.sessions, req)
	return &payment.Session{
		ID:          fmt.Sprintf("sess_%d", f.nextID),
		RedirectURL: fmt.Sprintf("https://gateway.test/pay/sess_%d", f.nextID),
	}, nil
}

func (f *fakeGateway) VerifyCallback(rawBody []byte, signature string) (*payment.CallbackEvent, error) {
	if payment.Sign(f.secret, rawBody) != signature {
		return nil, domain.ErrInvalidSignature
	}
	var event payment.CallbackEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, domain.ErrInvalidInput
	}
	return &event, nil
}

func (f *fakeGateway) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeContacts struct {
	mu       sync.Mutex
	upserted []string
	err      error
}

func (f *fakeContacts) UpsertContact(ctx context.Context, email string, attributes map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, email)
	return nil
}
