package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

func newTestService(inv *fakeInventory, vouchers *fakeVouchers, regs *fakeRegistrations, gw *fakeGateway) *Service {
	return NewService(
		inv, vouchers, regs, gw, nil, SideEffects{},
		URLs{Success: "https://example.test/thanks", Cancel: "https://example.test/cancel"},
		observability.NewLogger(),
	)
}

func testEvent(id string, capacity, sold int) domain.Event {
	return domain.Event{
		ID:            id,
		Name:          "Summer Camp " + id,
		Date:          time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		TotalCapacity: capacity,
		SoldCount:     sold,
		PriceCents:    14900,
	}
}

func validParticipant() domain.Participant {
	return domain.Participant{
		FirstName: "Ana",
		LastName:  "Silva",
		Email:     "ana@example.com",
		Phone:     "+351000000",
	}
}

func TestCreateCheckout_PaidFlow(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E1", 10, 0))
	gw := newFakeGateway("whsec")
	svc := newTestService(inv, newFakeVouchers(), newFakeRegistrations(), gw)

	session, err := svc.CreateCheckout(ctx, CheckoutRequest{
		EventID:     "E1",
		Participant: validParticipant(),
		Emergency:   domain.EmergencyContact{Name: "Rui", Phone: "+351111111"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.NotEmpty(t, session.RedirectURL)

	// One unit reserved, session carries the registration metadata.
	assert.Equal(t, 1, inv.soldCount("E1"))
	require.Equal(t, 1, gw.sessionCount())
	meta := gw.sessions[0].Metadata
	assert.Equal(t, "E1", meta["event_id"])
	assert.Equal(t, "ana@example.com", meta["email"])
	assert.NotEmpty(t, meta["confirmation_number"])
	assert.Equal(t, int64(14900), gw.sessions[0].AmountCents)
}

func TestCreateCheckout_SoldOutPreCheck(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E3", 5, 5))
	gw := newFakeGateway("whsec")
	svc := newTestService(inv, newFakeVouchers(), newFakeRegistrations(), gw)

	_, err := svc.CreateCheckout(ctx, CheckoutRequest{EventID: "E3", Participant: validParticipant()})
	require.ErrorIs(t, err, domain.ErrSoldOut)
	assert.Equal(t, 5, inv.soldCount("E3"))
	assert.Equal(t, 0, gw.sessionCount())
}

func TestCreateCheckout_UnknownEvent(t *testing.T) {
	svc := newTestService(newFakeInventory(), newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))
	_, err := svc.CreateCheckout(context.Background(), CheckoutRequest{EventID: "ghost", Participant: validParticipant()})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateCheckout_Validation(t *testing.T) {
	svc := newTestService(newFakeInventory(testEvent("E1", 10, 0)), newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))

	tests := []struct {
		name string
		req  CheckoutRequest
	}{
		{"missing event", CheckoutRequest{Participant: validParticipant()}},
		{"missing first name", CheckoutRequest{EventID: "E1", Participant: domain.Participant{LastName: "Silva", Email: "a@b.com"}}},
		{"bad email", CheckoutRequest{EventID: "E1", Participant: domain.Participant{FirstName: "Ana", LastName: "Silva", Email: "not-an-email"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCheckout(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

// Two concurrent checkouts against a single remaining ticket: exactly
// one wins, the loser sees sold out, sold_count ends at capacity.
func TestCreateCheckout_ConcurrentLastTicket(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E1", 1, 0))
	svc := newTestService(inv, newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateCheckout(ctx, CheckoutRequest{EventID: "E1", Participant: validParticipant()})
		}(i)
	}
	wg.Wait()

	var wins, soldOut int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errorsIsSoldOut(err):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, soldOut)
	assert.Equal(t, 1, inv.soldCount("E1"))
}

// Capacity invariant: with capacity 5 and 50 concurrent attempts,
// exactly 5 succeed and sold_count never exceeds capacity.
func TestCreateCheckout_CapacityInvariant(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E1", 5, 0))
	svc := newTestService(inv, newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateCheckout(ctx, CheckoutRequest{EventID: "E1", Participant: validParticipant()})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else if !errorsIsSoldOut(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, wins)
	assert.Equal(t, 5, inv.soldCount("E1"))
}

func TestRegisterWithVoucher_HappyPath(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E2", 10, 3))
	vouchers := newFakeVouchers(domain.NewVoucher("buyer@example.com", "", "", "single_ticket", "order-1"))
	var code string
	for c := range vouchers.byID {
		code = c
	}
	regs := newFakeRegistrations()
	svc := newTestService(inv, vouchers, regs, newFakeGateway("whsec"))

	result, err := svc.RegisterWithVoucher(ctx, VoucherCheckoutRequest{
		EventID:     "E2",
		Participant: validParticipant(),
		VoucherCode: code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ConfirmationNumber)

	v, err := vouchers.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, domain.VoucherRedeemed, v.Status)
	require.NotNil(t, v.RedeemedForEventID)
	assert.Equal(t, "E2", *v.RedeemedForEventID)

	assert.Equal(t, 4, inv.soldCount("E2"))
	require.Equal(t, 1, regs.count())
	reg := regs.get(result.SessionID)
	require.NotNil(t, reg)
	assert.Equal(t, int64(0), reg.AmountCents)
	assert.Equal(t, "E2", reg.EventID)
}

func TestRegisterWithVoucher_AlreadyRedeemed(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E2", 10, 0))
	v := domain.NewVoucher("buyer@example.com", "", "", "single_ticket", "order-1")
	v.Status = domain.VoucherRedeemed
	svc := newTestService(inv, newFakeVouchers(v), newFakeRegistrations(), newFakeGateway("whsec"))

	_, err := svc.RegisterWithVoucher(ctx, VoucherCheckoutRequest{
		EventID:     "E2",
		Participant: validParticipant(),
		VoucherCode: v.Code,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyRedeemed)
	assert.Equal(t, 0, inv.soldCount("E2"))
}

func TestRegisterWithVoucher_UnknownCode(t *testing.T) {
	svc := newTestService(newFakeInventory(testEvent("E2", 10, 0)), newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))
	_, err := svc.RegisterWithVoucher(context.Background(), VoucherCheckoutRequest{
		EventID:     "E2",
		Participant: validParticipant(),
		VoucherCode: "GV-DOESNOTEX",
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// Voucher single-use under concurrency: of N concurrent redemption
// attempts on one code, exactly one registration is written.
func TestRegisterWithVoucher_ConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E2", 100, 0))
	v := domain.NewVoucher("buyer@example.com", "", "", "single_ticket", "order-1")
	vouchers := newFakeVouchers(v)
	regs := newFakeRegistrations()
	svc := newTestService(inv, vouchers, regs, newFakeGateway("whsec"))

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterWithVoucher(ctx, VoucherCheckoutRequest{
				EventID:     "E2",
				Participant: validParticipant(),
				VoucherCode: v.Code,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else if !errorsIsAlreadyRedeemed(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, regs.count())
}

func TestValidateVoucherCode_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E2", 10, 0))
	vouchers := newFakeVouchers()
	svc := newTestService(inv, vouchers, newFakeRegistrations(), newFakeGateway("whsec"))

	code, err := svc.IssueVoucher(ctx, IssueVoucherRequest{
		PurchaserEmail: "buyer@example.com",
		ValueType:      "single_ticket",
		OrderID:        "order-9",
	})
	require.NoError(t, err)

	validation, err := svc.ValidateVoucherCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Equal(t, "single_ticket", validation.ValueType)

	_, err = svc.RegisterWithVoucher(ctx, VoucherCheckoutRequest{
		EventID:     "E2",
		Participant: validParticipant(),
		VoucherCode: code,
	})
	require.NoError(t, err)

	validation, err = svc.ValidateVoucherCode(ctx, code)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
}

func TestValidateVoucherCode_Unknown(t *testing.T) {
	svc := newTestService(newFakeInventory(), newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))
	validation, err := svc.ValidateVoucherCode(context.Background(), "DOES-NOT-EXIST")
	require.NoError(t, err)
	assert.False(t, validation.Valid)
}

func TestAvailability(t *testing.T) {
	svc := newTestService(newFakeInventory(testEvent("E1", 10, 4)), newFakeVouchers(), newFakeRegistrations(), newFakeGateway("whsec"))

	a, err := svc.Availability(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, 6, a.Available)
	assert.Equal(t, 10, a.Total)
	assert.False(t, a.SoldOut())

	_, err = svc.Availability(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistrationLookups(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory(testEvent("E2", 10, 0))
	vouchers := newFakeVouchers(domain.NewVoucher("buyer@example.com", "", "", "single_ticket", "order-1"))
	var code string
	for c := range vouchers.byID {
		code = c
	}
	regs := newFakeRegistrations()
	svc := newTestService(inv, vouchers, regs, newFakeGateway("whsec"))

	result, err := svc.RegisterWithVoucher(ctx, VoucherCheckoutRequest{
		EventID:     "E2",
		Participant: validParticipant(),
		VoucherCode: code,
	})
	require.NoError(t, err)

	reg, err := svc.GetRegistration(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, result.ConfirmationNumber, reg.ConfirmationNumber)

	_, err = svc.GetRegistration(ctx, "sess_pending")
	require.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := svc.ListRegistrations(ctx, "E2")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, result.SessionID, listed[0].SessionID)

	_, err = svc.ListRegistrations(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func errorsIsSoldOut(err error) bool {
	return errors.Is(err, domain.ErrSoldOut)
}

func errorsIsAlreadyRedeemed(err error) bool {
	return errors.Is(err, domain.ErrAlreadyRedeemed)
}
