package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"eventcheckout/internal/domain"
)

// VoucherStore persists the single-use code ledger.
type VoucherStore struct {
	repo *Repository
}

func NewVoucherStore(repo *Repository) *VoucherStore {
	return &VoucherStore{repo: repo}
}

func (s *VoucherStore) Insert(ctx context.Context, v domain.Voucher) error {
	_, err := s.repo.pool.Exec(ctx, `
		INSERT INTO vouchers (code, status, purchaser_email, recipient_email, message, value_type, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.Code, v.Status, v.PurchaserEmail, v.RecipientEmail, v.Message, v.ValueType, v.OrderID, v.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert voucher")
	}
	return nil
}

func (s *VoucherStore) Get(ctx context.Context, code string) (*domain.Voucher, error) {
	var v domain.Voucher
	err := s.repo.pool.QueryRow(ctx, `
		SELECT code, status, purchaser_email, recipient_email, message, value_type, order_id,
		       redeemed_at, redeemed_for_event_id, created_at
		FROM vouchers WHERE code = $1
	`, code).Scan(&v.Code, &v.Status, &v.PurchaserEmail, &v.RecipientEmail, &v.Message,
		&v.ValueType, &v.OrderID, &v.RedeemedAt, &v.RedeemedForEventID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUnavailable)
	}
	return &v, nil
}

// Redeem flips the code from active to redeemed exactly once. The row
// is read under an exclusive lock so that of N concurrent redemption
// attempts on the same code exactly one commits; the rest observe a
// non-active status and fail with ErrAlreadyRedeemed.
func (s *VoucherStore) Redeem(ctx context.Context, code, eventID string) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM vouchers WHERE code = $1 FOR UPDATE
		`, code).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if status != domain.VoucherActive {
			return domain.ErrAlreadyRedeemed
		}
		_, err = tx.Exec(ctx, `
			UPDATE vouchers
			SET status = $2, redeemed_at = $3, redeemed_for_event_id = $4
			WHERE code = $1
		`, code, domain.VoucherRedeemed, time.Now().UTC(), eventID)
		return err
	})
}
