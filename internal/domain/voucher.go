package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const (
	VoucherActive    = "active"
	VoucherRedeemed  = "redeemed"
	VoucherCancelled = "cancelled"
)

// Voucher is a single-use code entitling its holder to one registration
// without a payment step. Status moves active -> redeemed exactly once.
type Voucher struct {
	Code               string
	Status             string
	PurchaserEmail     string
	RecipientEmail     string
	Message            string
	ValueType          string
	OrderID            string
	RedeemedAt         *time.Time
	RedeemedForEventID *string
	CreatedAt          time.Time
}

// Redeemable reports whether the voucher can still be spent.
func (v *Voucher) Redeemable() bool {
	return v.Status == VoucherActive
}

const voucherPrefix = "GV-"

// voucherAlphabet avoids 0/O, 1/I and lowercase to keep codes readable
// over the phone and on printed cards.
const voucherAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const voucherSuffixLen = 10

// NewVoucherCode generates a code like GV-7XKQ2MNPRT.
func NewVoucherCode() string {
	var b strings.Builder
	b.WriteString(voucherPrefix)
	alphabetLen := big.NewInt(int64(len(voucherAlphabet)))
	for i := 0; i < voucherSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			panic(err)
		}
		b.WriteByte(voucherAlphabet[n.Int64()])
	}
	return b.String()
}

// NewVoucher returns an active voucher with a fresh code.
func NewVoucher(purchaserEmail, recipientEmail, message, valueType, orderID string) Voucher {
	return Voucher{
		Code:           NewVoucherCode(),
		Status:         VoucherActive,
		PurchaserEmail: purchaserEmail,
		RecipientEmail: recipientEmail,
		Message:        message,
		ValueType:      valueType,
		OrderID:        orderID,
		CreatedAt:      time.Now().UTC(),
	}
}
