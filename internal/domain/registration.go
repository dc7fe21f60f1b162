package domain

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Participant holds the contact fields captured at checkout.
type Participant struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// EmergencyContact is the person to notify during the event.
type EmergencyContact struct {
	Name  string
	Phone string
}

// Registration is the durable record of a completed registration.
// SessionID is unique per payment session and drives webhook idempotency.
// A row is immutable once written.
type Registration struct {
	ConfirmationNumber string
	EventID            string
	SessionID          string
	Participant        Participant
	Emergency          EmergencyContact
	AmountCents        int64
	CreatedAt          time.Time
}

const confirmationDigits = 8

// NewConfirmationNumber returns a short numeric code for humans to quote.
// Uniqueness is enforced by the registrations table; callers regenerate
// and retry on collision.
func NewConfirmationNumber() string {
	max := big.NewInt(1)
	for i := 0; i < confirmationDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	digits := n.String()
	for len(digits) < confirmationDigits {
		digits = "0" + digits
	}
	return digits
}
