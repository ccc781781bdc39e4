package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// PinService gates transfers behind a per-user 4-digit transaction PIN.
// Only the salted argon2id hash is stored; changing the PIN requires the
// user's login password to be re-supplied.
type PinService struct {
	db       *sql.DB
	identity Identity
	throttle *PinThrottle
}

func NewPinService(db *sql.DB, identity Identity, throttle *PinThrottle) *PinService {
	return &PinService{db: db, identity: identity, throttle: throttle}
}

// SetPin stores hash(pin) for the user, replacing any prior value
// atomically. The password check is delegated to the identity layer.
func (s *PinService) SetPin(ctx context.Context, userID int, pin, currentPassword string) error {
	if err := s.identity.VerifyPassword(ctx, userID, currentPassword); err != nil {
		log.Printf("[PIN] Password re-verification failed for user %d", userID)
		return err
	}

	hash, err := hashSecret(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO finance_pins (user_id, hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET hash = EXCLUDED.hash, updated_at = EXCLUDED.updated_at`,
		userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store pin: %w", err)
	}

	log.Printf("[PIN] PIN updated for user %d", userID)
	return nil
}

// Verify checks the supplied PIN against the stored hash in constant time.
// When the user has no PIN a dummy comparison still runs so the two cases
// are not distinguishable by timing.
func (s *PinService) Verify(ctx context.Context, userID int, pin string) error {
	if s.throttle != nil {
		if err := s.throttle.Allow(ctx, userID); err != nil {
			return err
		}
	}

	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM finance_pins WHERE user_id = $1`, userID).Scan(&hash)
	if err == sql.ErrNoRows {
		verifySecret(pin, dummyPinHash())
		return ErrPinNotSet
	}
	if err != nil {
		return fmt.Errorf("fetch pin: %w", err)
	}

	if !verifySecret(pin, hash) {
		if s.throttle != nil {
			s.throttle.RecordFailure(ctx, userID)
		}
		return ErrPinMismatch
	}

	if s.throttle != nil {
		s.throttle.Reset(ctx, userID)
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPinHash is a well-formed hash of a value no 4-digit PIN can take,
// used to keep Verify's timing flat when no credential exists. Built
// lazily so the argon2 parameters are read after config is loaded.
func dummyPinHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = hashSecret("no-pin")
	})
	return dummyHash
}

// constantTimeEqual avoids short-circuiting on the first differing byte.
func constantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
