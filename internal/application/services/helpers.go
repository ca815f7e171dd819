package services

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"time"
)

func ComputeHash(v interface{}) string {
	data := fmt.Sprintf("%+v", v)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// requestFingerprint identifies what a caller asked for, independent of the key.
type requestFingerprint struct {
	OrderID string
	UserID  string
	Token   string
}

// DeriveIdempotencyKey is used when the client sends no Idempotency-Key.
// Tokens are single use, so order+token identifies one payment submission.
func DeriveIdempotencyKey(orderID, token string) string {
	return "derived:" + ComputeHash(struct {
		OrderID string
		Token   string
	}{orderID, token})
}

// Backoff is exponential in attempt with up to a second of jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	return base*time.Duration(1<<attempt) + time.Duration(rand.Intn(1000))*time.Millisecond
}
