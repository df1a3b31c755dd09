package usecase

import (
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// Reconnect policy
const (
	MaxReconnectAttempts    = 10
	BaseReconnectDelay      = time.Second
	MaxReconnectDelay       = 5 * time.Minute
	HealthPenaltyPerAttempt = 10
)

// BackoffDelay returns min(1s * 2^attempt, 5m)
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^9s already exceeds the cap; avoid shifting into overflow
	if attempt >= 9 {
		return MaxReconnectDelay
	}
	d := BaseReconnectDelay << uint(attempt)
	if d > MaxReconnectDelay {
		return MaxReconnectDelay
	}
	return d
}

// HealthAfter returns the connection health after attempt failed reconnects
func HealthAfter(attempt int) int {
	return domain.ClampHealth(domain.HealthMax - attempt*HealthPenaltyPerAttempt)
}
