package domain

import "time"

type CartShare struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	CartID    string    `json:"cart_id"`
	CreatedBy string    `json:"created_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the share can no longer be resolved at now. A
// share is live strictly before ExpiresAt.
func (s CartShare) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SharedCart is what a share token resolves to: the current state of the
// cart, not a copy taken when the share was issued.
type SharedCart struct {
	View  *CartView
	Share *CartShare
}
