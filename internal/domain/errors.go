package domain

import (
	"errors"
	"fmt"
)

// ErrNoAccessToken is returned when an operation requires a stored access
// token and the shop record is missing or has none.
var ErrNoAccessToken = errors.New("shop has no stored access token")

// Subscription legs, used to name which part of a register/update run failed.
const (
	LegWebhook   = "webhook"
	LegScriptTag = "script_tag"
	LegPersist   = "persist"
)

// SubscriptionError reports a failed subscription leg so the caller knows the
// run is incomplete and which call to look at. A failed persist leg after
// successful remote calls means the local record and the platform state may
// have diverged.
type SubscriptionError struct {
	Leg string
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s leg failed: %v", e.Leg, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
