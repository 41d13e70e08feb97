package domain

// TokenLiveness is the result of probing a stored access token against the
// platform. The probe turns the unreliable uninstall notification into a
// three-valued decision instead of trusting the topic alone.
type TokenLiveness int

const (
	// TokenInconclusive means the probe failed for a reason other than
	// authorization (network fault, timeout, rate limit).
	TokenInconclusive TokenLiveness = iota
	// TokenAlive means the authenticated probe succeeded.
	TokenAlive
	// TokenRevoked means the platform denied the token.
	TokenRevoked
)

func (l TokenLiveness) String() string {
	switch l {
	case TokenAlive:
		return "alive"
	case TokenRevoked:
		return "revoked"
	default:
		return "inconclusive"
	}
}

// UninstallDecision records what the resolver did with an uninstall
// notification.
type UninstallDecision int

const (
	// UninstallNoop means there was no record (or no token) to reconcile.
	UninstallNoop UninstallDecision = iota
	// UninstallShopDeleted means the token was confirmed revoked and the
	// record was removed.
	UninstallShopDeleted
	// UninstallSpurious means the record was kept because the token is still
	// live or the probe was inconclusive.
	UninstallSpurious
)

func (d UninstallDecision) String() string {
	switch d {
	case UninstallShopDeleted:
		return "shop_deleted"
	case UninstallSpurious:
		return "spurious"
	default:
		return "noop"
	}
}

// PersistOutcome distinguishes "fully persisted" from "active only in this
// process" after the OAuth callback, so callers and tests can see the
// degraded-but-available path instead of a swallowed error.
type PersistOutcome int

const (
	PersistOK PersistOutcome = iota
	// PersistDegraded means the durable write failed but the shop remains
	// active in the in-memory registry for this process's lifetime.
	PersistDegraded
)
