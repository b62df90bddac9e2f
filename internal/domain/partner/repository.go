package partner

import "context"

// Repository defines the persistence operations the Partner Cache needs.
// Implementations return ErrNotFound when a partner id does not resolve to
// an enabled record; all other failures are returned as plain errors and
// must never panic across this boundary.
type Repository interface {
	// FindActive returns every enabled partner, in unspecified but stable
	// order within a single call.
	FindActive(ctx context.Context) ([]Partner, error)

	// FindByIDAndEnabled returns the partner for id if it exists and is
	// enabled, or ErrNotFound otherwise.
	FindByIDAndEnabled(ctx context.Context, id string) (Partner, error)

	// Save creates or updates a partner record and returns the persisted
	// value (e.g. with server-assigned timestamps).
	Save(ctx context.Context, p Partner) (Partner, error)

	// SetEnabled flips a partner's enabled flag without touching other
	// fields.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
