package emergency

import (
	"context"
)

// RequestRepository persists SOS requests. Status changes go through
// CompareAndSwap only; rows are never deleted.
type RequestRepository interface {
	// Create inserts a pending request and sets r.ID.
	Create(ctx context.Context, r *EmergencyRequest) error
	// LatestForUser returns nil, nil when the user has no requests.
	LatestForUser(ctx context.Context, userID int64) (*EmergencyRequest, error)
	HistoryForUser(ctx context.Context, userID int64, limit, offset int) ([]*EmergencyRequest, error)
	PendingNear(ctx context.Context, lat, lng, radiusKM float64) ([]*EmergencyRequest, error)
	AssignedTo(ctx context.Context, hospitalID int64) ([]*EmergencyRequest, error)
	// CompareAndSwap applies t to request id only if g holds at write time.
	// It returns false when no row matched.
	CompareAndSwap(ctx context.Context, id int64, g Guard, t Transition) (bool, error)
}

type HospitalRepository interface {
	// Get returns nil, nil when the hospital does not exist.
	Get(ctx context.Context, id int64) (*Hospital, error)
}
