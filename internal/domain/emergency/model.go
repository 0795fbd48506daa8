package emergency

import (
	"time"
)

// Status is the lifecycle state of an SOS request.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// transitions lists the forward moves of the lifecycle. There are no others.
var transitions = map[Status][]Status{
	StatusPending:      {StatusAcknowledged},
	StatusAcknowledged: {StatusResolved},
}

// CanTransition reports whether a request in state from may move to state to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf returns every state that may move directly to to, in lifecycle
// order. It is the status guard of a compare-and-swap into to.
func sourcesOf(to Status) []Status {
	var from []Status
	for _, s := range []Status{StatusPending, StatusAcknowledged, StatusResolved} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// EmergencyRequest maps to the emergency_requests table. The trailing pointer
// fields come from read-only joins and are only filled by the views that
// select them.
type EmergencyRequest struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Latitude       float64    `db:"latitude" json:"latitude"`
	Longitude      float64    `db:"longitude" json:"longitude"`
	EmergencyType  *string    `db:"emergency_type" json:"emergency_type"`
	Note           *string    `db:"note" json:"note"`
	Status         Status     `db:"status" json:"status"`
	HospitalID     *int64     `db:"hospital_id" json:"hospital_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at"`

	// Join columns. Handlers pick the ones each view exposes.
	HospitalName  *string  `db:"hospital_name" json:"-"`
	HospitalPhone *string  `db:"hospital_phone" json:"-"`
	UserName      *string  `db:"user_name" json:"-"`
	UserPhone     *string  `db:"user_phone" json:"-"`
	BloodGroup    *string  `db:"blood_group" json:"-"`
	DistanceKM    *float64 `db:"distance_km" json:"-"`
}

// Hospital is the read-only part of the hospitals table used for matching.
type Hospital struct {
	ID        int64    `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	Phone     *string  `db:"phone" json:"phone,omitempty"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
}

// Location returns the registered coordinates, or ok=false when either is
// missing.
func (h *Hospital) Location() (lat, lng float64, ok bool) {
	if h == nil || h.Latitude == nil || h.Longitude == nil {
		return 0, 0, false
	}
	return *h.Latitude, *h.Longitude, true
}

// Guard is the condition a row must satisfy for a transition to apply.
type Guard struct {
	From       []Status
	HospitalID *int64 // when set, the row must already be assigned to it
}

// Transition is the write applied when the guard holds. At is stored in the
// timestamp column belonging to To.
type Transition struct {
	To         Status
	HospitalID *int64 // when set, assigns the request
	At         time.Time
}
