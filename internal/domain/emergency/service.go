package emergency

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/medisos/dispatch/internal/platform/auth"
	"github.com/medisos/dispatch/internal/platform/geo"
	"github.com/medisos/dispatch/internal/platform/metrics"
	"github.com/medisos/dispatch/pkg/pagination"
)

// DefaultRadiusKM is the worklist search radius when none is given.
const DefaultRadiusKM = 10.0

// Free-text limits, in characters. emergency_type matches its VARCHAR(64)
// column.
const (
	maxEmergencyTypeLen = 64
	maxNoteLen          = 2000
)

type Service struct {
	requests  RequestRepository
	hospitals HospitalRepository
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(requests RequestRepository, hospitals HospitalRepository, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		requests:  requests,
		hospitals: hospitals,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func patientOf(caller auth.Identity) (int64, error) {
	id, ok := caller.PatientID()
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

func hospitalOf(caller auth.Identity) (int64, error) {
	id, ok := caller.HospitalID()
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

// -- Patient operations --

// CreateSOSInput carries already-decoded coordinates; nil means the field was
// missing or not numeric.
type CreateSOSInput struct {
	Latitude      *float64
	Longitude     *float64
	EmergencyType *string
	Note          *string
}

func (in CreateSOSInput) validate() error {
	if in.Latitude == nil || in.Longitude == nil {
		return errMissingCoords
	}
	lat, lng := *in.Latitude, *in.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return errMissingCoords
	}
	if !geo.ValidCoordinates(lat, lng) {
		return errCoordsOutOfRange
	}
	if in.EmergencyType != nil && utf8.RuneCountInString(*in.EmergencyType) > maxEmergencyTypeLen {
		return errTypeTooLong
	}
	if in.Note != nil && utf8.RuneCountInString(*in.Note) > maxNoteLen {
		return errNoteTooLong
	}
	return nil
}

// CreateSOS records a new pending request owned by the calling patient.
func (s *Service) CreateSOS(ctx context.Context, caller auth.Identity, in CreateSOSInput) (*EmergencyRequest, error) {
	userID, err := patientOf(caller)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	req := &EmergencyRequest{
		UserID:        userID,
		Latitude:      *in.Latitude,
		Longitude:     *in.Longitude,
		EmergencyType: in.EmergencyType,
		Note:          in.Note,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, storeErr("create sos request", err)
	}

	s.metrics.SOSCreated()
	s.logger.Info().
		Int64("request_id", req.ID).
		Int64("user_id", userID).
		Msg("sos created")
	return req, nil
}

// Latest returns the caller's most recent request, or nil if there is none.
func (s *Service) Latest(ctx context.Context, caller auth.Identity) (*EmergencyRequest, error) {
	userID, err := patientOf(caller)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.LatestForUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load latest sos request", err)
	}
	return req, nil
}

// History pages through the caller's requests, newest first.
func (s *Service) History(ctx context.Context, caller auth.Identity, p pagination.Params) ([]*EmergencyRequest, pagination.Page, error) {
	userID, err := patientOf(caller)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	p = pagination.New(p.Limit, p.Offset)

	items, err := s.requests.HistoryForUser(ctx, userID, p.Limit, p.Offset)
	if err != nil {
		return nil, pagination.Page{}, storeErr("load sos history", err)
	}
	if items == nil {
		items = []*EmergencyRequest{}
	}
	return items, p.PageOf(len(items)), nil
}

// -- Hospital matching --

type WorklistQuery struct {
	RadiusKM        float64
	IncludeAssigned bool
}

// ParseWorklistQuery reads the raw radius_km and include_assigned query
// values. A radius that is missing, not a number, not finite or not positive
// becomes DefaultRadiusKM. include_assigned defaults to true and accepts
// 1, true, yes, y and on in any case.
func ParseWorklistQuery(radius, includeAssigned string) WorklistQuery {
	q := WorklistQuery{RadiusKM: DefaultRadiusKM, IncludeAssigned: true}

	if r, err := strconv.ParseFloat(strings.TrimSpace(radius), 64); err == nil &&
		!math.IsNaN(r) && !math.IsInf(r, 0) && r > 0 {
		q.RadiusKM = r
	}

	if includeAssigned != "" {
		switch strings.ToLower(strings.TrimSpace(includeAssigned)) {
		case "1", "true", "yes", "y", "on":
		default:
			q.IncludeAssigned = false
		}
	}
	return q
}

// Worklist is what a hospital sees: pending requests nearby and requests it
// has taken.
type Worklist struct {
	HospitalID int64
	RadiusKM   float64
	Pending    []*EmergencyRequest
	Assigned   []*EmergencyRequest
}

func (s *Service) Worklist(ctx context.Context, caller auth.Identity, q WorklistQuery) (*Worklist, error) {
	hospitalID, err := hospitalOf(caller)
	if err != nil {
		return nil, err
	}
	if q.RadiusKM <= 0 || math.IsNaN(q.RadiusKM) || math.IsInf(q.RadiusKM, 0) {
		q.RadiusKM = DefaultRadiusKM
	}

	h, err := s.hospitals.Get(ctx, hospitalID)
	if err != nil {
		return nil, storeErr("load hospital", err)
	}
	lat, lng, ok := h.Location()
	if !ok {
		return nil, errNoHospitalLoc
	}

	wl := &Worklist{
		HospitalID: hospitalID,
		RadiusKM:   q.RadiusKM,
		Assigned:   []*EmergencyRequest{},
	}

	wl.Pending, err = s.requests.PendingNear(ctx, lat, lng, q.RadiusKM)
	if err != nil {
		return nil, storeErr("list pending sos requests", err)
	}
	if wl.Pending == nil {
		wl.Pending = []*EmergencyRequest{}
	}

	if q.IncludeAssigned {
		assigned, err := s.requests.AssignedTo(ctx, hospitalID)
		if err != nil {
			return nil, storeErr("list assigned sos requests", err)
		}
		if assigned != nil {
			wl.Assigned = assigned
		}
	}
	return wl, nil
}

// -- Lifecycle --

// Accept assigns a pending request to the calling hospital. Exactly one of
// several concurrent accepts succeeds; the rest get ErrNotFoundOrConflict.
func (s *Service) Accept(ctx context.Context, caller auth.Identity, requestID int64) error {
	hospitalID, err := hospitalOf(caller)
	if err != nil {
		return err
	}
	return s.transition(ctx, "accept", requestID, hospitalID,
		Guard{From: sourcesOf(StatusAcknowledged)},
		Transition{To: StatusAcknowledged, HospitalID: &hospitalID, At: s.now()},
		errNotPending,
	)
}

// Resolve closes a request that the calling hospital has accepted.
func (s *Service) Resolve(ctx context.Context, caller auth.Identity, requestID int64) error {
	hospitalID, err := hospitalOf(caller)
	if err != nil {
		return err
	}
	return s.transition(ctx, "resolve", requestID, hospitalID,
		Guard{From: sourcesOf(StatusResolved), HospitalID: &hospitalID},
		Transition{To: StatusResolved, At: s.now()},
		errNotAssigned,
	)
}

func (s *Service) transition(ctx context.Context, name string, requestID, hospitalID int64, g Guard, t Transition, conflict error) error {
	applied, err := s.requests.CompareAndSwap(ctx, requestID, g, t)
	if err != nil {
		s.metrics.Transition(name, metrics.OutcomeError)
		return storeErr(name+" sos request", err)
	}
	if !applied {
		s.metrics.Transition(name, metrics.OutcomeConflict)
		s.logger.Debug().
			Str("transition", name).
			Int64("request_id", requestID).
			Int64("hospital_id", hospitalID).
			Msg("sos transition not applied")
		return conflict
	}

	s.metrics.Transition(name, metrics.OutcomeApplied)
	s.logger.Info().
		Str("transition", name).
		Int64("request_id", requestID).
		Int64("hospital_id", hospitalID).
		Str("status", string(t.To)).
		Msg("sos " + pastTense(name))
	return nil
}

func pastTense(transition string) string {
	switch transition {
	case "accept":
		return "accepted"
	case "resolve":
		return "resolved"
	}
	return transition
}
