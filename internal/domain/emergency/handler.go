package emergency

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medisos/dispatch/internal/platform/auth"
	"github.com/medisos/dispatch/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the SOS endpoints on a group that already verifies
// bearer tokens.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Patient endpoints
	g.POST("/emergency/sos", h.CreateSOS)
	g.GET("/emergency/sos/latest", h.LatestSOS)
	g.GET("/emergency/sos/history", h.SOSHistory)

	// Hospital endpoints
	g.GET("/hospital/emergency/requests", h.ListHospitalRequests)
	g.POST("/hospital/emergency/requests/:id/accept", h.AcceptRequest)
	g.POST("/hospital/emergency/requests/:id/resolve", h.ResolveRequest)
}

// flexFloat accepts a JSON number or a numeric string. Anything else decodes
// to "absent" instead of failing the whole body.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.v = nil
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		f.v = &v
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			f.v = &n
		}
	}
	return nil
}

type createSOSRequest struct {
	Latitude      flexFloat `json:"latitude"`
	Longitude     flexFloat `json:"longitude"`
	EmergencyType *string   `json:"emergency_type"`
	Note          *string   `json:"note"`
}

type transitionResponse struct {
	Success   bool   `json:"success"`
	RequestID int64  `json:"request_id"`
	Status    Status `json:"status"`
}

// patientView is a request as its owner sees it.
type patientView struct {
	*EmergencyRequest
	HospitalName  *string `json:"hospital_name"`
	HospitalPhone *string `json:"hospital_phone"`
}

// assignedView is a request as the hospital holding it sees it.
type assignedView struct {
	*EmergencyRequest
	UserName   *string `json:"user_name"`
	UserPhone  *string `json:"user_phone"`
	BloodGroup *string `json:"blood_group"`
}

// pendingView adds the distance from the hospital to an unclaimed request.
type pendingView struct {
	assignedView
	DistanceKM *float64 `json:"distance_km"`
}

func patientViewOf(r *EmergencyRequest) *patientView {
	if r == nil {
		return nil
	}
	return &patientView{EmergencyRequest: r, HospitalName: r.HospitalName, HospitalPhone: r.HospitalPhone}
}

func assignedViewOf(r *EmergencyRequest) assignedView {
	return assignedView{EmergencyRequest: r, UserName: r.UserName, UserPhone: r.UserPhone, BloodGroup: r.BloodGroup}
}

func patientViews(rs []*EmergencyRequest) []*patientView {
	out := make([]*patientView, 0, len(rs))
	for _, r := range rs {
		out = append(out, patientViewOf(r))
	}
	return out
}

func assignedViews(rs []*EmergencyRequest) []assignedView {
	out := make([]assignedView, 0, len(rs))
	for _, r := range rs {
		out = append(out, assignedViewOf(r))
	}
	return out
}

func pendingViews(rs []*EmergencyRequest) []pendingView {
	out := make([]pendingView, 0, len(rs))
	for _, r := range rs {
		out = append(out, pendingView{assignedView: assignedViewOf(r), DistanceKM: r.DistanceKM})
	}
	return out
}

type latestResponse struct {
	Success bool         `json:"success"`
	Request *patientView `json:"request"`
}

type historyResponse struct {
	Success  bool           `json:"success"`
	Requests []*patientView `json:"requests"`
	pagination.Page
}

type worklistResponse struct {
	Success    bool           `json:"success"`
	HospitalID int64          `json:"hospital_id"`
	RadiusKM   float64        `json:"radius_km"`
	Pending    []pendingView  `json:"pending"`
	Assigned   []assignedView `json:"assigned"`
}

func caller(c echo.Context) auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

// toHTTPError maps domain errors onto status codes. Store failures keep their
// message; the cause is attached for the error handler to log.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPreconditionFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFoundOrConflict):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// -- Patient Handlers --

func (h *Handler) CreateSOS(c echo.Context) error {
	var body createSOSRequest
	if err := c.Bind(&body); err != nil {
		// An unreadable body carries no coordinates.
		if _, err := patientOf(caller(c)); err != nil {
			return toHTTPError(err)
		}
		return toHTTPError(errMissingCoords)
	}

	req, err := h.svc.CreateSOS(c.Request().Context(), caller(c), CreateSOSInput{
		Latitude:      body.Latitude.v,
		Longitude:     body.Longitude.v,
		EmergencyType: body.EmergencyType,
		Note:          body.Note,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, transitionResponse{Success: true, RequestID: req.ID, Status: req.Status})
}

func (h *Handler) LatestSOS(c echo.Context) error {
	req, err := h.svc.Latest(c.Request().Context(), caller(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, latestResponse{Success: true, Request: patientViewOf(req)})
}

func (h *Handler) SOSHistory(c echo.Context) error {
	items, page, err := h.svc.History(c.Request().Context(), caller(c), pagination.FromContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, historyResponse{Success: true, Requests: patientViews(items), Page: page})
}

// -- Hospital Handlers --

func (h *Handler) ListHospitalRequests(c echo.Context) error {
	q := ParseWorklistQuery(c.QueryParam("radius_km"), c.QueryParam("include_assigned"))
	wl, err := h.svc.Worklist(c.Request().Context(), caller(c), q)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, worklistResponse{
		Success:    true,
		HospitalID: wl.HospitalID,
		RadiusKM:   wl.RadiusKM,
		Pending:    pendingViews(wl.Pending),
		Assigned:   assignedViews(wl.Assigned),
	})
}

func (h *Handler) AcceptRequest(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return toHTTPError(errNotPending)
	}
	if err := h.svc.Accept(c.Request().Context(), caller(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, transitionResponse{Success: true, RequestID: id, Status: StatusAcknowledged})
}

func (h *Handler) ResolveRequest(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return toHTTPError(errNotAssigned)
	}
	if err := h.svc.Resolve(c.Request().Context(), caller(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, transitionResponse{Success: true, RequestID: id, Status: StatusResolved})
}
