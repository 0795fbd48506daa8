package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/medisos/dispatch/internal/platform/db"
	"github.com/medisos/dispatch/internal/platform/geo"
)

// listCap bounds every list query.
const listCap = 200

// =========== Request Repository ===========

type requestRepoPG struct{ db db.DB }

func NewRequestRepoPG(d db.DB) RequestRepository { return &requestRepoPG{db: d} }

const requestCols = `er.id, er.user_id, er.latitude, er.longitude, er.emergency_type, er.note,
	er.status, er.hospital_id, er.created_at, er.acknowledged_at, er.resolved_at`

const patientViewCols = requestCols + `, h.name, h.phone`

const hospitalViewCols = requestCols + `, u.name, u.phone, u.blood_group`

// scanRequest reads requestCols followed by extra enrichment targets.
func scanRequest(row pgx.Row, r *EmergencyRequest, extra ...interface{}) error {
	var status string
	dest := append([]interface{}{
		&r.ID, &r.UserID, &r.Latitude, &r.Longitude, &r.EmergencyType, &r.Note,
		&status, &r.HospitalID, &r.CreatedAt, &r.AcknowledgedAt, &r.ResolvedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	r.Status = Status(status)
	return nil
}

func scanPatientView(row pgx.Row) (*EmergencyRequest, error) {
	var r EmergencyRequest
	err := scanRequest(row, &r, &r.HospitalName, &r.HospitalPhone)
	return &r, err
}

func scanHospitalView(row pgx.Row) (*EmergencyRequest, error) {
	var r EmergencyRequest
	err := scanRequest(row, &r, &r.UserName, &r.UserPhone, &r.BloodGroup)
	return &r, err
}

func (r *requestRepoPG) Create(ctx context.Context, req *EmergencyRequest) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO emergency_requests (user_id, latitude, longitude, emergency_type, note, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			req.UserID, req.Latitude, req.Longitude, req.EmergencyType, req.Note,
			string(StatusPending), req.CreatedAt,
		).Scan(&req.ID)
	})
}

func (r *requestRepoPG) LatestForUser(ctx context.Context, userID int64) (*EmergencyRequest, error) {
	req, err := scanPatientView(r.db.QueryRow(ctx, `
		SELECT `+patientViewCols+`
		FROM emergency_requests er
		LEFT JOIN hospitals h ON h.id = er.hospital_id
		WHERE er.user_id = $1
		ORDER BY er.created_at DESC, er.id DESC
		LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) HistoryForUser(ctx context.Context, userID int64, limit, offset int) ([]*EmergencyRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+patientViewCols+`
		FROM emergency_requests er
		LEFT JOIN hospitals h ON h.id = er.hospital_id
		WHERE er.user_id = $1
		ORDER BY er.created_at DESC, er.id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*EmergencyRequest, 0, limit)
	for rows.Next() {
		req, err := scanPatientView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

// pendingNearQuery selects pending requests inside box. The exact distance
// check happens on the returned rows.
func pendingNearQuery(box geo.Box) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`
		SELECT ` + hospitalViewCols + `
		FROM emergency_requests er
		JOIN users u ON u.id = er.user_id
		WHERE er.status = $1
		  AND er.latitude BETWEEN $2 AND $3`)
	args := []interface{}{string(StatusPending), box.MinLat, box.MaxLat}
	if !box.AllLongitudes {
		b.WriteString(`
		  AND er.longitude BETWEEN $4 AND $5`)
		args = append(args, box.MinLng, box.MaxLng)
	}
	b.WriteString(`
		ORDER BY er.created_at DESC, er.id DESC`)
	return b.String(), args
}

func (r *requestRepoPG) PendingNear(ctx context.Context, lat, lng, radiusKM float64) ([]*EmergencyRequest, error) {
	sql, args := pendingNearQuery(geo.BoundingBox(lat, lng, radiusKM))
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*EmergencyRequest, 0)
	for rows.Next() {
		req, err := scanHospitalView(rows)
		if err != nil {
			return nil, err
		}
		d := geo.DistanceKM(lat, lng, req.Latitude, req.Longitude)
		if d > radiusKM {
			continue
		}
		req.DistanceKM = &d
		items = append(items, req)
		if len(items) == listCap {
			break
		}
	}
	return items, rows.Err()
}

func (r *requestRepoPG) AssignedTo(ctx context.Context, hospitalID int64) ([]*EmergencyRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+hospitalViewCols+`
		FROM emergency_requests er
		JOIN users u ON u.id = er.user_id
		WHERE er.hospital_id = $1
		ORDER BY er.created_at DESC, er.id DESC
		LIMIT $2`, hospitalID, listCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*EmergencyRequest, 0)
	for rows.Next() {
		req, err := scanHospitalView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

// timestampColumn names the column a transition into s stamps.
func timestampColumn(s Status) (string, error) {
	switch s {
	case StatusAcknowledged:
		return "acknowledged_at", nil
	case StatusResolved:
		return "resolved_at", nil
	}
	return "", fmt.Errorf("no transition into status %q", s)
}

// casQuery builds the single conditional UPDATE behind CompareAndSwap.
func casQuery(id int64, g Guard, t Transition) (string, []interface{}, error) {
	if len(g.From) == 0 {
		return "", nil, fmt.Errorf("guard has no source status")
	}
	col, err := timestampColumn(t.To)
	if err != nil {
		return "", nil, err
	}

	args := []interface{}{string(t.To), t.At}
	set := []string{"status = $1", col + " = $2"}
	if t.HospitalID != nil {
		args = append(args, *t.HospitalID)
		set = append(set, fmt.Sprintf("hospital_id = $%d", len(args)))
	}

	from := make([]string, len(g.From))
	for i, s := range g.From {
		from[i] = string(s)
	}
	args = append(args, id)
	where := []string{fmt.Sprintf("id = $%d", len(args))}
	args = append(args, from)
	where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	if g.HospitalID != nil {
		args = append(args, *g.HospitalID)
		where = append(where, fmt.Sprintf("hospital_id = $%d", len(args)))
	}

	sql := "UPDATE emergency_requests SET " + strings.Join(set, ", ") +
		" WHERE " + strings.Join(where, " AND ")
	return sql, args, nil
}

func (r *requestRepoPG) CompareAndSwap(ctx context.Context, id int64, g Guard, t Transition) (bool, error) {
	sql, args, err := casQuery(id, g, t)
	if err != nil {
		return false, err
	}

	var applied bool
	err = db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() == 1
		return nil
	})
	return applied, err
}

// =========== Hospital Repository ===========

type hospitalRepoPG struct{ db db.DB }

func NewHospitalRepoPG(d db.DB) HospitalRepository { return &hospitalRepoPG{db: d} }

func (r *hospitalRepoPG) Get(ctx context.Context, id int64) (*Hospital, error) {
	var h Hospital
	err := r.db.QueryRow(ctx,
		`SELECT id, name, phone, latitude, longitude FROM hospitals WHERE id = $1`, id,
	).Scan(&h.ID, &h.Name, &h.Phone, &h.Latitude, &h.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}
