package auth

import (
	"context"
	"strconv"
	"strings"
)

// Kind tags the caller behind a session token subject.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindPatient
	KindHospital
)

func (k Kind) String() string {
	switch k {
	case KindPatient:
		return "patient"
	case KindHospital:
		return "hospital"
	default:
		return "unrecognized"
	}
}

const hospitalPrefix = "hospital_"

// Identity is the parsed form of a token subject: a patient id, a hospital id,
// or nothing usable.
type Identity struct {
	Kind Kind
	ID   int64
}

// ParseIdentity resolves a token subject. A purely numeric subject is a patient
// id, "hospital_<digits>" is a hospital id and anything else is unrecognized.
func ParseIdentity(subject string) Identity {
	if id, ok := parseDigits(subject); ok {
		return Identity{Kind: KindPatient, ID: id}
	}
	if raw, found := strings.CutPrefix(subject, hospitalPrefix); found {
		if id, ok := parseDigits(raw); ok {
			return Identity{Kind: KindHospital, ID: id}
		}
	}
	return Identity{Kind: KindUnrecognized}
}

// parseDigits accepts only ASCII digits. strconv alone would also take signs.
func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PatientID returns the patient id when the identity is a patient.
func (i Identity) PatientID() (int64, bool) {
	return i.ID, i.Kind == KindPatient
}

// HospitalID returns the hospital id when the identity is a hospital.
func (i Identity) HospitalID() (int64, bool) {
	return i.ID, i.Kind == KindHospital
}

func (i Identity) String() string {
	switch i.Kind {
	case KindPatient:
		return strconv.FormatInt(i.ID, 10)
	case KindHospital:
		return hospitalPrefix + strconv.FormatInt(i.ID, 10)
	default:
		return ""
	}
}

// IdentityFromContext parses the subject stored by JWTMiddleware.
func IdentityFromContext(ctx context.Context) Identity {
	return ParseIdentity(SubjectFromContext(ctx))
}
