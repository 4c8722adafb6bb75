package reservations

import (
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

// ConflictDetails is the structured payload attached to admission conflicts.
type ConflictDetails struct {
	Reason enums.ConflictReason `json:"reason"`
}

// NewConflict builds the typed admission refusal for the given reason.
func NewConflict(reason enums.ConflictReason, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, message).WithDetails(ConflictDetails{Reason: reason})
}

// ConflictReason extracts the admission refusal reason, if err is one.
func ConflictReason(err error) (enums.ConflictReason, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		return "", false
	}
	details, ok := typed.Details().(ConflictDetails)
	if !ok {
		return "", false
	}
	return details.Reason, true
}
