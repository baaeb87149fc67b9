package document

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/google/uuid"
)

// CareChecker answers whether a doctor is treating a patient, i.e. holds a
// confirmed or completed appointment with them.
type CareChecker interface {
	HasCareRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// CanAccess is the access policy for a patient's medical data:
//
//	admin   → always
//	patient → only their own
//	doctor  → only with a confirmed or completed appointment with the patient
func CanAccess(ctx context.Context, actor domain.Actor, patientID uuid.UUID, care CareChecker) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case actor.IsPatient():
		return actor.OwnsPatient(patientID), nil
	case actor.IsDoctor():
		return care.HasCareRelationship(ctx, *actor.DoctorID, patientID)
	}
	return false, nil
}

// CanUpload applies CanAccess plus the type rule: prescriptions come only
// from doctors or admins.
func CanUpload(ctx context.Context, actor domain.Actor, patientID uuid.UUID, t Type, care CareChecker) (bool, error) {
	if t == TypePrescription && !actor.IsAdmin() && !actor.IsDoctor() {
		return false, nil
	}
	return CanAccess(ctx, actor, patientID, care)
}

// CanDelete allows the owning patient, the uploader and admins.
func CanDelete(actor domain.Actor, d *Document) bool {
	return actor.IsAdmin() || actor.OwnsPatient(d.PatientID) || actor.UserID == d.UploadedBy
}
