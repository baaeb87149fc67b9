package document

import (
	"context"
	"errors"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeCare struct {
	pairs map[[2]uuid.UUID]bool
	err   error
}

func (f fakeCare) HasCareRelationship(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return f.pairs[[2]uuid.UUID{doctorID, patientID}], f.err
}

func TestCanAccess(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()
	treating := uuid.New()
	stranger := uuid.New()
	care := fakeCare{pairs: map[[2]uuid.UUID]bool{{treating, owner}: true}}

	tests := []struct {
		name  string
		actor domain.Actor
		want  bool
	}{
		{"admin", domain.Actor{Role: domain.RoleAdmin}, true},
		{"owner patient", domain.Actor{Role: domain.RolePatient, PatientID: &owner}, true},
		{"other patient", domain.Actor{Role: domain.RolePatient, PatientID: &other}, false},
		{"patient without profile", domain.Actor{Role: domain.RolePatient}, false},
		{"treating doctor", domain.Actor{Role: domain.RoleDoctor, DoctorID: &treating}, true},
		{"unrelated doctor", domain.Actor{Role: domain.RoleDoctor, DoctorID: &stranger}, false},
		{"unknown role", domain.Actor{Role: "nurse"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanAccess(ctx, tt.actor, owner, care)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanAccess_PropagatesLookupError(t *testing.T) {
	doc := uuid.New()
	boom := errors.New("db down")
	_, err := CanAccess(context.Background(),
		domain.Actor{Role: domain.RoleDoctor, DoctorID: &doc}, uuid.New(), fakeCare{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestCanUpload_Prescriptions(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	doc := uuid.New()
	care := fakeCare{pairs: map[[2]uuid.UUID]bool{{doc, owner}: true}}
	patient := domain.Actor{Role: domain.RolePatient, PatientID: &owner}
	doctor := domain.Actor{Role: domain.RoleDoctor, DoctorID: &doc}

	ok, _ := CanUpload(ctx, patient, owner, TypePrescription, care)
	assert.False(t, ok, "patients cannot upload prescriptions")

	ok, _ = CanUpload(ctx, patient, owner, TypeLabReport, care)
	assert.True(t, ok)

	ok, _ = CanUpload(ctx, doctor, owner, TypePrescription, care)
	assert.True(t, ok)

	ok, _ = CanUpload(ctx, doctor, uuid.New(), TypePrescription, care)
	assert.False(t, ok, "doctor must be treating the patient")

	ok, _ = CanUpload(ctx, domain.Actor{Role: domain.RoleAdmin}, owner, TypePrescription, care)
	assert.True(t, ok)
}

func TestCanDelete(t *testing.T) {
	owner := uuid.New()
	uploader := uuid.New()
	d := &Document{PatientID: owner, UploadedBy: uploader}

	assert.True(t, CanDelete(domain.Actor{Role: domain.RoleAdmin}, d))
	assert.True(t, CanDelete(domain.Actor{Role: domain.RolePatient, PatientID: &owner}, d))
	assert.True(t, CanDelete(domain.Actor{UserID: uploader, Role: domain.RoleDoctor}, d))
	other := uuid.New()
	assert.False(t, CanDelete(domain.Actor{UserID: uuid.New(), Role: domain.RolePatient, PatientID: &other}, d))
}

func TestType(t *testing.T) {
	assert.True(t, TypeScan.IsValid())
	assert.False(t, Type("xray").IsValid())
	assert.True(t, IsAllowedContentType("application/pdf"))
	assert.False(t, IsAllowedContentType("application/zip"))
}
