package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PatientService struct {
	repo     patient.Repository
	care     document.CareChecker
	auditSvc *AuditService
	log      *zap.Logger
	now      func() time.Time
}

func NewPatientService(repo patient.Repository, care document.CareChecker, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		care:     care,
		auditSvc: auditSvc,
		log:      log,
		now:      time.Now,
	}
}

func (s *PatientService) GetMyProfile(ctx context.Context, actor domain.Actor) (*patient.Patient, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, *actor.PatientID)
}

func (s *PatientService) UpdateMyProfile(ctx context.Context, actor domain.Actor, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}
	if err := s.validateUpdate(cmd); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, *actor.PatientID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, patient.ErrPatientInactive
	}

	p.Apply(cmd)
	if err := s.repo.Save(ctx, p); err != nil {
		s.log.Error("failed to update patient", zap.Error(err))
		return nil, fmt.Errorf("updating patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionUpdate, "patient", p.ID.String()))
	return p, nil
}

// GetPatient reads a patient record under the medical data access policy.
func (s *PatientService) GetPatient(ctx context.Context, actor domain.Actor, id uuid.UUID) (*patient.Patient, error) {
	ok, err := document.CanAccess(ctx, actor, id, s.care)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionRead, "patient", id.String()))
	return p, nil
}

func (s *PatientService) validateUpdate(cmd *patient.UpdatePatientCommand) error {
	var v validation
	if cmd.Gender != nil {
		v.check(cmd.Gender.IsValid(), patient.ErrInvalidGender.Error())
	}
	if cmd.BloodType != nil {
		v.check(cmd.BloodType.IsValid(), patient.ErrInvalidBloodType.Error())
	}
	if cmd.DateOfBirth != nil {
		v.check(!cmd.DateOfBirth.After(s.now()), patient.ErrInvalidDateOfBirth.Error())
	}
	if cmd.FirstName != nil {
		v.check(*cmd.FirstName != "", "first_name cannot be empty")
	}
	if cmd.LastName != nil {
		v.check(*cmd.LastName != "", "last_name cannot be empty")
	}
	if cmd.EmergencyContact != nil {
		v.check(cmd.EmergencyContact.Name != "" && cmd.EmergencyContact.Phone != "",
			"emergency_contact requires name and phone")
	}
	return v.err()
}
