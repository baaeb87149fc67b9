package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

type DoctorService struct {
	repo     doctor.Repository
	appts    appointment.Repository
	geocoder Geocoder
	audit    *AuditService
	log      *zap.Logger
	now      func() time.Time
}

func NewDoctorService(
	repo doctor.Repository,
	appts appointment.Repository,
	geocoder Geocoder,
	audit *AuditService,
	log *zap.Logger,
) *DoctorService {
	return &DoctorService{repo: repo, appts: appts, geocoder: geocoder, audit: audit, log: log, now: time.Now}
}

// GetDoctor returns a doctor profile. Unverified doctors are only visible to
// themselves and admins.
func (s *DoctorService) GetDoctor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*doctor.Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsVerified && !actor.IsAdmin() && !actor.IsDoctorOf(d.ID) {
		return nil, doctor.ErrDoctorNotFound
	}
	return d, nil
}

func (s *DoctorService) myProfile(ctx context.Context, actor domain.Actor) (*doctor.Doctor, error) {
	if !actor.IsDoctor() {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, *actor.DoctorID)
}

// UpdateProfile applies cmd to the caller's profile. An address change is
// geocoded; when that fails the previous coordinates are kept.
func (s *DoctorService) UpdateProfile(ctx context.Context, actor domain.Actor, cmd *doctor.UpdateProfileCommand) (*doctor.Doctor, error) {
	d, err := s.myProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	addressChanged := d.AddressChanged(cmd)
	if err := d.Apply(cmd); err != nil {
		return nil, err
	}

	if addressChanged && d.FullAddress() != "" {
		p, err := s.geocoder.Geocode(ctx, d.FullAddress())
		if err != nil {
			s.log.Warn("geocoding clinic address failed, keeping previous coordinates",
				zap.String("doctor_id", d.ID.String()),
				zap.Error(err),
			)
		} else {
			d.SetLocation(p)
		}
	}

	if err := s.repo.UpdateProfile(ctx, d); err != nil {
		return nil, fmt.Errorf("saving doctor profile: %w", err)
	}

	s.audit.LogAsync(ctx, auditFor(actor, domain.ActionUpdate, "doctor", d.ID.String()))
	return d, nil
}

// SetAvailability replaces the caller's weekly windows and, when given, timezone.
func (s *DoctorService) SetAvailability(ctx context.Context, actor domain.Actor, windows []doctor.Window, timezone *string) (*doctor.Doctor, error) {
	if err := doctor.ValidateWindows(windows); err != nil {
		return nil, err
	}
	if timezone != nil {
		if _, err := time.LoadLocation(*timezone); err != nil || *timezone == "" {
			return nil, &ValidationError{Fields: []string{"timezone is not a valid IANA zone"}}
		}
	}

	d, err := s.myProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []doctor.Window{}
	}
	d.Availability = windows
	if timezone != nil {
		d.Timezone = *timezone
	}

	if err := s.repo.UpdateAvailability(ctx, d); err != nil {
		return nil, fmt.Errorf("saving availability: %w", err)
	}
	s.audit.LogAsync(ctx, auditFor(actor, domain.ActionUpdate, "doctor_availability", d.ID.String()))
	return d, nil
}

// AvailableSlots lists the free slots of a verified doctor on the calendar
// date of day, read in the doctor's timezone.
func (s *DoctorService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]doctor.Interval, error) {
	d, err := s.repo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !d.IsVerified {
		return nil, doctor.ErrDoctorNotFound
	}

	loc := d.TimeLocation()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	booked, err := s.appts.BusyIntervals(ctx, d.ID, from, to)
	if err != nil {
		return nil, err
	}
	busy := make([]doctor.Interval, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, doctor.Interval{Start: a.ScheduledAt, End: a.EndsAt()})
	}

	return d.AvailableSlots(from, busy, s.now()), nil
}

func (s *DoctorService) validateSearch(q *doctor.SearchQuery) error {
	var v validation
	if q.Origin != nil {
		v.check(q.Origin.Valid(), "latitude/longitude out of range")
	}
	if q.MaxDistanceKm != nil {
		v.check(q.Origin != nil, "max_distance_km requires latitude and longitude")
		v.check(*q.MaxDistanceKm > 0, "max_distance_km must be positive")
	}
	if q.MinFee != nil && q.MaxFee != nil {
		v.check(*q.MinFee <= *q.MaxFee, "min_fee cannot exceed max_fee")
	}
	if q.MinRating != nil {
		v.check(*q.MinRating >= 0 && *q.MinRating <= 5, "min_rating must be between 0 and 5")
	}
	if q.Mode != nil {
		v.check(q.Mode.IsValid(), "mode is invalid")
	}
	switch q.SortBy {
	case "", doctor.SortRating, doctor.SortFee, doctor.SortExperience:
	case doctor.SortDistance:
		v.check(q.Origin != nil, "sort=distance requires latitude and longitude")
	default:
		v.check(false, "sort must be one of rating, fee, experience, distance")
	}
	return v.err()
}

// SearchDoctors finds verified doctors. Without an origin the database
// paginates; with one, distances are computed for every match, filtered and
// sorted in memory, and only then paginated.
func (s *DoctorService) SearchDoctors(ctx context.Context, q *doctor.SearchQuery) (*doctor.PagedResults, error) {
	if err := s.validateSearch(q); err != nil {
		return nil, err
	}
	page, size := normalizePage(q.Page, q.PageSize)
	q.Page, q.PageSize = page, size

	if q.Origin == nil {
		res, err := s.repo.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		results := make([]doctor.Result, 0, len(res.Doctors))
		for _, d := range res.Doctors {
			results = append(results, doctor.Result{Doctor: d})
		}
		return &doctor.PagedResults{
			Results:    results,
			TotalCount: res.TotalCount,
			Page:       res.Page,
			PageSize:   res.PageSize,
			TotalPages: res.TotalPages,
		}, nil
	}

	all, err := s.repo.SearchAll(ctx, q)
	if err != nil {
		return nil, err
	}
	results := rankByDistance(all, *q.Origin, q.MaxDistanceKm, q.SortBy == doctor.SortDistance)
	return paginate(results, page, size), nil
}

// rankByDistance attaches distances to doctors, drops those beyond maxKm
// (and, when maxKm is set, those without coordinates) and optionally sorts
// nearest first with unknown distances last.
func rankByDistance(doctors []*doctor.Doctor, origin geo.Point, maxKm *float64, sortByDistance bool) []doctor.Result {
	results := make([]doctor.Result, 0, len(doctors))
	for _, d := range doctors {
		r := doctor.Result{Doctor: d}
		if loc, ok := d.Location(); ok {
			km := geo.Distance(origin, loc)
			r.DistanceKm = &km
		}
		if maxKm != nil && (r.DistanceKm == nil || *r.DistanceKm > *maxKm) {
			continue
		}
		results = append(results, r)
	}

	if sortByDistance {
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].DistanceKm, results[j].DistanceKm
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a < *b
			}
		})
	}
	return results
}

func paginate(results []doctor.Result, page, size int) *doctor.PagedResults {
	total := len(results)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return &doctor.PagedResults{
		Results:    results[start:end],
		TotalCount: int64(total),
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}
}

func (s *DoctorService) ListPending(ctx context.Context, actor domain.Actor, q *doctor.ListPendingQuery) (*doctor.PagedDoctors, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.repo.ListPending(ctx, q)
}

// SetVerified verifies or unverifies a doctor. Only verified doctors appear
// in search and accept bookings.
func (s *DoctorService) SetVerified(ctx context.Context, actor domain.Actor, id uuid.UUID, verified bool) (*doctor.Doctor, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if verified {
		d.Verify(actor.UserID)
	} else {
		d.Unverify()
	}
	if err := s.repo.UpdateVerification(ctx, d); err != nil {
		return nil, fmt.Errorf("saving verification: %w", err)
	}

	entry := auditFor(actor, domain.ActionUpdate, "doctor_verification", d.ID.String())
	entry.Changes = fmt.Sprintf(`{"is_verified":%t}`, verified)
	s.audit.LogAsync(ctx, entry)

	s.log.Info("doctor verification changed",
		zap.String("doctor_id", d.ID.String()),
		zap.Bool("verified", verified),
		zap.String("by", actor.UserID.String()),
	)
	return d, nil
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Fields: []string{"date must be YYYY-MM-DD"}}
	}
	return t, nil
}
