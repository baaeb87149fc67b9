package doctor

import (
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/google/uuid"
)

type ConsultationMode string

const (
	ModeOnline   ConsultationMode = "online"
	ModeInPerson ConsultationMode = "in_person"
)

func (m ConsultationMode) IsValid() bool {
	return m == ModeOnline || m == ModeInPerson
}

const (
	DefaultSlotMinutes = 30
	MinSlotMinutes     = 10
	MaxSlotMinutes     = 240
)

type Doctor struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`

	FirstName       string   `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName        string   `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	Specialization  string   `gorm:"column:specialization;type:varchar(100);not null;index" json:"specialization"`
	Qualifications  []string `gorm:"column:qualifications;type:jsonb;serializer:json" json:"qualifications"`
	Languages       []string `gorm:"column:languages;type:jsonb;serializer:json" json:"languages"`
	YearsExperience int      `gorm:"column:years_experience;default:0" json:"years_experience"`
	Bio             string   `gorm:"column:bio;type:text" json:"bio,omitempty"`
	LicenseNumber   string   `gorm:"column:license_number;type:varchar(50);uniqueIndex;not null" json:"license_number"`

	// Fee in minor units of Currency.
	ConsultationFee int64  `gorm:"column:consultation_fee;not null;default:0" json:"consultation_fee"`
	Currency        string `gorm:"column:currency;type:varchar(3);not null;default:'usd'" json:"currency"`
	OffersOnline    bool   `gorm:"column:offers_online;default:true" json:"offers_online"`
	OffersInPerson  bool   `gorm:"column:offers_in_person;default:false" json:"offers_in_person"`

	ClinicAddress string   `gorm:"column:clinic_address;type:text" json:"clinic_address,omitempty"`
	City          string   `gorm:"column:city;type:varchar(100);index" json:"city,omitempty"`
	Country       string   `gorm:"column:country;type:varchar(100)" json:"country,omitempty"`
	Latitude      *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude     *float64 `gorm:"column:longitude" json:"longitude,omitempty"`

	Availability []Window `gorm:"column:availability;type:jsonb;serializer:json" json:"availability"`
	SlotMinutes  int      `gorm:"column:slot_minutes;not null;default:30" json:"slot_minutes"`
	Timezone     string   `gorm:"column:timezone;type:varchar(64);not null;default:'UTC'" json:"timezone"`

	IsVerified bool       `gorm:"column:is_verified;default:false;index" json:"is_verified"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	VerifiedBy *uuid.UUID `gorm:"column:verified_by;type:uuid" json:"-"`

	RatingAverage float64 `gorm:"column:rating_average;default:0" json:"rating_average"`
	RatingCount   int     `gorm:"column:rating_count;default:0" json:"rating_count"`
}

func (Doctor) TableName() string {
	return "clinical.doctors"
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

func (d *Doctor) Offers(mode ConsultationMode) bool {
	switch mode {
	case ModeOnline:
		return d.OffersOnline
	case ModeInPerson:
		return d.OffersInPerson
	}
	return false
}

// Location returns the clinic coordinates, if known.
func (d *Doctor) Location() (geo.Point, bool) {
	if d.Latitude == nil || d.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *d.Latitude, Lng: *d.Longitude}, true
}

func (d *Doctor) SetLocation(p geo.Point) {
	lat, lng := p.Lat, p.Lng
	d.Latitude = &lat
	d.Longitude = &lng
}

func (d *Doctor) Verify(by uuid.UUID) {
	now := time.Now()
	d.IsVerified = true
	d.VerifiedAt = &now
	d.VerifiedBy = &by
}

func (d *Doctor) Unverify() {
	d.IsVerified = false
	d.VerifiedAt = nil
	d.VerifiedBy = nil
}

func (d *Doctor) SlotLength() time.Duration {
	if d.SlotMinutes <= 0 {
		return DefaultSlotMinutes * time.Minute
	}
	return time.Duration(d.SlotMinutes) * time.Minute
}

type UpdateProfileCommand struct {
	FirstName       *string
	LastName        *string
	Specialization  *string
	Qualifications  *[]string
	Languages       *[]string
	YearsExperience *int
	Bio             *string
	ConsultationFee *int64
	OffersOnline    *bool
	OffersInPerson  *bool
	ClinicAddress   *string
	City            *string
	Country         *string
	SlotMinutes     *int
}

// AddressChanged reports whether applying cmd would change the clinic address.
func (d *Doctor) AddressChanged(cmd *UpdateProfileCommand) bool {
	changed := func(cur string, v *string) bool {
		return v != nil && strings.TrimSpace(*v) != cur
	}
	return changed(d.ClinicAddress, cmd.ClinicAddress) ||
		changed(d.City, cmd.City) ||
		changed(d.Country, cmd.Country)
}

// Apply validates cmd and copies its set fields onto d.
func (d *Doctor) Apply(cmd *UpdateProfileCommand) error {
	if cmd.Specialization != nil && strings.TrimSpace(*cmd.Specialization) == "" {
		return ErrSpecializationNeeded
	}
	if cmd.ConsultationFee != nil && *cmd.ConsultationFee < 0 {
		return ErrInvalidFee
	}
	if cmd.SlotMinutes != nil && (*cmd.SlotMinutes < MinSlotMinutes || *cmd.SlotMinutes > MaxSlotMinutes) {
		return ErrInvalidSlotLength
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&d.FirstName, cmd.FirstName)
	set(&d.LastName, cmd.LastName)
	set(&d.Specialization, cmd.Specialization)
	set(&d.Bio, cmd.Bio)
	set(&d.ClinicAddress, cmd.ClinicAddress)
	set(&d.City, cmd.City)
	set(&d.Country, cmd.Country)
	if cmd.Qualifications != nil {
		d.Qualifications = *cmd.Qualifications
	}
	if cmd.Languages != nil {
		d.Languages = *cmd.Languages
	}
	if cmd.YearsExperience != nil {
		d.YearsExperience = *cmd.YearsExperience
	}
	if cmd.ConsultationFee != nil {
		d.ConsultationFee = *cmd.ConsultationFee
	}
	if cmd.OffersOnline != nil {
		d.OffersOnline = *cmd.OffersOnline
	}
	if cmd.OffersInPerson != nil {
		d.OffersInPerson = *cmd.OffersInPerson
	}
	if cmd.SlotMinutes != nil {
		d.SlotMinutes = *cmd.SlotMinutes
	}
	return nil
}

// FullAddress is the single-line address sent to the geocoder.
func (d *Doctor) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{d.ClinicAddress, d.City, d.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type SortField string

const (
	SortRating     SortField = "rating"
	SortFee        SortField = "fee"
	SortExperience SortField = "experience"
	SortDistance   SortField = "distance"
)

type SearchQuery struct {
	Name           string
	Specialization string
	City           string
	Language       string
	Mode           *ConsultationMode
	MinFee         *int64
	MaxFee         *int64
	MinRating      *float64

	// Origin enables distance computation; MaxDistanceKm filters on it.
	Origin        *geo.Point
	MaxDistanceKm *float64

	SortBy   SortField
	Page     int
	PageSize int
}

// Result pairs a doctor with its distance from the search origin.
type Result struct {
	Doctor     *Doctor  `json:"doctor"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type PagedResults struct {
	Results    []Result
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

type ListPendingQuery struct {
	Page     int
	PageSize int
}

type PagedDoctors struct {
	Doctors    []*Doctor
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
