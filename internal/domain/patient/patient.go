package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

type BloodType string

const (
	BloodTypeAPos    BloodType = "A+"
	BloodTypeANeg    BloodType = "A-"
	BloodTypeBPos    BloodType = "B+"
	BloodTypeBNeg    BloodType = "B-"
	BloodTypeABPos   BloodType = "AB+"
	BloodTypeABNeg   BloodType = "AB-"
	BloodTypeOPos    BloodType = "O+"
	BloodTypeONeg    BloodType = "O-"
	BloodTypeUnknown BloodType = "unknown"
)

func (b BloodType) IsValid() bool {
	switch b {
	case BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg, BloodTypeUnknown:
		return true
	}
	return false
}

type ContactInfo struct {
	Phone   string `gorm:"column:phone;type:varchar(20)" json:"phone,omitempty"`
	Address string `gorm:"column:address;type:text" json:"address,omitempty"`
	City    string `gorm:"column:city;type:varchar(100)" json:"city,omitempty"`
	State   string `gorm:"column:state;type:varchar(50)" json:"state,omitempty"`
	ZipCode string `gorm:"column:zip_code;type:varchar(20)" json:"zip_code,omitempty"`
	Country string `gorm:"column:country;type:varchar(100)" json:"country,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`

	FirstName   string     `gorm:"column:first_name;type:varchar(100);not null" json:"first_name"`
	LastName    string     `gorm:"column:last_name;type:varchar(100);not null" json:"last_name"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`
	Gender      Gender     `gorm:"column:gender;type:varchar(20);not null;default:'unknown'" json:"gender"`
	BloodType   BloodType  `gorm:"column:blood_type;type:varchar(7)" json:"blood_type,omitempty"`

	ContactInfo

	EmergencyContact *EmergencyContact `gorm:"column:emergency_contact;serializer:json" json:"emergency_contact,omitempty"`

	Allergies         []string `gorm:"column:allergies;serializer:json" json:"allergies"`
	ChronicConditions []string `gorm:"column:chronic_conditions;serializer:json" json:"chronic_conditions"`

	IsActive bool `gorm:"column:is_active;default:true;index" json:"is_active"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type UpdatePatientCommand struct {
	FirstName         *string
	LastName          *string
	DateOfBirth       *time.Time
	Gender            *Gender
	BloodType         *BloodType
	Phone             *string
	Address           *string
	City              *string
	State             *string
	ZipCode           *string
	Country           *string
	EmergencyContact  *EmergencyContact
	Allergies         *[]string
	ChronicConditions *[]string
}

// Apply copies the set fields of cmd onto p.
func (p *Patient) Apply(cmd *UpdatePatientCommand) {
	setString(&p.FirstName, cmd.FirstName)
	setString(&p.LastName, cmd.LastName)
	if cmd.DateOfBirth != nil {
		p.DateOfBirth = cmd.DateOfBirth
	}
	if cmd.Gender != nil {
		p.Gender = *cmd.Gender
	}
	if cmd.BloodType != nil {
		p.BloodType = *cmd.BloodType
	}
	setString(&p.Phone, cmd.Phone)
	setString(&p.Address, cmd.Address)
	setString(&p.City, cmd.City)
	setString(&p.State, cmd.State)
	setString(&p.ZipCode, cmd.ZipCode)
	setString(&p.Country, cmd.Country)
	if cmd.EmergencyContact != nil {
		p.EmergencyContact = cmd.EmergencyContact
	}
	if cmd.Allergies != nil {
		p.Allergies = *cmd.Allergies
	}
	if cmd.ChronicConditions != nil {
		p.ChronicConditions = *cmd.ChronicConditions
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
