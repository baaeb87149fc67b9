package doctor

import "errors"

var (
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrDoctorNotVerified    = errors.New("doctor is not verified")
	ErrLicenseTaken         = errors.New("a doctor with this license number already exists")
	ErrInvalidAvailability  = errors.New("invalid availability window")
	ErrOverlappingWindows   = errors.New("availability windows overlap")
	ErrModeNotOffered       = errors.New("doctor does not offer this consultation mode")
	ErrInvalidFee           = errors.New("consultation fee cannot be negative")
	ErrInvalidSlotLength    = errors.New("slot length must be between 10 and 240 minutes")
	ErrOutsideAvailability  = errors.New("requested time is outside the doctor's availability")
	ErrSpecializationNeeded = errors.New("specialization is required")
)
