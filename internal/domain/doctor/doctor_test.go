package doctor

import (
	"testing"

	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestApply(t *testing.T) {
	d := &Doctor{Specialization: "cardiology", ConsultationFee: 1000, SlotMinutes: 30}

	assert.ErrorIs(t, d.Apply(&UpdateProfileCommand{Specialization: ptr("  ")}), ErrSpecializationNeeded)
	assert.ErrorIs(t, d.Apply(&UpdateProfileCommand{ConsultationFee: ptr(int64(-1))}), ErrInvalidFee)
	assert.ErrorIs(t, d.Apply(&UpdateProfileCommand{SlotMinutes: ptr(5)}), ErrInvalidSlotLength)
	assert.Equal(t, int64(1000), d.ConsultationFee, "failed apply must not mutate")

	err := d.Apply(&UpdateProfileCommand{
		Bio:             ptr(" Heart doctor "),
		ConsultationFee: ptr(int64(2500)),
		Languages:       ptr([]string{"en", "hi"}),
		OffersInPerson:  ptr(true),
	})
	assert.NoError(t, err)
	assert.Equal(t, "Heart doctor", d.Bio)
	assert.Equal(t, int64(2500), d.ConsultationFee)
	assert.Equal(t, []string{"en", "hi"}, d.Languages)
	assert.True(t, d.Offers(ModeInPerson))
}

func TestAddressChanged(t *testing.T) {
	d := &Doctor{ClinicAddress: "1 Main St", City: "Pune", Country: "India"}
	assert.False(t, d.AddressChanged(&UpdateProfileCommand{City: ptr("Pune")}))
	assert.True(t, d.AddressChanged(&UpdateProfileCommand{City: ptr("Mumbai")}))
	assert.False(t, d.AddressChanged(&UpdateProfileCommand{Bio: ptr("x")}))
	assert.Equal(t, "1 Main St, Pune, India", d.FullAddress())
}

func TestLocationAndVerification(t *testing.T) {
	d := &Doctor{}
	_, ok := d.Location()
	assert.False(t, ok)

	d.SetLocation(geo.Point{Lat: 18.52, Lng: 73.85})
	p, ok := d.Location()
	assert.True(t, ok)
	assert.Equal(t, 18.52, p.Lat)

	d.Verify(uuid.New())
	assert.True(t, d.IsVerified)
	assert.NotNil(t, d.VerifiedAt)
	d.Unverify()
	assert.False(t, d.IsVerified)
	assert.Nil(t, d.VerifiedBy)
}
