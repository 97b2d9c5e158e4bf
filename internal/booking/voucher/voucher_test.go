package voucher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"furgocasa/internal/models"
)

func testBooking() *models.Booking {
	pickup, _ := time.Parse("2006-01-02", "2026-07-10")
	dropoff, _ := time.Parse("2006-01-02", "2026-07-15")
	return &models.Booking{
		ID:            "bk1",
		BookingNumber: "FC-20260710-0001",
		VehicleID:     "veh1",
		PickupDate:    pickup,
		DropoffDate:   dropoff,
	}
}

func TestPNGProducesScannableImage(t *testing.T) {
	g := NewGenerator("voucher-secret")

	png, err := g.PNG(testBooking())
	assert.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, png[:4])
}

func TestVerifyAcceptsOwnPayload(t *testing.T) {
	g := NewGenerator("voucher-secret")

	p := payload{
		BookingNumber: "FC-20260710-0001",
		VehicleID:     "veh1",
		PickupDate:    "2026-07-10",
		DropoffDate:   "2026-07-15",
	}
	p.Signature = g.sign(p)
	data, err := json.Marshal(p)
	assert.NoError(t, err)

	ok, err := g.Verify(data)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	g := NewGenerator("voucher-secret")

	p := payload{
		BookingNumber: "FC-20260710-0001",
		VehicleID:     "veh1",
		PickupDate:    "2026-07-10",
		DropoffDate:   "2026-07-15",
	}
	p.Signature = g.sign(p)
	p.VehicleID = "veh2"
	data, _ := json.Marshal(p)

	ok, err := g.Verify(data)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	g1 := NewGenerator("secret-one")
	g2 := NewGenerator("secret-two")

	p := payload{BookingNumber: "FC-1", VehicleID: "veh1", PickupDate: "2026-07-10", DropoffDate: "2026-07-15"}
	p.Signature = g1.sign(p)
	data, _ := json.Marshal(p)

	ok, err := g2.Verify(data)
	assert.NoError(t, err)
	assert.False(t, ok)
}
