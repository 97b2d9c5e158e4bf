package coupon

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	assert.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.NewCreateTable().Model((*models.Coupon)(nil)).IfNotExists().Exec(context.Background())
	assert.NoError(t, err)

	return db
}

func day(s string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", s, time.UTC)
	return t
}

// daysOut returns a calendar day n days from now, so the fixtures
// stay inside summerCoupon's rolling validity window whenever the
// tests run.
func daysOut(n int) time.Time {
	return day(time.Now().UTC().AddDate(0, 0, n).Format("2006-01-02"))
}

func insertCoupon(t *testing.T, db *bun.DB, c models.Coupon) {
	if c.ID == "" {
		c.ID = "cpn_" + c.Code
	}
	c.CreatedAt = time.Now()
	_, err := db.NewInsert().Model(&c).Exec(context.Background())
	assert.NoError(t, err)
}

func summerCoupon() models.Coupon {
	return models.Coupon{
		Code:         "SUMMER10",
		DiscountType: models.DiscountPercentage,
		Value:        10,
		ValidFrom:    time.Now().AddDate(0, -1, 0),
		ValidUntil:   time.Now().AddDate(0, 6, 0),
		Active:       true,
	}
}

func TestValidatePercentageDiscount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertCoupon(t, db, summerCoupon())
	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "summer10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       350,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 35.0, result.Discount)
}

func TestValidatePercentageDiscountRoundsToCents(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertCoupon(t, db, summerCoupon())
	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       333.33,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 33.33, result.Discount) // not 33.333
}

func TestValidateFixedDiscountCappedAtTotal(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.Code = "FLAT500"
	c.DiscountType = models.DiscountFixed
	c.Value = 500
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "FLAT500",
		PickupDate:  daysOut(10),
		DropoffDate: daysOut(13),
		Days:        3,
		Total:       300,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 300.0, result.Discount)
}

func TestValidateUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{Code: "NOPE", Days: 5, Total: 400})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestValidateInactiveCodeLooksUnknown(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.Active = false
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonNotFound, result.Reason)
}

func TestValidateNotActiveYet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.ValidFrom = time.Now().AddDate(0, 1, 0)
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonNotActiveYet, result.Reason)
}

func TestValidateExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.ValidUntil = time.Now().AddDate(0, 0, -1)
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestValidateStayWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	stayFrom := daysOut(20)
	stayUntil := daysOut(80)
	c.StayFrom = &stayFrom
	c.StayUntil = &stayUntil
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(5),
		DropoffDate: daysOut(10),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonOutsideStayWindow, result.Reason)

	result, err = v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidatePickupOutsideValidityWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.ValidUntil = time.Now().AddDate(0, 0, 5)
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	// The code itself is still active, but the pickup lands two
	// months past its expiry.
	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(60),
		DropoffDate: daysOut(65),
		Days:        5,
		Total:       700,
	})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonOutsideStayWindow, result.Reason)

	// Inside the window it still validates.
	result, err = v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(3),
		DropoffDate: daysOut(8),
		Days:        5,
		Total:       700,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateExhausted(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.MaxUses = 1
	c.CurrentUses = 1
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonExhausted, result.Reason)
}

func TestValidateZeroMaxUsesIsUnlimited(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.MaxUses = 0
	c.CurrentUses = 9000
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateMinDays(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.MinDays = 7
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonMinDaysNotMet, result.Reason)
}

func TestValidateMinAmount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.MinAmount = 500
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())

	result, err := v.Validate(context.Background(), Request{
		Code:        "SUMMER10",
		PickupDate:  daysOut(30),
		DropoffDate: daysOut(35),
		Days:        5,
		Total:       400,
	})
	assert.NoError(t, err)
	assert.Equal(t, ReasonMinAmountNotMet, result.Reason)
}

func TestRedeemConsumesUse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := summerCoupon()
	c.MaxUses = 2
	insertCoupon(t, db, c)

	v := NewValidator(db, logger.NewLogger())
	ctx := context.Background()

	assert.NoError(t, v.Redeem(ctx, "cpn_SUMMER10"))
	assert.NoError(t, v.Redeem(ctx, "cpn_SUMMER10"))

	err := v.Redeem(ctx, "cpn_SUMMER10")
	assert.Error(t, err)

	var pv *models.PolicyViolation
	assert.ErrorAs(t, err, &pv)
}
