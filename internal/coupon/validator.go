package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

// Rejection reasons, in the order the checks run. Each check
// short-circuits: a code that is both expired and exhausted reports
// expired.
const (
	ReasonNotFound          = "not_found"
	ReasonNotActiveYet      = "not_active_yet"
	ReasonExpired           = "expired"
	ReasonOutsideStayWindow = "outside_stay_window"
	ReasonExhausted         = "exhausted"
	ReasonMinDaysNotMet     = "min_days_not_met"
	ReasonMinAmountNotMet   = "min_amount_not_met"
)

type Result struct {
	Valid    bool           `json:"valid"`
	Reason   string         `json:"reason,omitempty"`
	Message  string         `json:"message,omitempty"`
	Discount float64        `json:"discount"`
	Coupon   *models.Coupon `json:"coupon,omitempty"`
}

// Request carries everything a coupon check needs to know about the
// rental being discounted.
type Request struct {
	Code        string
	PickupDate  time.Time
	DropoffDate time.Time
	Days        int
	Total       float64
}

type Validator struct {
	DB  *bun.DB
	Log *logger.Logger
}

func NewValidator(db *bun.DB, log *logger.Logger) *Validator {
	return &Validator{DB: db, Log: log}
}

// Validate runs the ordered checks against a coupon code and, when
// they all pass, computes the discount for the rental total.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	now := time.Now().UTC()

	var c models.Coupon
	err := v.DB.NewSelect().
		Model(&c).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reject(ReasonNotFound, "coupon code does not exist"), nil
		}
		return nil, err
	}

	if !c.Active {
		return reject(ReasonNotFound, "coupon code does not exist"), nil
	}
	if now.Before(c.ValidFrom) {
		return reject(ReasonNotActiveYet, fmt.Sprintf("coupon is not valid before %s", c.ValidFrom.Format("2006-01-02"))), nil
	}
	if now.After(c.ValidUntil) {
		return reject(ReasonExpired, fmt.Sprintf("coupon expired on %s", c.ValidUntil.Format("2006-01-02"))), nil
	}
	// The pickup itself must land inside the code's validity window;
	// a coupon expiring in five days cannot discount a stay two
	// months out.
	if req.PickupDate.Before(c.ValidFrom) || req.PickupDate.After(c.ValidUntil) {
		return reject(ReasonOutsideStayWindow, fmt.Sprintf("pickup date must fall between %s and %s",
			c.ValidFrom.Format("2006-01-02"), c.ValidUntil.Format("2006-01-02"))), nil
	}
	if c.StayFrom != nil && req.PickupDate.Before(*c.StayFrom) {
		return reject(ReasonOutsideStayWindow, "rental dates fall outside the coupon's stay window"), nil
	}
	if c.StayUntil != nil && req.DropoffDate.After(*c.StayUntil) {
		return reject(ReasonOutsideStayWindow, "rental dates fall outside the coupon's stay window"), nil
	}
	if c.MaxUses > 0 && c.CurrentUses >= c.MaxUses {
		return reject(ReasonExhausted, "coupon has no redemptions left"), nil
	}
	if c.MinDays > 0 && req.Days < c.MinDays {
		return reject(ReasonMinDaysNotMet, fmt.Sprintf("coupon requires a stay of at least %d days", c.MinDays)), nil
	}
	if c.MinAmount > 0 && req.Total < c.MinAmount {
		return reject(ReasonMinAmountNotMet, fmt.Sprintf("coupon requires a rental total of at least %.2f", c.MinAmount)), nil
	}

	discount := c.DiscountFor(req.Total)

	v.Log.Info("COUPON", fmt.Sprintf("Code %s valid, discount %.2f on total %.2f", code, discount, req.Total))

	return &Result{Valid: true, Discount: discount, Coupon: &c}, nil
}

// Redeem consumes one use of the coupon. The usage cap is enforced in
// the same statement, so two concurrent redemptions of a
// last-remaining use cannot both succeed.
func (v *Validator) Redeem(ctx context.Context, couponID string) error {
	res, err := v.DB.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("current_uses = current_uses + 1").
		Where("id = ?", couponID).
		Where("max_uses = 0 OR current_uses < max_uses").
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.PolicyViolation{Rule: ReasonExhausted, Message: "coupon has no redemptions left"}
	}

	v.Log.Info("COUPON", fmt.Sprintf("Redeemed coupon %s", couponID))
	return nil
}

func reject(reason, message string) *Result {
	return &Result{Valid: false, Reason: reason, Message: message}
}
