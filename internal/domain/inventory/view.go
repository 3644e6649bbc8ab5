// Package inventory provides the read-only aggregate view over the batch
// store: per-ingredient current quantity, nearest expiry and the quantity
// expiring on that date. Views are derived on read; the batch store and
// the cached ingredient quantity are the sources.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
)

// ExpiryBucket classifies how urgent the nearest expiry is, for dashboards.
type ExpiryBucket string

const (
	BucketExpired  ExpiryBucket = "expired"  // nearest expiry in the past
	BucketCritical ExpiryBucket = "critical" // 0-3 days
	BucketWarning  ExpiryBucket = "warning"  // 4-7 days
	BucketNotice   ExpiryBucket = "notice"   // 8-14 days
	BucketNormal   ExpiryBucket = "normal"   // beyond 14 days
	BucketNone     ExpiryBucket = "none"     // no tracked expiry
)

// View is the derived inventory state for one ingredient.
type View struct {
	IngredientID id.ID           `json:"ingredientId"`
	Name         string          `json:"name"`
	Unit         ingredient.Unit `json:"unit"`

	// CurrentQuantity is the cached ledger balance; it equals the sum of
	// live batch remainders.
	CurrentQuantity types.Quantity `json:"currentQuantity"`

	// NearestExpiry is the minimum expiry date among live batches with a
	// tracked expiry; nil when none have one.
	NearestExpiry *time.Time `json:"nearestExpiry,omitempty"`

	// ExpiringQuantity is the total remaining in batches sharing the
	// nearest expiry date.
	ExpiringQuantity types.Quantity `json:"expiringQuantity"`

	// DaysUntilExpiry is nil without a tracked expiry, negative when past.
	DaysUntilExpiry *int `json:"daysUntilExpiry,omitempty"`

	Bucket ExpiryBucket `json:"bucket"`
}

// InUnit returns a copy of the view with its quantities re-expressed in
// the target unit. The ingredient's own unit stays authoritative in
// storage; this is a read-side conversion for display. Fails when the
// target measures a different thing (mass vs volume vs count).
func (v *View) InUnit(target ingredient.Unit) (*View, error) {
	if target == v.Unit {
		return v, nil
	}

	current, err := v.Unit.ConvertTo(toDecimal(v.CurrentQuantity), target)
	if err != nil {
		return nil, err
	}
	expiring, err := v.Unit.ConvertTo(toDecimal(v.ExpiringQuantity), target)
	if err != nil {
		return nil, err
	}

	out := *v
	out.Unit = target
	out.CurrentQuantity = fromDecimal(current)
	out.ExpiringQuantity = fromDecimal(expiring)
	return &out, nil
}

// toDecimal and fromDecimal bridge the fixed-point quantity (scale 1e4)
// to decimal arithmetic. ConvertTo rounds to four places, so the round
// trip is exact.
func toDecimal(q types.Quantity) decimal.Decimal {
	return decimal.New(q.Int64Scaled(), -4)
}

func fromDecimal(d decimal.Decimal) types.Quantity {
	return types.Quantity(d.Shift(4).IntPart())
}

// bucketFor maps days-until-expiry onto the dashboard buckets.
func bucketFor(days *int) ExpiryBucket {
	if days == nil {
		return BucketNone
	}
	switch d := *days; {
	case d < 0:
		return BucketExpired
	case d <= 3:
		return BucketCritical
	case d <= 7:
		return BucketWarning
	case d <= 14:
		return BucketNotice
	default:
		return BucketNormal
	}
}
