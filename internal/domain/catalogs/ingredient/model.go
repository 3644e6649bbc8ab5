// Package ingredient provides the ingredient catalog.
// Ingredients are created once with zero quantity and never deleted, only
// hidden. The cached quantity is maintained by the ledger engine and must
// always equal the sum of the ingredient's live batch remainders.
package ingredient

import (
	"context"

	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/entity"
	"mise/internal/core/types"
)

// Unit is the unit of measure for an ingredient.
type Unit string

const (
	UnitKilograms   Unit = "kg"
	UnitGrams       Unit = "grams"
	UnitPieces      Unit = "pieces"
	UnitLiters      Unit = "liters"
	UnitCups        Unit = "cups"
	UnitTablespoons Unit = "tablespoons"
)

// unitClass groups units that can be converted into each other.
type unitClass string

const (
	classMass   unitClass = "mass"
	classVolume unitClass = "volume"
	classCount  unitClass = "count"
)

// conversionFactor is the multiplier to the class base unit (kg for mass,
// liter for volume). Cup and tablespoon follow the metric kitchen
// convention (250 ml and 15 ml).
var unitInfo = map[Unit]struct {
	class  unitClass
	factor decimal.Decimal
}{
	UnitKilograms:   {classMass, decimal.NewFromInt(1)},
	UnitGrams:       {classMass, decimal.RequireFromString("0.001")},
	UnitPieces:      {classCount, decimal.NewFromInt(1)},
	UnitLiters:      {classVolume, decimal.NewFromInt(1)},
	UnitCups:        {classVolume, decimal.RequireFromString("0.25")},
	UnitTablespoons: {classVolume, decimal.RequireFromString("0.015")},
}

// IsValid reports whether u is a known unit of measure.
func (u Unit) IsValid() bool {
	_, ok := unitInfo[u]
	return ok
}

// ConvertTo converts a quantity expressed in u into the target unit.
// Fails when the units measure different things (mass vs volume vs count).
func (u Unit) ConvertTo(qty decimal.Decimal, target Unit) (decimal.Decimal, error) {
	src, ok := unitInfo[u]
	if !ok {
		return decimal.Zero, apperror.NewValidation("unknown unit of measure").
			WithDetail("unit", string(u))
	}
	dst, ok := unitInfo[target]
	if !ok {
		return decimal.Zero, apperror.NewValidation("unknown unit of measure").
			WithDetail("unit", string(target))
	}
	if src.class != dst.class {
		return decimal.Zero, apperror.NewValidation("cannot convert between different unit classes").
			WithDetail("source", string(u)).
			WithDetail("target", string(target))
	}

	// qty * source.factor / target.factor
	result := qty.Mul(src.factor).Div(dst.factor)
	return result.Round(4), nil
}

// Ingredient represents a stocked ingredient.
type Ingredient struct {
	entity.BaseDocument

	Name string `db:"name" json:"name"`
	Unit Unit   `db:"unit" json:"unit"`

	// CurrentQuantity is the cached ledger balance. It is not an
	// independent source of truth: after every mutation it must equal the
	// sum of remaining quantities of the ingredient's live batches.
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`

	// Hidden marks ingredients removed from the catalog UI.
	// Ledger history always survives hiding.
	Hidden bool `db:"hidden" json:"hidden"`
}

// New creates a new Ingredient with zero quantity.
func New(name string, unit Unit) *Ingredient {
	return &Ingredient{
		BaseDocument: entity.NewBaseDocument(),
		Name:         name,
		Unit:         unit,
	}
}

// Validate implements entity self-validation.
func (i *Ingredient) Validate(ctx context.Context) error {
	if i.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if !i.Unit.IsValid() {
		return apperror.NewValidation("invalid unit of measure").
			WithDetail("field", "unit").
			WithDetail("value", string(i.Unit))
	}

	return nil
}
