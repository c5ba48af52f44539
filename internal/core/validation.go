package core

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// priceScale is the number of fractional digits stored for unit prices.
const priceScale = 2

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate runs struct-tag validation and converts the first failure into a *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "email":
		return invalid(fe.Field(), "must be a valid email address")
	case "max":
		return invalid(fe.Field(), "must be at most %s characters", fe.Param())
	default:
		return invalid(fe.Field(), "failed %q check", fe.Tag())
	}
}

// ValidateQuantity requires 1 <= q <= MaxInt32, the range of the quantity column.
func ValidateQuantity(q int) error {
	if q < 1 {
		return invalid("quantity", "must be a positive integer")
	}
	if q > math.MaxInt32 {
		return invalid("quantity", "must be at most %d", math.MaxInt32)
	}
	return nil
}

// Column limits: unit prices are NUMERIC(12,2), invoice totals NUMERIC(14,2).
var (
	maxUnitPrice    = decimal.New(1, 10)
	maxInvoiceTotal = decimal.New(1, 12)
)

// minPriceExponent bounds how many fractional digits a price may be written with.
const minPriceExponent = -64

// ValidatePrice requires 0 <= p < 10^10 with at most two fractional digits. The
// exponent is bounded before any arithmetic, which would otherwise materialise 1e50000000.
func ValidatePrice(field string, p decimal.Decimal) error {
	if p.Exponent() > 10 {
		return invalid(field, "must be less than %s", maxUnitPrice)
	}
	if p.Exponent() < minPriceExponent {
		return invalid(field, "must have at most %d decimal places", priceScale)
	}
	if p.IsNegative() {
		return invalid(field, "must not be negative")
	}
	if p.Cmp(maxUnitPrice) >= 0 {
		return invalid(field, "must be less than %s", maxUnitPrice)
	}
	if !p.Equal(p.Truncate(priceScale)) {
		return invalid(field, "must have at most %d decimal places", priceScale)
	}
	return nil
}

// validateTotal rejects invoice totals the total column cannot store.
func validateTotal(total decimal.Decimal) error {
	if total.Abs().Cmp(maxInvoiceTotal) >= 0 {
		return invalid("total", "must be less than %s", maxInvoiceTotal)
	}
	return nil
}

// prepareCatalogItem trims a catalog item payload in place and validates it.
func prepareCatalogItem(in *CatalogItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = normalizeOptional(in.Description)
	if err := Validate(*in); err != nil {
		return err
	}
	return ValidatePrice("unit_price", *in.UnitPrice)
}

func validateLineInput(in LineInput) error {
	if in.ItemID <= 0 {
		return invalid("item_id", "is required")
	}
	if in.Quantity != nil {
		if err := ValidateQuantity(*in.Quantity); err != nil {
			return err
		}
	}
	if in.UnitPrice != nil {
		if err := ValidatePrice("unit_price", *in.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func validateLinePatch(p LinePatch) error {
	if p.Quantity != nil {
		if err := ValidateQuantity(*p.Quantity); err != nil {
			return err
		}
	}
	if p.UnitPrice != nil {
		if err := ValidatePrice("unit_price", *p.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

// NormalizePhone parses a phone number against the default region and returns its
// E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsPossibleNumber(num) {
		return "", invalid("phone", "%q is not a valid phone number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// normalizeOptional trims s and maps empty strings to nil.
func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
