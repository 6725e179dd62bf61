// Package mapping converts cart lines into the platform line items a
// pending order is built from: resolved variant identifiers, charged
// prices, and the custom attributes carried on each line.
package mapping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
)

// Attribute is a key/value annotation on a mapped line. The commerce
// platform renders these to fulfillment staff as line item properties.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MappedLine is a cart line resolved against the platform catalog and
// priced by the allocator, ready for order and payment payloads.
type MappedLine struct {
	VariantGID  string      `json:"variant_gid"` // gid://shopify/ProductVariant/N
	VariantID   int64       `json:"variant_id"`  // numeric ID for the Admin API
	Title       string      `json:"title"`
	Quantity    int         `json:"quantity"`
	Price       string      `json:"price"`        // charged unit price, major units
	ChargedUnit float64     `json:"charged_unit"` // charged unit price, minor units
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Bundle summarizes the promotion applied to the cart. Its attributes are
// attached to the first mapped line only, so the metadata appears once per
// order rather than once per line.
type Bundle struct {
	Active           bool
	Savings          int64 // minor units
	ShippingIncluded bool
}

// MapLines resolves every cart line to its platform variant and attaches
// charged prices and attributes. A line whose chosen size has no matching
// variant aborts the whole mapping: substituting silently would ship the
// wrong product.
func MapLines(allocs []pricing.Allocation, bundle Bundle) ([]MappedLine, error) {
	mapped := make([]MappedLine, 0, len(allocs))
	first := true

	for _, a := range allocs {
		l := a.Line

		if err := l.Customization.Validate(); err != nil {
			return nil, model.NewInvalidCartError(fmt.Sprintf("personalization for %q: %v", l.Name, err))
		}

		variant := FindVariantBySize(l.Variants, l.Size)
		if variant == nil {
			return nil, model.NewVariantNotFoundError(l.Name, l.Size)
		}

		numericID, err := ExtractNumericID(variant.ID)
		if err != nil {
			return nil, model.NewInvalidCartError(fmt.Sprintf("variant id %q: %v", variant.ID, err))
		}

		m := MappedLine{
			VariantGID:  variant.ID,
			VariantID:   numericID,
			Title:       lineTitle(l),
			Quantity:    l.Quantity,
			Price:       model.FormatCentsF(a.ChargedUnit),
			ChargedUnit: a.ChargedUnit,
		}

		if c := l.Customization; c != nil {
			if c.Name != "" {
				m.Attributes = append(m.Attributes, Attribute{Key: "Personalización - Nombre", Value: c.Name})
			}
			if c.Number != nil {
				m.Attributes = append(m.Attributes, Attribute{Key: "Personalización - Número", Value: strconv.Itoa(*c.Number)})
			}
		}

		// Bundle summary goes on the first line only.
		if bundle.Active && first {
			m.Attributes = append(m.Attributes,
				Attribute{Key: "Pack promocional", Value: "Activado"},
				Attribute{Key: "Ahorro total", Value: "ARS $" + strconv.FormatInt(model.MajorUnits(bundle.Savings), 10)},
			)
			if bundle.ShippingIncluded {
				m.Attributes = append(m.Attributes, Attribute{Key: "Envío", Value: "GRATIS incluido"})
			}
			first = false
		}

		mapped = append(mapped, m)
	}

	if len(mapped) == 0 {
		return nil, model.NewInvalidCartError("no mappable lines in cart")
	}
	return mapped, nil
}

// FindVariantBySize returns the variant whose title matches the chosen size,
// or nil if none matches. Titles may be plain ("M") or composite
// ("M / Blue"); matching is case-insensitive on the whole title and on each
// composite segment.
func FindVariantBySize(variants []model.Variant, size string) *model.Variant {
	want := strings.ToLower(strings.TrimSpace(size))
	if want == "" {
		return nil
	}

	for i := range variants {
		title := strings.ToLower(strings.TrimSpace(variants[i].Title))
		if title == want {
			return &variants[i]
		}
		for _, part := range strings.Split(title, "/") {
			if strings.TrimSpace(part) == want {
				return &variants[i]
			}
		}
	}
	return nil
}

// gidTail matches the trailing numeric ID of a platform GID.
var gidTail = regexp.MustCompile(`/(\d+)$`)

// ExtractNumericID converts a platform GID to its numeric identifier.
// gid://shopify/ProductVariant/123456 → 123456. Bare numeric strings are
// accepted as-is.
func ExtractNumericID(gid string) (int64, error) {
	if m := gidTail.FindStringSubmatch(gid); m != nil {
		return strconv.ParseInt(m[1], 10, 64)
	}
	id, err := strconv.ParseInt(gid, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a variant GID or numeric ID")
	}
	return id, nil
}

// lineTitle builds the order line title from name, size, and color.
func lineTitle(l model.CartLine) string {
	title := l.Name
	if title == "" {
		title = "Product"
	}
	if l.Size != "" {
		title += " - Size " + l.Size
	}
	if l.Color != "" {
		title += " - " + l.Color
	}
	return title
}
