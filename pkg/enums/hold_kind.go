package enums

import "fmt"

// HoldKind identifies which resource a hold reserved.
type HoldKind string

const (
	HoldKindSiteWindow   HoldKind = "site_window"
	HoldKindProductStock HoldKind = "product_stock"
)

var validHoldKinds = []HoldKind{
	HoldKindSiteWindow,
	HoldKindProductStock,
}

// String implements fmt.Stringer.
func (h HoldKind) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HoldKind.
func (h HoldKind) IsValid() bool {
	for _, candidate := range validHoldKinds {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHoldKind converts raw input into a HoldKind.
func ParseHoldKind(value string) (HoldKind, error) {
	for _, candidate := range validHoldKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid hold kind %q", value)
}
