package enums

// ConflictReason explains why an admission attempt was refused.
type ConflictReason string

const (
	ConflictDatesUnavailable ConflictReason = "DATES_UNAVAILABLE"
	ConflictOutOfStock       ConflictReason = "OUT_OF_STOCK"
	ConflictCapacityExceeded ConflictReason = "CAPACITY_EXCEEDED"
)

var validConflictReasons = []ConflictReason{
	ConflictDatesUnavailable,
	ConflictOutOfStock,
	ConflictCapacityExceeded,
}

// String implements fmt.Stringer.
func (c ConflictReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConflictReason.
func (c ConflictReason) IsValid() bool {
	for _, candidate := range validConflictReasons {
		if candidate == c {
			return true
		}
	}
	return false
}
