package enums

import "fmt"

// BlockType classifies an owner-placed availability block on a site.
type BlockType string

const (
	BlockTypeMaintenance     BlockType = "maintenance"
	BlockTypeOwnerUse        BlockType = "owner_use"
	BlockTypeSeasonalClosure BlockType = "seasonal_closure"
)

var validBlockTypes = []BlockType{
	BlockTypeMaintenance,
	BlockTypeOwnerUse,
	BlockTypeSeasonalClosure,
}

// String implements fmt.Stringer.
func (b BlockType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BlockType.
func (b BlockType) IsValid() bool {
	for _, candidate := range validBlockTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBlockType converts raw input into a BlockType.
func ParseBlockType(value string) (BlockType, error) {
	for _, candidate := range validBlockTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid block type %q", value)
}
