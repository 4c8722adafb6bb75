package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// PropertyBlock is an owner-placed closure over a half-open [StartDate, EndDate)
// window. It covers every site under the property; nights inside a block are
// never admissible regardless of capacity.
type PropertyBlock struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID uuid.UUID       `gorm:"column:property_id;type:uuid;not null;index"`
	StartDate  time.Time       `gorm:"column:start_date;type:date;not null"`
	EndDate    time.Time       `gorm:"column:end_date;type:date;not null"`
	Type       enums.BlockType `gorm:"column:type;type:block_type;not null"`
	Reason     *string         `gorm:"column:reason"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
