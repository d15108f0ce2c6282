package model

import (
	"time"
)

// BaseModel 不带软删除：内容树依赖硬删除和唯一约束
// swagger:model
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
