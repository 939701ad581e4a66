package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is the catalog entity maintained by the administrator. Bills copy
// product data at add-time; deleting or editing a product never touches bills
// already being assembled.
type Product struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"not null;index" json:"name"`
	Category    string  `gorm:"not null;index" json:"category"`
	Price       float64 `gorm:"not null" json:"price"`
	Description string  `json:"description,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
