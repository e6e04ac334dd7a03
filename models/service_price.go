package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServicePrice is an entry of the brokerage price list.
type ServicePrice struct {
	Base
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Category    string          `gorm:"index" json:"category"`
	IsActive    bool            `gorm:"not null" json:"isActive"`
	LastUpdated time.Time       `json:"lastUpdated"`

	History []PriceHistory `gorm:"foreignKey:ServicePriceID" json:"history,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PriceHistory records every price a service had. Rows are never edited.
type PriceHistory struct {
	Base
	ServicePriceID uuid.UUID       `gorm:"type:uuid;index;not null" json:"servicePriceId"`
	Date           time.Time       `json:"date"`
	Price          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Reason         string          `json:"reason"`
}
