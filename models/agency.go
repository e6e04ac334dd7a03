package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AgencyType string

const (
	AgencyPublic  AgencyType = "public"
	AgencyPrivate AgencyType = "private"
)

func (t AgencyType) Valid() bool {
	return t == AgencyPublic || t == AgencyPrivate
}

// Agency (organismo) is the body a process is filed with.
type Agency struct {
	Base
	Name            string          `gorm:"not null;index" json:"name"`
	Type            AgencyType      `gorm:"type:varchar(20);not null" json:"type"`
	ContactName     string          `json:"contactName"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Website         string          `json:"website"`
	AvgResponseDays int             `json:"avgResponseDays"`
	AvgCost         decimal.Decimal `gorm:"type:decimal(12,2)" json:"avgCost"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
