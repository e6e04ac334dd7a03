package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxCategory string

const (
	TaxRegistered    TaxCategory = "registered"
	TaxSimplified    TaxCategory = "simplified"
	TaxExempt        TaxCategory = "exempt"
	TaxFinalConsumer TaxCategory = "final-consumer"
)

func (t TaxCategory) Valid() bool {
	switch t {
	case TaxRegistered, TaxSimplified, TaxExempt, TaxFinalConsumer:
		return true
	}
	return false
}

type Client struct {
	Base
	Name        string      `gorm:"not null" json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Address     string      `json:"address"`
	TaxID       string      `gorm:"index" json:"taxId"`
	TaxCategory TaxCategory `gorm:"type:varchar(20);not null" json:"taxCategory"`
	IsActive    bool        `gorm:"not null" json:"isActive"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ClientRef is either a known client (by id) or a free-text name kept
// on documents issued to parties that are not registered clients.
type ClientRef struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
}

func KnownClient(c Client) ClientRef {
	id := c.ID
	return ClientRef{ID: &id, Name: c.Name}
}

func DenormalizedClient(name string) ClientRef {
	return ClientRef{Name: name}
}

func (r ClientRef) IsKnown() bool {
	return r.ID != nil && *r.ID != uuid.Nil
}
