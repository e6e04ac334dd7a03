package services

import (
	"context"
	"strconv"

	"customsdesk-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultVATPercent is the rate applied unless the configured one is
// switched on.
var DefaultVATPercent = decimal.NewFromInt(21)

const (
	settingCompanyName     = "company_name"
	settingVATPercent      = "vat_percent"
	settingApplyVAT        = "apply_configured_vat"
	settingRequireFile     = "require_file_for_validation"
	settingInvoiceDueDays  = "invoice_due_days"
	settingBudgetValidDays = "budget_valid_days"
)

type Settings struct {
	CompanyName              string          `json:"companyName"`
	VATPercent               decimal.Decimal `json:"vatPercent"`
	ApplyConfiguredVAT       bool            `json:"applyConfiguredVat"`
	RequireFileForValidation bool            `json:"requireFileForValidation"`
	InvoiceDueDays           int             `json:"invoiceDueDays"`
	BudgetValidDays          int             `json:"budgetValidDays"`
}

func DefaultSettings() Settings {
	return Settings{
		CompanyName:     "Despachante de Aduana",
		VATPercent:      DefaultVATPercent,
		InvoiceDueDays:  30,
		BudgetValidDays: 15,
	}
}

// EffectiveVAT is the rate new invoices and budgets are computed with.
func (s Settings) EffectiveVAT() decimal.Decimal {
	if s.ApplyConfiguredVAT {
		return s.VATPercent
	}
	return DefaultVATPercent
}

type SettingsInput struct {
	CompanyName              *string          `json:"companyName" validate:"omitempty,min=1,max=200"`
	VATPercent               *decimal.Decimal `json:"vatPercent"`
	ApplyConfiguredVAT       *bool            `json:"applyConfiguredVat"`
	RequireFileForValidation *bool            `json:"requireFileForValidation"`
	InvoiceDueDays           *int             `json:"invoiceDueDays" validate:"omitempty,min=0,max=365"`
	BudgetValidDays          *int             `json:"budgetValidDays" validate:"omitempty,min=1,max=365"`
}

type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	return s.read(s.db.WithContext(ctx))
}

// read loads the settings through db, which may be an open transaction.
func (s *SettingsService) read(db *gorm.DB) (Settings, error) {
	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return Settings{}, dbErr("load settings", err)
	}

	st := DefaultSettings()
	for _, r := range rows {
		switch r.Key {
		case settingCompanyName:
			st.CompanyName = r.Value
		case settingVATPercent:
			if d, err := decimal.NewFromString(r.Value); err == nil {
				st.VATPercent = d
			}
		case settingApplyVAT:
			st.ApplyConfiguredVAT, _ = strconv.ParseBool(r.Value)
		case settingRequireFile:
			st.RequireFileForValidation, _ = strconv.ParseBool(r.Value)
		case settingInvoiceDueDays:
			if n, err := strconv.Atoi(r.Value); err == nil {
				st.InvoiceDueDays = n
			}
		case settingBudgetValidDays:
			if n, err := strconv.Atoi(r.Value); err == nil {
				st.BudgetValidDays = n
			}
		}
	}
	return st, nil
}

func (s *SettingsService) Update(ctx context.Context, in SettingsInput) (Settings, error) {
	if err := validateInput(in); err != nil {
		return Settings{}, err
	}
	if in.VATPercent != nil && (in.VATPercent.IsNegative() || in.VATPercent.GreaterThan(decimal.NewFromInt(100))) {
		return Settings{}, invalid("vatPercent must be between 0 and 100")
	}

	var rows []models.Setting
	put := func(key, value string) { rows = append(rows, models.Setting{Key: key, Value: value}) }
	if in.CompanyName != nil {
		put(settingCompanyName, *in.CompanyName)
	}
	if in.VATPercent != nil {
		put(settingVATPercent, in.VATPercent.String())
	}
	if in.ApplyConfiguredVAT != nil {
		put(settingApplyVAT, strconv.FormatBool(*in.ApplyConfiguredVAT))
	}
	if in.RequireFileForValidation != nil {
		put(settingRequireFile, strconv.FormatBool(*in.RequireFileForValidation))
	}
	if in.InvoiceDueDays != nil {
		put(settingInvoiceDueDays, strconv.Itoa(*in.InvoiceDueDays))
	}
	if in.BudgetValidDays != nil {
		put(settingBudgetValidDays, strconv.Itoa(*in.BudgetValidDays))
	}

	if len(rows) > 0 {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&rows).Error
		if err != nil {
			return Settings{}, dbErr("save settings", err)
		}
	}
	return s.Get(ctx)
}
