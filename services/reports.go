package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const reportDateLayout = "2006-01-02"

type StateCount struct {
	State models.ProcessState `json:"state"`
	Label string              `json:"label"`
	Count int                 `json:"count"`
}

type AgencyCount struct {
	AgencyID uuid.UUID `json:"agencyId"`
	Name     string    `json:"name"`
	Count    int       `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// ProcessReport holds the rollups shown on the processes report.
type ProcessReport struct {
	Total             int             `json:"total"`
	ByState           []StateCount    `json:"byState"`
	TopAgencies       []AgencyCount   `json:"topAgencies"`
	ByMonth           []MonthCount    `json:"byMonth"`
	AvgProcessingDays float64         `json:"avgProcessingDays"`
	SuccessRate       float64         `json:"successRate"`
	TotalCost         decimal.Decimal `json:"totalCost"`
	AvgCost           decimal.Decimal `json:"avgCost"`
}

type InvoiceReport struct {
	Count         int                          `json:"count"`
	Billed        decimal.Decimal              `json:"billed"`
	Paid          decimal.Decimal              `json:"paid"`
	Pending       decimal.Decimal              `json:"pending"`
	Overdue       decimal.Decimal              `json:"overdue"`
	CountByStatus map[models.InvoiceStatus]int `json:"countByStatus"`
}

// CountByState returns one entry per workflow state, zero counts included.
func CountByState(ps []models.Process) []StateCount {
	counts := make(map[models.ProcessState]int, len(models.ProcessStates))
	for _, p := range ps {
		counts[p.State]++
	}
	out := make([]StateCount, 0, len(models.ProcessStates))
	for _, st := range models.ProcessStates {
		out = append(out, StateCount{State: st, Label: st.Label(), Count: counts[st]})
	}
	return out
}

// TopAgencies ranks agencies by how many processes reference them.
// Ties keep name order so the output is stable.
func TopAgencies(ps []models.Process, n int) []AgencyCount {
	idx := map[uuid.UUID]int{}
	var out []AgencyCount
	for _, p := range ps {
		i, ok := idx[p.AgencyID]
		if !ok {
			name := ""
			if p.Agency != nil {
				name = p.Agency.Name
			}
			out = append(out, AgencyCount{AgencyID: p.AgencyID, Name: name})
			i = len(out) - 1
			idx[p.AgencyID] = i
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Name < out[b].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CountByStartMonth buckets processes by YYYY-MM of their start date, oldest first.
func CountByStartMonth(ps []models.Process) []MonthCount {
	counts := map[string]int{}
	for _, p := range ps {
		counts[utils.MonthKey(p.StartDate)]++
	}
	out := make([]MonthCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, MonthCount{Month: m, Count: c})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Month < out[b].Month })
	return out
}

// AverageProcessingDays is the mean of due minus start, in days, over
// approved processes that have a due date.
func AverageProcessingDays(ps []models.Process) float64 {
	var sum float64
	var n int
	for _, p := range ps {
		if p.State != models.StateApproved || p.DueDate == nil {
			continue
		}
		sum += p.DueDate.Sub(p.StartDate).Hours() / 24
		n++
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

// SuccessRate is approved over total as a fraction in 0..1.
func SuccessRate(ps []models.Process) float64 {
	if len(ps) == 0 {
		return 0
	}
	approved := 0
	for _, p := range ps {
		if p.State == models.StateApproved {
			approved++
		}
	}
	return float64(approved) / float64(len(ps))
}

func AverageCost(ps []models.Process) decimal.Decimal {
	if len(ps) == 0 {
		return decimal.Zero
	}
	return sumCost(ps).Div(decimal.NewFromInt(int64(len(ps)))).Round(2)
}

func sumCost(ps []models.Process) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(p.Cost)
	}
	return total
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func BuildProcessReport(ps []models.Process, topN int) ProcessReport {
	return ProcessReport{
		Total:             len(ps),
		ByState:           CountByState(ps),
		TopAgencies:       TopAgencies(ps, topN),
		ByMonth:           CountByStartMonth(ps),
		AvgProcessingDays: AverageProcessingDays(ps),
		SuccessRate:       SuccessRate(ps),
		TotalCost:         sumCost(ps),
		AvgCost:           AverageCost(ps),
	}
}

// BuildInvoiceReport totals invoices by status. Cancelled invoices are
// counted but never billed.
func BuildInvoiceReport(invs []models.Invoice) InvoiceReport {
	r := InvoiceReport{
		Count:         len(invs),
		Billed:        decimal.Zero,
		Paid:          decimal.Zero,
		Pending:       decimal.Zero,
		Overdue:       decimal.Zero,
		CountByStatus: map[models.InvoiceStatus]int{},
	}
	for _, inv := range invs {
		r.CountByStatus[inv.Status]++
		switch inv.Status {
		case models.InvoiceCancelled:
			continue
		case models.InvoicePaid:
			r.Paid = r.Paid.Add(inv.Total)
		case models.InvoiceOverdue:
			r.Overdue = r.Overdue.Add(inv.Total)
		default:
			r.Pending = r.Pending.Add(inv.Total)
		}
		r.Billed = r.Billed.Add(inv.Total)
	}
	return r
}

var processCSVHeader = []string{"Cliente", "Tipo", "Organismo", "Estado", "Fecha inicio", "Vencimiento", "Progreso %", "Costo"}

// WriteProcessesCSV writes a header row plus one row per process.
func WriteProcessesCSV(w io.Writer, ps []models.Process) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(processCSVHeader); err != nil {
		return err
	}
	for _, p := range ps {
		if err := cw.Write(processRow(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func processRow(p models.Process) []string {
	client, agency, due := "", "", ""
	if p.Client != nil {
		client = p.Client.Name
	}
	if p.Agency != nil {
		agency = p.Agency.Name
	}
	if p.DueDate != nil {
		due = p.DueDate.Format(reportDateLayout)
	}
	return []string{
		client,
		p.Title,
		agency,
		p.State.Label(),
		p.StartDate.Format(reportDateLayout),
		due,
		fmt.Sprint(p.Progress),
		p.Cost.StringFixed(2),
	}
}

// WriteTemplatesCSV exports the template catalogue with its document lists.
func WriteTemplatesCSV(w io.Writer, ts []models.Template) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Plantilla", "Organismo", "Documentos requeridos", "Días estimados", "Costo estimado"}); err != nil {
		return err
	}
	for _, t := range ts {
		agency := ""
		if t.Agency != nil {
			agency = t.Agency.Name
		}
		row := []string{
			t.Name,
			agency,
			strings.Join(t.RequiredDocuments, "; "),
			fmt.Sprint(t.EstimatedDays),
			t.EstimatedCost.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ProcessesXLSX renders the same rows as WriteProcessesCSV into a workbook.
func ProcessesXLSX(ps []models.Process) (*excelize.File, error) {
	const sheet = "Sheet1"
	f := excelize.NewFile()
	for i, h := range processCSVHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for r, p := range ps {
		row := processRow(p)
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			var value any = v
			switch i {
			case 6:
				value = p.Progress
			case 7:
				value = p.Cost.InexactFloat64()
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// Dashboard is the landing page summary.
type Dashboard struct {
	ActiveClients       int64           `json:"activeClients"`
	OpenProcesses       int             `json:"openProcesses"`
	OverdueProcesses    int             `json:"overdueProcesses"`
	DueThisWeek         int             `json:"dueThisWeek"`
	ByState             []StateCount    `json:"byState"`
	MonthBilled         decimal.Decimal `json:"monthBilled"`
	MonthGrowth         float64         `json:"monthGrowth"`
	QuarterBilled       decimal.Decimal `json:"quarterBilled"`
	QuarterGrowth       float64         `json:"quarterGrowth"`
	PendingInvoices     decimal.Decimal `json:"pendingInvoices"`
	OpenBudgets         int64           `json:"openBudgets"`
	UnreadNotifications int64           `json:"unreadNotifications"`
}

func quarterStart(t time.Time) time.Time {
	quarter := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, t.Location())
}

// GrowthPercentage compares two periods; growth from nothing counts as 100%.
func GrowthPercentage(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	return round1(current.Sub(previous).Div(previous).InexactFloat64() * 100)
}

// billedBetween sums non-cancelled invoice totals issued in [from, to).
func billedBetween(invs []models.Invoice, from, to time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invs {
		if inv.Status == models.InvoiceCancelled {
			continue
		}
		if !inv.IssueDate.Before(from) && inv.IssueDate.Before(to) {
			total = total.Add(inv.Total)
		}
	}
	return total
}

// BuildDashboard fills the collection-derived parts of the summary.
func BuildDashboard(ps []models.Process, invs []models.Invoice, at time.Time) Dashboard {
	d := Dashboard{ByState: CountByState(ps)}
	weekEnd := utils.EndOfDay(at.AddDate(0, 0, 7))
	for _, p := range ps {
		if p.State.Terminal() {
			continue
		}
		d.OpenProcesses++
		if p.IsOverdue(at) {
			d.OverdueProcesses++
		} else if p.DueDate != nil && !p.DueDate.After(weekEnd) {
			d.DueThisWeek++
		}
	}

	month := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	d.MonthBilled = billedBetween(invs, month, month.AddDate(0, 1, 0))
	d.MonthGrowth = GrowthPercentage(d.MonthBilled, billedBetween(invs, month.AddDate(0, -1, 0), month))

	quarter := quarterStart(at)
	d.QuarterBilled = billedBetween(invs, quarter, quarter.AddDate(0, 3, 0))
	d.QuarterGrowth = GrowthPercentage(d.QuarterBilled, billedBetween(invs, quarter.AddDate(0, -3, 0), quarter))

	rollup := BuildInvoiceReport(invs)
	d.PendingInvoices = rollup.Pending.Add(rollup.Overdue)
	return d
}

type ReportService struct {
	db        *gorm.DB
	processes *ProcessService
	invoices  *InvoiceService
	templates *TemplateService
	notes     *NotificationService
}

func NewReportService(db *gorm.DB, processes *ProcessService, invoices *InvoiceService, templates *TemplateService, notes *NotificationService) *ReportService {
	return &ReportService{db: db, processes: processes, invoices: invoices, templates: templates, notes: notes}
}

func (s *ReportService) Processes(ctx context.Context, f ProcessFilter, topN int) (ProcessReport, error) {
	ps, err := s.processes.List(ctx, f)
	if err != nil {
		return ProcessReport{}, err
	}
	return BuildProcessReport(ps, topN), nil
}

func (s *ReportService) ProcessRows(ctx context.Context, f ProcessFilter) ([]models.Process, error) {
	return s.processes.List(ctx, f)
}

func (s *ReportService) Invoices(ctx context.Context, f InvoiceFilter) (InvoiceReport, error) {
	invs, err := s.invoices.List(ctx, f)
	if err != nil {
		return InvoiceReport{}, err
	}
	return BuildInvoiceReport(invs), nil
}

func (s *ReportService) Templates(ctx context.Context) ([]models.Template, error) {
	return s.templates.List(ctx, nil)
}

func (s *ReportService) Dashboard(ctx context.Context) (Dashboard, error) {
	ps, err := s.processes.List(ctx, ProcessFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	invs, err := s.invoices.List(ctx, InvoiceFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	d := BuildDashboard(ps, invs, timeNow())

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Client{}).Where("is_active = ?", true).Count(&d.ActiveClients).Error; err != nil {
		return Dashboard{}, dbErr("count clients", err)
	}
	if err := db.Model(&models.Budget{}).
		Where("status IN ?", []models.BudgetStatus{models.BudgetDraft, models.BudgetSent}).
		Count(&d.OpenBudgets).Error; err != nil {
		return Dashboard{}, dbErr("count budgets", err)
	}
	if d.UnreadNotifications, err = s.notes.UnreadCount(ctx); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
