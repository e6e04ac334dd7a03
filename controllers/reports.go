package controllers

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportController handles the reporting and export endpoints.
type ReportController struct {
	Reports *services.ReportService
}

func attachment(c *gin.Context, name, ext string) {
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().Format("20060102"), ext)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// Processes builds the processes report
func (rc *ReportController) Processes(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	report, err := rc.Reports.Processes(c.Request.Context(), f, queryInt(c, "top", 5))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ProcessesCSV exports the processes report as CSV
func (rc *ReportController) ProcessesCSV(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	ps, err := rc.Reports.ProcessRows(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := services.WriteProcessesCSV(&buf, ps); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "procesos", "csv")
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

// ProcessesXLSX exports the processes report as a spreadsheet
func (rc *ReportController) ProcessesXLSX(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	ps, err := rc.Reports.ProcessRows(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	book, err := services.ProcessesXLSX(ps)
	if err != nil {
		respondErr(c, err)
		return
	}
	defer book.Close()
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "procesos", "xlsx")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Invoices builds the invoices report
func (rc *ReportController) Invoices(c *gin.Context) {
	clientID, ok := queryUUID(c, "clientId")
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	report, err := rc.Reports.Invoices(c.Request.Context(), services.InvoiceFilter{
		Type:     models.InvoiceType(c.Query("type")),
		ClientID: clientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// TemplatesCSV exports the templates as CSV
func (rc *ReportController) TemplatesCSV(c *gin.Context) {
	ts, err := rc.Reports.Templates(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := services.WriteTemplatesCSV(&buf, ts); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "plantillas", "csv")
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

// Dashboard returns the dashboard summary
func (rc *ReportController) Dashboard(c *gin.Context) {
	d, err := rc.Reports.Dashboard(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
