package controllers

import (
	"net/http"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
)

type ProcessController struct {
	Processes *services.ProcessService
}

type progressInput struct {
	Progress *int  `json:"progress"`
	Auto     *bool `json:"auto"`
}

type commentInput struct {
	Author  string `json:"author"`
	Content string `json:"content" binding:"required"`
}

type invoicedInput struct {
	Invoiced bool `json:"invoiced"`
}

// processFilter reads the list filters shared by the list, board and report endpoints.
func processFilter(c *gin.Context) (services.ProcessFilter, bool) {
	f := services.ProcessFilter{
		Priority: models.Priority(c.Query("priority")),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
	}
	if v := c.Query("state"); v != "" {
		st, err := models.ParseProcessState(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, err.Error())
			return f, false
		}
		f.State = st
	}
	var ok bool
	if f.ClientID, ok = queryUUID(c, "clientId"); !ok {
		return f, false
	}
	if f.AgencyID, ok = queryUUID(c, "agencyId"); !ok {
		return f, false
	}
	if f.BudgetID, ok = queryUUID(c, "budgetId"); !ok {
		return f, false
	}
	if f.DueFrom, ok = queryDate(c, "dueFrom"); !ok {
		return f, false
	}
	if f.DueTo, ok = queryDate(c, "dueTo"); !ok {
		return f, false
	}
	if f.DueTo != nil {
		end := utils.EndOfDay(*f.DueTo)
		f.DueTo = &end
	}
	if f.Invoiced, ok = queryBool(c, "invoiced"); !ok {
		return f, false
	}
	return f, true
}

// Create creates a process, optionally from a template
func (pc *ProcessController) Create(c *gin.Context) {
	var input services.CreateProcessInput
	if !bindJSON(c, &input) {
		return
	}
	proc, err := pc.Processes.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, proc)
}

// List retrieves processes matching the query filters
func (pc *ProcessController) List(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	ps, err := pc.Processes.List(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	now := time.Now()
	out := make([]services.ProcessDetail, len(ps))
	for i, p := range ps {
		out[i] = services.NewProcessDetail(p, now)
	}
	c.JSON(http.StatusOK, out)
}

// Get retrieves a process with its documents and comments
func (pc *ProcessController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	proc, err := pc.Processes.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// Update updates an existing process
func (pc *ProcessController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateProcessInput
	if !bindJSON(c, &input) {
		return
	}
	proc, err := pc.Processes.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// ChangeState moves a process to another workflow state
func (pc *ProcessController) ChangeState(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.ChangeStateInput
	if !bindJSON(c, &input) {
		return
	}
	proc, err := pc.Processes.ChangeState(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// SetProgress takes either a manual value or an auto flag.
func (pc *ProcessController) SetProgress(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input progressInput
	if !bindJSON(c, &input) {
		return
	}
	var (
		proc services.ProcessDetail
		err  error
	)
	switch {
	case input.Auto != nil:
		proc, err = pc.Processes.SetAutoProgress(c.Request.Context(), id, *input.Auto)
	case input.Progress != nil:
		proc, err = pc.Processes.SetProgress(c.Request.Context(), id, *input.Progress)
	default:
		utils.RespondWithError(c, http.StatusBadRequest, "progress or auto is required")
		return
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// AddComment adds a comment to a process
func (pc *ProcessController) AddComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input commentInput
	if !bindJSON(c, &input) {
		return
	}
	comment, err := pc.Processes.AddComment(c.Request.Context(), id, input.Author, input.Content)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// MarkInvoiced flags a process as invoiced
func (pc *ProcessController) MarkInvoiced(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input invoicedInput
	if !bindJSON(c, &input) {
		return
	}
	proc, err := pc.Processes.MarkInvoiced(c.Request.Context(), id, input.Invoiced)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// Delete soft deletes a process
func (pc *ProcessController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pc.Processes.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Process deleted successfully"})
}

// Restore brings back a process deleted within the undo window
func (pc *ProcessController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	proc, err := pc.Processes.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, proc)
}

// Board groups processes into one column per state
func (pc *ProcessController) Board(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	board, err := pc.Processes.Board(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// ByClient groups processes by client
func (pc *ProcessController) ByClient(c *gin.Context) {
	f, ok := processFilter(c)
	if !ok {
		return
	}
	groups, err := pc.Processes.ByClient(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Calendar defaults to the current month when no range is given.
func (pc *ProcessController) Calendar(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	now := time.Now()
	if from == nil {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		from = &first
	}
	if to == nil {
		last := from.AddDate(0, 1, -1)
		to = &last
	}
	days, err := pc.Processes.Calendar(c.Request.Context(), *from, *to)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// Overdue retrieves open processes past their due date
func (pc *ProcessController) Overdue(c *gin.Context) {
	ps, err := pc.Processes.Overdue(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}
