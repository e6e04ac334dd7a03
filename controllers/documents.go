package controllers

import (
	"net/http"
	"strconv"

	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
)

// DocumentController serves a process checklist and the validation
// requests made against its documents.
type DocumentController struct {
	Documents   *services.DocumentService
	Validations *services.AIValidationService
}

// List retrieves the checklist of a process
func (dc *DocumentController) List(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docs, err := dc.Documents.List(c.Request.Context(), processID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// Stats returns the checklist counters of a process
func (dc *DocumentController) Stats(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	stats, err := dc.Documents.Stats(c.Request.Context(), processID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Add appends a document to the checklist
func (dc *DocumentController) Add(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.DocumentInput
	if !bindJSON(c, &input) {
		return
	}
	doc, err := dc.Documents.Add(c.Request.Context(), processID, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// Upload expects a multipart form with the file under "file".
func (dc *DocumentController) Upload(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxUploadSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Failed to read upload")
		return
	}
	defer f.Close()

	doc, err := dc.Documents.Upload(c.Request.Context(), processID, docID, services.UploadInput{
		FileName: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Download redirects to a short lived signed link.
func (dc *DocumentController) Download(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	u, err := dc.Documents.DownloadURL(c.Request.Context(), processID, docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// ToggleValidated flips the validated flag of a document
func (dc *DocumentController) ToggleValidated(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	doc, err := dc.Documents.ToggleValidated(c.Request.Context(), processID, docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SetStatus records a review outcome for a document
func (dc *DocumentController) SetStatus(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	var input services.SetDocumentStatusInput
	if !bindJSON(c, &input) {
		return
	}
	doc, err := dc.Documents.SetStatus(c.Request.Context(), processID, docID, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Remove needs ?confirm=true; required documents are never removed.
func (dc *DocumentController) Remove(c *gin.Context) {
	processID, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "docId")
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := dc.Documents.Remove(c.Request.Context(), processID, docID, confirmed); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document removed successfully"})
}

// Validations

// SubmitValidation starts an AI validation of a document
func (dc *DocumentController) SubmitValidation(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := dc.Validations.Submit(c.Request.Context(), docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// ListValidations retrieves the AI validations of a document
func (dc *DocumentController) ListValidations(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	results, err := dc.Validations.ListForDocument(c.Request.Context(), docID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetValidation retrieves a specific AI validation by ID
func (dc *DocumentController) GetValidation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := dc.Validations.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelValidation stops a running AI validation
func (dc *DocumentController) CancelValidation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := dc.Validations.Cancel(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryValidation submits the document of a finished AI validation again
func (dc *DocumentController) RetryValidation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := dc.Validations.Retry(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}
