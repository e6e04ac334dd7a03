package controllers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
)

// FileController serves documents kept by the local store behind signed links.
type FileController struct {
	Store *utils.LocalStore
}

// Serve streams a stored file when the link token is valid
func (fc *FileController) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	f, err := fc.Store.Open(key, c.Query("token"))
	switch {
	case errors.Is(err, utils.ErrInvalidFileToken):
		utils.RespondWithError(c, http.StatusForbidden, "Invalid or expired link")
		return
	case errors.Is(err, utils.ErrFileNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "File not found")
		return
	case err != nil:
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid file path")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to read file")
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(key)}))
	http.ServeContent(c.Writer, c.Request, path.Base(key), info.ModTime(), f)
}
