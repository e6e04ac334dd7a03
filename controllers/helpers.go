package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorHeader names who performs a request; it ends up in comments and history.
const ActorHeader = "X-Actor"

// ActorMiddleware copies the X-Actor header into the request context.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
			c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// respondErr maps service errors onto HTTP status codes.
func respondErr(c *gin.Context, err error) {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
		conflict   *services.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		utils.RespondWithError(c, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		utils.RespondWithError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		utils.RespondWithError(c, http.StatusConflict, conflict.Error())
	default:
		config.LogError(config.GetLogger(), "controllers", c.HandlerName(), c.Request.Method+" "+c.FullPath(), nil, err)
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return false
	}
	return true
}

// queryUUID reads an optional uuid query parameter.
func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return nil, false
	}
	return &id, true
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := utils.ParseDate(v)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" date")
		return nil, false
	}
	return &t, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" flag")
		return nil, false
	}
	return &b, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.Query(name)); err == nil {
		return n
	}
	return def
}
