package controllers

import (
	"net/http"

	"customsdesk-backend/models"
	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

// List retrieves the notification feed
func (nc *NotificationController) List(c *gin.Context) {
	unread, ok := queryBool(c, "unread")
	if !ok {
		return
	}
	ns, err := nc.Notifications.List(c.Request.Context(), services.NotificationFilter{
		UnreadOnly: unread != nil && *unread,
		Module:     c.Query("module"),
		Kind:       models.NotificationKind(c.Query("kind")),
		Limit:      queryInt(c, "limit", 100),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

// UnreadCount returns how many notifications are unread
func (nc *NotificationController) UnreadCount(c *gin.Context) {
	n, err := nc.Notifications.UnreadCount(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// MarkRead marks one notification as read
func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := nc.Notifications.MarkRead(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead marks every notification as read
func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	n, err := nc.Notifications.MarkAllRead(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete removes a notification
func (nc *NotificationController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := nc.Notifications.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted successfully"})
}
