package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
	"github.com/davidkovac996/Digistore24Task/internal/models"
)

type ContactHandler struct {
	DB *gorm.DB
}

// Submit accepts a message from anyone, logged in or not.
func (h *ContactHandler) Submit(c echo.Context) error {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Name is required.")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email is required.")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Subject is required.")
	}
	body := strings.TrimSpace(req.Body)
	if len(body) < 10 {
		return echo.NewHTTPError(http.StatusBadRequest, "Message must be at least 10 characters.")
	}

	msg := models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   email,
		Subject: strings.TrimSpace(req.Subject),
		Body:    body,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true})
}

// Messages are tied to the account by email, not user id: guests can write
// in with any address and later see their thread after registering with it.
func (h *ContactHandler) Mine(c echo.Context) error {
	var msgs []models.ContactMessage
	err := h.DB.Where("email = ?", mwauth.Email(c)).
		Order("created_at DESC").
		Find(&msgs).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *ContactHandler) MineRepliedIDs(c echo.Context) error {
	var ids []uint
	err := h.DB.Model(&models.ContactMessage{}).
		Where("email = ? AND reply IS NOT NULL AND reply_seen_by_client = ?", mwauth.Email(c), false).
		Pluck("id", &ids).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ids": ids})
}

func (h *ContactHandler) MineMarkSeen(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found.")
	}

	err = h.DB.Model(&models.ContactMessage{}).
		Where("id = ? AND email = ?", id, mwauth.Email(c)).
		Update("reply_seen_by_client", true).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *ContactHandler) MineMarkAllSeen(c echo.Context) error {
	err := h.DB.Model(&models.ContactMessage{}).
		Where("email = ? AND reply IS NOT NULL", mwauth.Email(c)).
		Update("reply_seen_by_client", true).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *ContactHandler) AdminList(c echo.Context) error {
	var msgs []models.ContactMessage
	if err := h.DB.Order("created_at DESC").Find(&msgs).Error; err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *ContactHandler) AdminUnreadCount(c echo.Context) error {
	var count int64
	if err := h.DB.Model(&models.ContactMessage{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// AdminDetail returns the full message and marks it read.
func (h *ContactHandler) AdminDetail(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found.")
	}

	var msg models.ContactMessage
	if err := h.DB.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Message not found.")
		}
		return internalError(c, err)
	}

	if !msg.IsRead {
		if err := h.DB.Model(&msg).Update("is_read", true).Error; err != nil {
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

func (h *ContactHandler) AdminMarkAllRead(c echo.Context) error {
	err := h.DB.Model(&models.ContactMessage{}).
		Where("is_read = ?", false).
		Update("is_read", true).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *ContactHandler) AdminReply(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found.")
	}

	var req struct {
		Reply string `json:"reply"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	reply := strings.TrimSpace(req.Reply)
	if reply == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Reply cannot be empty.")
	}

	var msg models.ContactMessage
	if err := h.DB.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Message not found.")
		}
		return internalError(c, err)
	}

	now := time.Now()
	msg.Reply = &reply
	msg.RepliedAt = &now
	msg.IsRead = true
	msg.ReplySeenByClient = false
	if err := h.DB.Save(&msg).Error; err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
