package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
	"github.com/davidkovac996/Digistore24Task/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

type reviewRow struct {
	models.Review
	Email string `json:"email"`
}

func (h *ReviewHandler) List(c echo.Context) error {
	var rows []reviewRow
	err := h.DB.Model(&models.Review{}).
		Select("reviews.*, users.email AS email").
		Joins("JOIN users ON users.id = reviews.user_id").
		Order("reviews.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": rows})
}

// Upsert creates or replaces the caller's single review.
func (h *ReviewHandler) Upsert(c echo.Context) error {
	userID, ok := mwauth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
	}

	var req struct {
		Rating int    `json:"rating"`
		Body   string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "Rating must be 1-5.")
	}
	body := strings.TrimSpace(req.Body)
	if len(body) < 10 || len(body) > 500 {
		return echo.NewHTTPError(http.StatusBadRequest, "Review must be 10-500 characters.")
	}

	review := models.Review{
		UserID: userID,
		Rating: req.Rating,
		Body:   body,
	}
	status := http.StatusCreated
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Review{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			status = http.StatusOK
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "body", "updated_at"}),
		}).Create(&review).Error; err != nil {
			return err
		}

		// The insert path leaves review.ID unset on conflict; reload for the response.
		return tx.Where("user_id = ?", userID).First(&review).Error
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(status, echo.Map{"review": review})
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Review not found.")
	}

	res := h.DB.Delete(&models.Review{}, id)
	if res.Error != nil {
		return internalError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Review not found.")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
