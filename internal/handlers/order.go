package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
	"github.com/davidkovac996/Digistore24Task/internal/models"
	"github.com/davidkovac996/Digistore24Task/internal/mykafka"
	"github.com/davidkovac996/Digistore24Task/internal/service/order"
)

type OrderHandler struct {
	DB       *gorm.DB
	Engine   *order.Engine
	Producer *mykafka.Producer
}

// Create places an order for the authenticated user.
func (h *OrderHandler) Create(c echo.Context) error {
	userID, ok := mwauth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
	}
	return h.place(c, order.Actor{UserID: &userID})
}

// CreateGuest places an order with no owning user.
func (h *OrderHandler) CreateGuest(c echo.Context) error {
	return h.place(c, order.Actor{IsGuest: true})
}

func (h *OrderHandler) place(c echo.Context, actor order.Actor) error {
	var in order.PlaceInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	receipt, err := h.Engine.Place(c.Request().Context(), actor, in)
	if err != nil {
		var stockErr *order.StockError
		switch {
		case errors.Is(err, order.ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.As(err, &stockErr):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":        "Insufficient stock.",
				"insufficient": stockErr.Insufficient,
			})
		default:
			return internalError(c, err)
		}
	}

	h.publish(c, map[string]interface{}{
		"type":        "order_created",
		"orderID":     receipt.OrderID,
		"total_cents": receipt.TotalCents,
		"is_guest":    actor.IsGuest,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":    receipt.OrderID,
		"total_cents": receipt.TotalCents,
	})
}

func (h *OrderHandler) Mine(c echo.Context) error {
	userID, ok := mwauth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
	}

	var orders []models.Order
	if err := h.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *OrderHandler) MineByID(c echo.Context) error {
	userID, ok := mwauth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	}

	var ord models.Order
	err = h.DB.Where("id = ? AND user_id = ?", orderID, userID).First(&ord).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
		}
		return internalError(c, err)
	}

	items, err := h.orderItems(ord.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"order": orderView(&ord, nil, items)})
}

// adminOrderRow carries the left-joined owner email; it stays null for
// guest orders and for owners deleted after the fact.
type adminOrderRow struct {
	models.Order
	UserEmail *string `json:"user_email"`
}

func (h *OrderHandler) AdminList(c echo.Context) error {
	var rows []adminOrderRow
	err := h.DB.Model(&models.Order{}).
		Select("orders.*, users.email AS user_email").
		Joins("LEFT JOIN users ON users.id = orders.user_id").
		Order("orders.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"orders": rows})
}

func (h *OrderHandler) AdminUnreadCount(c echo.Context) error {
	var count int64
	if err := h.DB.Model(&models.Order{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

// AdminDetail returns one order with its item snapshots and marks it read.
func (h *OrderHandler) AdminDetail(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
	}

	var ord models.Order
	if err := h.DB.First(&ord, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Order not found.")
		}
		return internalError(c, err)
	}

	if !ord.IsRead {
		if err := h.DB.Model(&ord).Update("is_read", true).Error; err != nil {
			return internalError(c, err)
		}
	}

	var userEmail *string
	if ord.UserID != nil {
		var owner models.User
		if err := h.DB.First(&owner, "id = ?", *ord.UserID).Error; err == nil {
			userEmail = &owner.Email
		}
	}

	items, err := h.orderItems(ord.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"order": orderView(&ord, userEmail, items)})
}

func (h *OrderHandler) orderItems(orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := h.DB.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func orderView(ord *models.Order, userEmail *string, items []models.OrderItem) echo.Map {
	view := echo.Map{
		"id":               ord.ID,
		"user_id":          ord.UserID,
		"is_guest":         ord.IsGuest,
		"customer_name":    ord.CustomerName,
		"customer_surname": ord.CustomerSurname,
		"delivery_address": ord.DeliveryAddress,
		"phone":            ord.Phone,
		"promo_code":       ord.PromoCode,
		"subtotal_cents":   ord.SubtotalCents,
		"discount_cents":   ord.DiscountCents,
		"total_cents":      ord.TotalCents,
		"payment_method":   ord.PaymentMethod,
		"is_read":          ord.IsRead,
		"created_at":       ord.CreatedAt,
		"items":            items,
	}
	if userEmail != nil {
		view["user_email"] = *userEmail
	}
	return view
}

func (h *OrderHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
