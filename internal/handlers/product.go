package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/es"
	"github.com/davidkovac996/Digistore24Task/internal/models"
	"github.com/davidkovac996/Digistore24Task/internal/mykafka"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

type productRequest struct {
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	WeightGrams int    `json:"weight_grams"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"image_url"`
}

func (r *productRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("Name is required.")
	}
	if r.PriceCents < 1 {
		return errors.New("price_cents must be a positive integer.")
	}
	if r.WeightGrams < 1 {
		return errors.New("weight_grams must be a positive integer.")
	}
	if r.Quantity < 0 {
		return errors.New("quantity must be >= 0.")
	}
	if u, err := url.ParseRequestURI(strings.TrimSpace(r.ImageURL)); err != nil || u.Host == "" {
		return errors.New("image_url must be a valid URL.")
	}
	return nil
}

func (h *ProductHandler) List(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Order("created_at ASC").Find(&products).Error; err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
	}

	var product models.Product
	if err := h.DB.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product": product})
}

func (h *ProductHandler) Create(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	product := models.Product{
		Name:        strings.TrimSpace(req.Name),
		PriceCents:  req.PriceCents,
		WeightGrams: req.WeightGrams,
		Quantity:    req.Quantity,
		ImageURL:    strings.TrimSpace(req.ImageURL),
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return internalError(c, err)
	}

	h.index(c, &product)
	h.publish(c, map[string]interface{}{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusCreated, echo.Map{"product": product})
}

func (h *ProductHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var product models.Product
	if err := h.DB.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
		}
		return internalError(c, err)
	}

	product.Name = strings.TrimSpace(req.Name)
	product.PriceCents = req.PriceCents
	product.WeightGrams = req.WeightGrams
	product.Quantity = req.Quantity
	product.ImageURL = strings.TrimSpace(req.ImageURL)

	if err := h.DB.Save(&product).Error; err != nil {
		return internalError(c, err)
	}

	h.index(c, &product)
	h.publish(c, map[string]interface{}{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusOK, echo.Map{"product": product})
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
	}

	// Order item snapshots are untouched: they carry their own copy of the
	// name, price and weight precisely so this delete cannot corrupt history.
	res := h.DB.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return internalError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Product not found.")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := es.DeleteProduct(ctx, h.ES, h.Index, id.String()); err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
	}

	h.publish(c, map[string]interface{}{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted."})
}

func (h *ProductHandler) index(c echo.Context, product *models.Product) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := es.IndexProduct(ctx, h.ES, h.Index, product); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
