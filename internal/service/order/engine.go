package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidkovac996/Digistore24Task/internal/models"
)

// PromoCode is the single active promo code. Matching is trimmed and
// case-insensitive; a match takes a flat 10% off the subtotal.
const PromoCode = "digistore24"

var ErrValidation = errors.New("validation")

type InsufficientLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockError enumerates every failing cart line, not just the first, so the
// client can fix the whole cart in one round trip.
type StockError struct {
	Insufficient []InsufficientLine
}

func (e *StockError) Error() string { return "insufficient stock" }

type Actor struct {
	UserID  *uuid.UUID
	IsGuest bool
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceInput struct {
	Items           []ItemInput `json:"items"`
	CustomerName    string      `json:"customer_name"`
	CustomerSurname string      `json:"customer_surname"`
	DeliveryAddress string      `json:"delivery_address"`
	Phone           string      `json:"phone"`
	PromoCode       string      `json:"promo_code"`
	PaymentMethod   string      `json:"payment_method"`
}

type Receipt struct {
	OrderID    uuid.UUID `json:"order_id"`
	TotalCents int64     `json:"total_cents"`
}

type Engine struct {
	DB *gorm.DB
}

type cartLine struct {
	productID uuid.UUID
	quantity  int
}

// Place runs the whole order as one transaction: lock the product rows,
// verify stock, price the cart from the locked rows, persist the order with
// its item snapshots and decrement stock. Any failure after the locks are
// taken rolls the whole thing back; no partial order is ever visible.
//
// Two buyers draining the same product are serialized by the exclusive row
// locks, which is the only thing keeping quantity from going negative.
func (e *Engine) Place(ctx context.Context, actor Actor, in PlaceInput) (*Receipt, error) {
	lines, err := normalize(in)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.productID)
	}

	var receipt Receipt
	txErr := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := lockForUpdate(tx).
			Where("id IN ?", ids).
			Find(&products).Error; err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		var insufficient []InsufficientLine
		for _, l := range lines {
			p, ok := byID[l.productID]
			if !ok {
				insufficient = append(insufficient, InsufficientLine{
					ProductID: l.productID.String(),
					Reason:    "Product not found",
					Requested: l.quantity,
				})
				continue
			}
			if p.Quantity < l.quantity {
				insufficient = append(insufficient, InsufficientLine{
					ProductID: l.productID.String(),
					Name:      p.Name,
					Requested: l.quantity,
					Available: p.Quantity,
				})
			}
		}
		if len(insufficient) > 0 {
			return &StockError{Insufficient: insufficient}
		}

		var subtotalCents int64
		for _, l := range lines {
			subtotalCents += byID[l.productID].PriceCents * int64(l.quantity)
		}

		promoApplied := strings.EqualFold(strings.TrimSpace(in.PromoCode), PromoCode)
		var discountCents int64
		if promoApplied {
			// Round-half-up on the cents value. This is the only place
			// non-integer arithmetic touches the price path.
			discountCents = int64(math.Round(float64(subtotalCents) * 0.10))
		}
		totalCents := subtotalCents - discountCents

		ord := models.Order{
			UserID:          actor.UserID,
			IsGuest:         actor.IsGuest,
			CustomerName:    strings.TrimSpace(in.CustomerName),
			CustomerSurname: strings.TrimSpace(in.CustomerSurname),
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			Phone:           strings.TrimSpace(in.Phone),
			SubtotalCents:   subtotalCents,
			DiscountCents:   discountCents,
			TotalCents:      totalCents,
			PaymentMethod:   in.PaymentMethod,
		}
		if promoApplied {
			code := PromoCode
			ord.PromoCode = &code
		}
		if err := tx.Create(&ord).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range lines {
			// Snapshot comes from the row read under lock, not a re-query,
			// so it always matches the price the subtotal was computed from.
			p := byID[l.productID]
			item := models.OrderItem{
				OrderID:                ord.ID,
				ProductID:              p.ID,
				ProductNameSnapshot:    p.Name,
				UnitPriceCentsSnapshot: p.PriceCents,
				WeightGramsSnapshot:    p.WeightGrams,
				Quantity:               l.quantity,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}

			res := tx.Model(&models.Product{}).
				Where("id = ?", p.ID).
				UpdateColumns(map[string]interface{}{
					"quantity":   gorm.Expr("quantity - ?", l.quantity),
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return fmt.Errorf("decrement stock: %w", res.Error)
			}
		}

		receipt = Receipt{OrderID: ord.ID, TotalCents: totalCents}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return &receipt, nil
}

// sqlite has no SELECT ... FOR UPDATE; its single-writer transaction lock
// already serializes concurrent checkouts, so the clause is postgres-only.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// normalize rejects malformed input before any transaction begins and merges
// duplicate product lines so the stock check sees the combined quantity.
func normalize(in PlaceInput) ([]cartLine, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items must be a non-empty array", ErrValidation)
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer_name is required", ErrValidation)
	}
	if strings.TrimSpace(in.CustomerSurname) == "" {
		return nil, fmt.Errorf("%w: customer_surname is required", ErrValidation)
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: delivery_address is required", ErrValidation)
	}
	if strings.TrimSpace(in.Phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if in.PaymentMethod != "cash" && in.PaymentMethod != "card" {
		return nil, fmt.Errorf("%w: payment_method must be cash or card", ErrValidation)
	}

	var lines []cartLine
	index := make(map[uuid.UUID]int)
	for _, it := range in.Items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: each item must have a valid product_id", ErrValidation)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: each item quantity must be >= 1", ErrValidation)
		}
		if i, ok := index[id]; ok {
			lines[i].quantity += it.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, cartLine{productID: id, quantity: it.Quantity})
	}
	return lines, nil
}
