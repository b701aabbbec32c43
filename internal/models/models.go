package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:client"  json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshToken rows are single-use: rotation deletes the old row and
// inserts a replacement, so a stolen-but-already-used token cannot be replayed.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"               json:"id"`
	Token     string    `gorm:"uniqueIndex;not null"     json:"token"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"                 json:"expires_at"`
}

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null"             json:"name"`
	PriceCents  int64     `gorm:"not null"             json:"price_cents"`
	WeightGrams int       `gorm:"not null"             json:"weight_grams"`
	Quantity    int       `gorm:"not null;default:0"   json:"quantity"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Order is immutable once created; only IsRead is ever updated, by the
// admin panel. Totals are integer cents, total = subtotal - discount.
type Order struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"   json:"id"`
	UserID          *uuid.UUID `gorm:"type:uuid;index"        json:"user_id"`
	IsGuest         bool       `gorm:"not null;default:false" json:"is_guest"`
	CustomerName    string     `gorm:"not null"               json:"customer_name"`
	CustomerSurname string     `gorm:"not null"               json:"customer_surname"`
	DeliveryAddress string     `gorm:"not null"               json:"delivery_address"`
	Phone           string     `gorm:"not null"               json:"phone"`
	PromoCode       *string    `json:"promo_code"`
	SubtotalCents   int64      `gorm:"not null"               json:"subtotal_cents"`
	DiscountCents   int64      `gorm:"not null"               json:"discount_cents"`
	TotalCents      int64      `gorm:"not null"               json:"total_cents"`
	PaymentMethod   string     `gorm:"not null"               json:"payment_method"`
	IsRead          bool       `gorm:"not null;default:false" json:"is_read"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots name, unit price and weight at purchase time.
// ProductID is deliberately not a foreign key: the product may be deleted
// later and the snapshot must keep rendering order history.
type OrderItem struct {
	ID                     uint      `gorm:"primaryKey"               json:"id"`
	OrderID                uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID              uuid.UUID `gorm:"type:uuid"                json:"product_id"`
	ProductNameSnapshot    string    `gorm:"not null"                 json:"product_name_snapshot"`
	UnitPriceCentsSnapshot int64     `gorm:"not null"                 json:"unit_price_cents_snapshot"`
	WeightGramsSnapshot    int       `gorm:"not null"                 json:"weight_grams_snapshot"`
	Quantity               int       `gorm:"not null"                 json:"quantity"`
}

// Review is one-per-user, upserted on repeat submissions.
type Review struct {
	ID        uint      `gorm:"primaryKey"                     json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Rating    int       `gorm:"not null"                       json:"rating"`
	Body      string    `gorm:"not null"                       json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ContactMessage struct {
	ID                uint       `gorm:"primaryKey"             json:"id"`
	Name              string     `gorm:"not null"               json:"name"`
	Email             string     `gorm:"index;not null"         json:"email"`
	Subject           string     `gorm:"not null"               json:"subject"`
	Body              string     `gorm:"not null"               json:"body"`
	IsRead            bool       `gorm:"not null;default:false" json:"is_read"`
	Reply             *string    `json:"reply"`
	RepliedAt         *time.Time `json:"replied_at"`
	ReplySeenByClient bool       `gorm:"not null;default:false" json:"reply_seen_by_client"`
	CreatedAt         time.Time  `json:"created_at"`
}
