package order

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{},
	))
	return db
}

func createProduct(t *testing.T, db *gorm.DB, name string, priceCents int64, quantity int) models.Product {
	t.Helper()
	p := models.Product{
		Name:        name,
		PriceCents:  priceCents,
		WeightGrams: 250,
		Quantity:    quantity,
		ImageURL:    "https://images.brewedtrue.com/" + name + ".jpg",
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func guestInput(items ...ItemInput) PlaceInput {
	return PlaceInput{
		Items:           items,
		CustomerName:    "David",
		CustomerSurname: "Kovac",
		DeliveryAddress: "Mis Irbijeve 12",
		Phone:           "+381603578913",
		PaymentMethod:   "cash",
	}
}

func TestPlaceOrderComputesTotalsAndSnapshots(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}

	coffee := createProduct(t, db, "Kenya AA", 1899, 12)
	beans := createProduct(t, db, "Sumatra Mandheling", 1599, 5)

	receipt, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: coffee.ID.String(), Quantity: 2},
		ItemInput{ProductID: beans.ID.String(), Quantity: 1},
	))
	require.NoError(t, err)
	require.Equal(t, int64(2*1899+1599), receipt.TotalCents)

	var ord models.Order
	require.NoError(t, db.First(&ord, "id = ?", receipt.OrderID).Error)
	require.Equal(t, ord.SubtotalCents-ord.DiscountCents, ord.TotalCents)
	require.Equal(t, int64(0), ord.DiscountCents)
	require.Nil(t, ord.PromoCode)
	require.True(t, ord.IsGuest)
	require.Nil(t, ord.UserID)
	require.False(t, ord.IsRead)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", ord.ID).Find(&items).Error)
	require.Len(t, items, 2)

	var fromSnapshots int64
	for _, it := range items {
		fromSnapshots += it.UnitPriceCentsSnapshot * int64(it.Quantity)
	}
	require.Equal(t, ord.SubtotalCents, fromSnapshots)

	var reloadedCoffee models.Product
	require.NoError(t, db.First(&reloadedCoffee, "id = ?", coffee.ID).Error)
	require.Equal(t, 10, reloadedCoffee.Quantity)
	var reloadedBeans models.Product
	require.NoError(t, db.First(&reloadedBeans, "id = ?", beans.ID).Error)
	require.Equal(t, 4, reloadedBeans.Quantity)
}

func TestPlaceOrderAttachesUser(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}

	user := models.User{Email: "davidkovac1996@gmail.com", PasswordHash: "x", Role: models.RoleClient}
	require.NoError(t, db.Create(&user).Error)
	coffee := createProduct(t, db, "Kenya AA", 1899, 3)

	receipt, err := engine.Place(context.Background(), Actor{UserID: &user.ID}, guestInput(
		ItemInput{ProductID: coffee.ID.String(), Quantity: 1},
	))
	require.NoError(t, err)

	var ord models.Order
	require.NoError(t, db.First(&ord, "id = ?", receipt.OrderID).Error)
	require.NotNil(t, ord.UserID)
	require.Equal(t, user.ID, *ord.UserID)
	require.False(t, ord.IsGuest)
}

func TestPlaceOrderPromoRounding(t *testing.T) {
	cases := []struct {
		name         string
		priceCents   int64
		wantDiscount int64
		wantTotal    int64
	}{
		{"even subtotal", 10000, 1000, 9000},
		{"half-up rounding", 1699, 170, 1529},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := initTestDB(t)
			engine := &Engine{DB: db}
			p := createProduct(t, db, "Ethiopian Yirgacheffe", tc.priceCents, 10)

			in := guestInput(ItemInput{ProductID: p.ID.String(), Quantity: 1})
			in.PromoCode = "  DigiStore24 "

			receipt, err := engine.Place(context.Background(), Actor{IsGuest: true}, in)
			require.NoError(t, err)
			require.Equal(t, tc.wantTotal, receipt.TotalCents)

			var ord models.Order
			require.NoError(t, db.First(&ord, "id = ?", receipt.OrderID).Error)
			require.Equal(t, tc.priceCents, ord.SubtotalCents)
			require.Equal(t, tc.wantDiscount, ord.DiscountCents)
			require.Equal(t, tc.wantTotal, ord.TotalCents)
			require.NotNil(t, ord.PromoCode)
			require.Equal(t, PromoCode, *ord.PromoCode)
		})
	}
}

func TestPlaceOrderUnknownPromoIgnored(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Guatemala Antigua", 1799, 2)

	in := guestInput(ItemInput{ProductID: p.ID.String(), Quantity: 1})
	in.PromoCode = "digistore25"

	receipt, err := engine.Place(context.Background(), Actor{IsGuest: true}, in)
	require.NoError(t, err)
	require.Equal(t, int64(1799), receipt.TotalCents)

	var ord models.Order
	require.NoError(t, db.First(&ord, "id = ?", receipt.OrderID).Error)
	require.Equal(t, int64(0), ord.DiscountCents)
	require.Nil(t, ord.PromoCode)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Colombian Supremo", 1499, 3)

	_, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 5},
	))

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Insufficient, 1)
	line := stockErr.Insufficient[0]
	require.Equal(t, p.ID.String(), line.ProductID)
	require.Equal(t, "Colombian Supremo", line.Name)
	require.Equal(t, 5, line.Requested)
	require.Equal(t, 3, line.Available)

	// The whole transaction rolled back: stock untouched, nothing persisted.
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 3, reloaded.Quantity)

	var orders, items int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	require.Zero(t, orders)
	require.Zero(t, items)
}

func TestPlaceOrderReportsEveryFailingLine(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Kenya AA", 1899, 1)
	missing := uuid.New()

	_, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
		ItemInput{ProductID: missing.String(), Quantity: 1},
	))

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Insufficient, 2)

	byID := map[string]InsufficientLine{}
	for _, l := range stockErr.Insufficient {
		byID[l.ProductID] = l
	}
	require.Equal(t, "Product not found", byID[missing.String()].Reason)
	require.Equal(t, 2, byID[p.ID.String()].Requested)
	require.Equal(t, 1, byID[p.ID.String()].Available)
}

func TestPlaceOrderMergesDuplicateLines(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Sumatra Mandheling", 1599, 3)

	_, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
	))

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Insufficient, 1)
	require.Equal(t, 4, stockErr.Insufficient[0].Requested)
	require.Equal(t, 3, stockErr.Insufficient[0].Available)
}

func TestSequentialCheckoutsNeverOversell(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Ethiopian Yirgacheffe", 1701, 3)

	_, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
	))
	require.NoError(t, err)

	_, err = engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
	))
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 1, stockErr.Insufficient[0].Available)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 1, reloaded.Quantity)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	db := initTestDB(t)
	// In-memory sqlite is per-connection; pin the pool to one so both
	// goroutines hit the same database and serialize on it.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	engine := &Engine{DB: db}
	p := createProduct(t, db, "Ethiopian Yirgacheffe", 1701, 3)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
				ItemInput{ProductID: p.ID.String(), Quantity: 2},
			))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *StockError
		require.ErrorAs(t, err, &stockErr)
		rejected++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", p.ID).Error)
	require.Equal(t, 1, reloaded.Quantity)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.Equal(t, int64(1), orders)
}

func TestSnapshotSurvivesProductDelete(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Guatemala Antigua", 1799, 7)

	receipt, err := engine.Place(context.Background(), Actor{IsGuest: true}, guestInput(
		ItemInput{ProductID: p.ID.String(), Quantity: 2},
	))
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.Product{}, "id = ?", p.ID).Error)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", receipt.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, "Guatemala Antigua", items[0].ProductNameSnapshot)
	require.Equal(t, int64(1799), items[0].UnitPriceCentsSnapshot)
	require.Equal(t, 250, items[0].WeightGramsSnapshot)

	var ord models.Order
	require.NoError(t, db.First(&ord, "id = ?", receipt.OrderID).Error)
	require.Equal(t, items[0].UnitPriceCentsSnapshot*int64(items[0].Quantity), ord.SubtotalCents)
	require.Equal(t, ord.SubtotalCents-ord.DiscountCents, ord.TotalCents)
}

func TestPlaceOrderValidation(t *testing.T) {
	db := initTestDB(t)
	engine := &Engine{DB: db}
	p := createProduct(t, db, "Kenya AA", 1899, 5)

	cases := []struct {
		name   string
		mutate func(in *PlaceInput)
	}{
		{"empty cart", func(in *PlaceInput) { in.Items = nil }},
		{"zero quantity", func(in *PlaceInput) { in.Items[0].Quantity = 0 }},
		{"bad product id", func(in *PlaceInput) { in.Items[0].ProductID = "not-a-uuid" }},
		{"missing name", func(in *PlaceInput) { in.CustomerName = "  " }},
		{"missing surname", func(in *PlaceInput) { in.CustomerSurname = "" }},
		{"missing address", func(in *PlaceInput) { in.DeliveryAddress = "" }},
		{"missing phone", func(in *PlaceInput) { in.Phone = "" }},
		{"bad payment method", func(in *PlaceInput) { in.PaymentMethod = "crypto" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := guestInput(ItemInput{ProductID: p.ID.String(), Quantity: 1})
			tc.mutate(&in)

			_, err := engine.Place(context.Background(), Actor{IsGuest: true}, in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}
