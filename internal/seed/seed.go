package seed

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/config"
	"github.com/davidkovac996/Digistore24Task/internal/hash"
	"github.com/davidkovac996/Digistore24Task/internal/models"
)

// Run is idempotent: each table is only seeded when it is empty.
func Run(db *gorm.DB, cfg *config.Config) error {
	if err := seedUsers(db, cfg); err != nil {
		return err
	}
	return seedProducts(db)
}

func seedUsers(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if count > 0 {
		log.Println("Users already exist, skipping seed.")
		return nil
	}

	password := cfg.ADMIN_PASSWORD
	if password == "" {
		return fmt.Errorf("seed users: ADMIN_PASSWORD must be set for initial seed")
	}
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	admin := models.User{
		Email:        strings.ToLower(cfg.ADMIN_EMAIL),
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	log.Println("Seeded admin user")
	return nil
}

func seedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if count > 0 {
		log.Println("Products already exist, skipping seed.")
		return nil
	}

	products := []models.Product{
		{Name: "Ethiopian Yirgacheffe", PriceCents: 1701, WeightGrams: 250, Quantity: 9, ImageURL: "https://images.brewedtrue.com/ethiopian-yirgacheffe.jpg"},
		{Name: "Colombian Supremo", PriceCents: 1499, WeightGrams: 500, Quantity: 0, ImageURL: "https://images.brewedtrue.com/colombian-supremo.jpg"},
		{Name: "Sumatra Mandheling", PriceCents: 1599, WeightGrams: 250, Quantity: 5, ImageURL: "https://images.brewedtrue.com/sumatra-mandheling.jpg"},
		{Name: "Guatemala Antigua", PriceCents: 1799, WeightGrams: 250, Quantity: 7, ImageURL: "https://images.brewedtrue.com/guatemala-antigua.jpg"},
		{Name: "Kenya AA", PriceCents: 1899, WeightGrams: 500, Quantity: 12, ImageURL: "https://images.brewedtrue.com/kenya-aa.jpg"},
	}
	for i := range products {
		if err := db.Create(&products[i]).Error; err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}

	log.Printf("Seeded %d products", len(products))
	return nil
}
