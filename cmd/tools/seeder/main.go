// Seeds demo products and offers for local development.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-api/db"
	"github.com/noah-isme/kasir-api/internal/offer"
	"github.com/noah-isme/kasir-api/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := db.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	drinks := uuid.MustParse("0c7f43a2-51f8-4a3e-9d68-3a7d1f5a0001")
	snacks := uuid.MustParse("0c7f43a2-51f8-4a3e-9d68-3a7d1f5a0002")

	products := []struct {
		sku, name  string
		price      string
		categories []uuid.UUID
	}{
		{"KOPI-001", "Kopi Susu", "3.50", []uuid.UUID{drinks}},
		{"TEH-001", "Teh Botol", "2.00", []uuid.UUID{drinks}},
		{"ROTI-001", "Roti Bakar", "5.50", []uuid.UUID{snacks}},
		{"KRP-001", "Keripik Singkong", "4.00", []uuid.UUID{snacks}},
		{"AIR-001", "Air Mineral", "1.50", []uuid.UUID{drinks}},
	}
	ids := map[string]uuid.UUID{}
	for _, p := range products {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, sku, name, unit_price, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price`,
			id, p.sku, p.name, mustDec(p.price))
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.sku, err)
		}
		if err := pool.QueryRow(ctx, `SELECT id FROM products WHERE sku = $1`, p.sku).Scan(&id); err != nil {
			log.Fatalf("Failed to read back product %s: %v", p.sku, err)
		}
		ids[p.sku] = id
		for _, cat := range p.categories {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_categories (product_id, category_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, cat); err != nil {
				log.Fatalf("Failed to seed category for %s: %v", p.sku, err)
			}
		}
	}
	log.Printf("Seeded %d products", len(products))

	offers := &postgres.OfferStore{Pool: pool}
	seedOffers := []offer.Offer{
		{
			ID: uuid.New(), Code: "ROTI20", Type: offer.TypeProduct,
			Kind: offer.KindPercentage, Value: mustDec("20"), Active: true,
			ProductIDs: []uuid.UUID{ids["ROTI-001"]},
		},
		{
			ID: uuid.New(), Code: "MINUM10", Type: offer.TypeCategory,
			Kind: offer.KindPercentage, Value: mustDec("10"), Active: true,
			CategoryIDs: []uuid.UUID{drinks},
		},
		{
			ID: uuid.New(), Code: "SARAPAN", Type: offer.TypeBundle,
			Kind: offer.KindFixedAmount, Value: mustDec("2.00"), Active: true,
			BundleItems: []offer.BundleItem{
				{ProductID: ids["KOPI-001"], RequiredQty: mustDec("1")},
				{ProductID: ids["ROTI-001"], RequiredQty: mustDec("1")},
			},
		},
		{
			ID: uuid.New(), Code: "BORONG", Type: offer.TypeOrder,
			Kind: offer.KindPercentage, Value: mustDec("5"), Active: true,
			MinOrderAmount: mustDec("25.00"),
		},
	}
	for _, o := range seedOffers {
		if err := offers.CreateOffer(ctx, o); err != nil {
			log.Printf("Skipping offer %s: %v", o.Code, err)
			continue
		}
		log.Printf("Seeded offer %s", o.Code)
	}

	log.Println("Seeding completed successfully!")
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid decimal %q: %v", s, err)
	}
	return d
}
