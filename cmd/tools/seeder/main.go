// Seeder populates a development database with a demo product catalog and
// prints a signed access token for exercising the settlement endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-kasir/internal/auth"
)

type seedProduct struct {
	name      string
	sku       string
	unitPrice string
	taxRate   string
	taxMethod string
	stockQty  int64
}

var catalog = []seedProduct{
	{"Kopi Susu 250ml", "KSU-250", "18000.00", "11", "INCLUSIVE", 120},
	{"Teh Botol 450ml", "TEH-450", "6000.00", "11", "INCLUSIVE", 200},
	{"Roti Tawar", "RTW-001", "15500.00", "0", "EXCLUSIVE", 40},
	{"Gula Pasir 1kg", "GLA-1KG", "17250.00", "0", "EXCLUSIVE", 35},
	{"Minyak Goreng 2L", "MYK-2L", "38000.00", "11", "EXCLUSIVE", 18},
	{"Sabun Mandi", "SBN-001", "4500.00", "11", "INCLUSIVE", 3},
}

func main() {
	actor := flag.String("actor", "kasir-demo", "subject to mint a token for")
	tokenTTL := flag.Duration("token-ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	for _, p := range catalog {
		_, err := conn.Exec(ctx, `
			INSERT INTO products (id, name, sku, unit_price, tax_rate, tax_method, stock_qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				unit_price = EXCLUDED.unit_price,
				tax_rate = EXCLUDED.tax_rate,
				tax_method = EXCLUDED.tax_method,
				stock_qty = EXCLUDED.stock_qty,
				updated_at = now()
		`, uuid.New(), p.name, p.sku, p.unitPrice, p.taxRate, p.taxMethod, p.stockQty)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.sku, err)
		}
		log.Printf("seeded %s (%s)", p.name, p.sku)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Println("JWT_SECRET not set, skipping token")
		return
	}
	svc, err := auth.NewService(auth.Config{Secret: secret})
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}
	token, err := svc.IssueAccessToken(*actor, *tokenTTL)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Printf("access token for %s:\n%s\n", *actor, token)
}
