// Seeder loads demo data for local development: staff accounts, a small
// catalog, and a handful of customers. Safe to run repeatedly.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(db)
	seedCatalog(db)
	seedCustomers(db)

	log.Println("Seeding completed successfully!")
}

func seedUsers(db *sql.DB) {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Admin", "admin@pos.local", "admin"},
		{"Rina Manager", "rina@pos.local", "manager"},
		{"Budi Kasir", "budi@pos.local", "cashier"},
		{"Siti Kasir", "siti@pos.local", "cashier"},
	}

	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	fmt.Println("Seeding Users...")
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) WHERE deleted_at IS NULL DO NOTHING;
		`, u.Name, u.Email, hash, u.Role)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}

func seedCatalog(db *sql.DB) {
	categories := []string{"Beverages", "Snacks", "Coffee Beans", "Merchandise", "Bakery"}

	fmt.Println("Seeding Categories...")
	catIDs := make(map[string]int64)
	for _, name := range categories {
		var id int64
		err := db.QueryRow(`
			INSERT INTO categories (name)
			VALUES ($1)
			ON CONFLICT (name) WHERE deleted_at IS NULL DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, name).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", name, err)
			continue
		}
		catIDs[name] = id
	}

	// Prices are stored in minor currency units.
	products := []struct {
		Name      string
		SKU       string
		Category  string
		Price     int64
		Cost      int64
		Stock     int32
		Threshold int32
	}{
		{"Es Teh Manis", "BEV-001", "Beverages", 800000, 300000, 100, 20},
		{"Kopi Susu Gula Aren", "BEV-002", "Beverages", 2200000, 900000, 80, 15},
		{"Air Mineral 600ml", "BEV-003", "Beverages", 500000, 250000, 200, 48},
		{"Keripik Singkong", "SNK-001", "Snacks", 1200000, 600000, 60, 12},
		{"Kacang Telur", "SNK-002", "Snacks", 1000000, 450000, 50, 10},
		{"Arabica Gayo 250g", "COF-001", "Coffee Beans", 9500000, 5500000, 25, 5},
		{"Robusta Lampung 250g", "COF-002", "Coffee Beans", 6500000, 3800000, 30, 5},
		{"Tumbler 500ml", "MRC-001", "Merchandise", 8500000, 4000000, 15, 3},
		{"Roti Bakar Coklat", "BKR-001", "Bakery", 1800000, 700000, 40, 8},
		{"Croissant Butter", "BKR-002", "Bakery", 2500000, 1100000, 35, 8},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		catID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("Skipping product %s: category %s missing", p.SKU, p.Category)
			continue
		}
		_, err := db.Exec(`
			INSERT INTO products (name, sku, category_id, price, cost_price, stock_quantity, low_stock_threshold, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT (sku) WHERE deleted_at IS NULL DO NOTHING;
		`, p.Name, p.SKU, catID, p.Price, p.Cost, p.Stock, p.Threshold)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.SKU, err)
		}
	}
}

func seedCustomers(db *sql.DB) {
	customers := []struct {
		Name  string
		Phone string
		Email string
	}{
		{"Andi Pratama", "+628111000001", "andi@example.com"},
		{"Dewi Lestari", "+628111000002", "dewi@example.com"},
		{"Eko Kurniawan", "+628111000003", "eko@example.com"},
		{"Gita Pertiwi", "+628111000004", "gita@example.com"},
		{"Hendra Wijaya", "+628111000005", "hendra@example.com"},
	}

	fmt.Println("Seeding Customers...")
	for _, c := range customers {
		_, err := db.Exec(`
			INSERT INTO customers (name, phone, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (phone) WHERE phone IS NOT NULL AND deleted_at IS NULL DO NOTHING;
		`, c.Name, c.Phone, c.Email)
		if err != nil {
			log.Printf("Failed to seed customer %s: %v", c.Name, err)
		}
	}
}
