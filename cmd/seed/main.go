// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := seedAdminUser(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@stockledger.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	tenantID := os.Getenv("TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}

	var existingID id.ID
	err := pool.Pool.QueryRow(ctx,
		`SELECT id FROM sys_users WHERE email = $1`,
		adminEmail,
	).Scan(&existingID)
	if err == nil {
		log.Infow("admin user already exists", "email", adminEmail, "user_id", existingID)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID := id.New()
	now := time.Now()

	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO sys_users (
			id, tenant_id, email, password_hash, name,
			active, is_admin, roles, failed_login_attempts,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 'Administrator', true, true, '{admin}', 0, $5, $5)
	`, userID, tenantID, adminEmail, string(passwordHash), now)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", userID)
	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	tenantID := os.Getenv("TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}

	items := []struct {
		itemType  entity.StockEntityType
		name      string
		salePrice string
		minQty    string
	}{
		{entity.EntityIngredient, "Flour 1kg", "0", "20"},
		{entity.EntityIngredient, "Sugar 1kg", "0", "10"},
		{entity.EntityIngredient, "Butter 500g", "0", "15"},
		{entity.EntityProduct, "Croissant", "3.50", "0"},
		{entity.EntityProduct, "Sourdough Loaf", "6.00", "0"},
		{entity.EntityPackage, "Breakfast Box", "12.50", "0"},
	}

	now := time.Now()
	for _, it := range items {
		price, err := types.NewMoneyFromString(it.salePrice)
		if err != nil {
			return fmt.Errorf("parse price for %s: %w", it.name, err)
		}
		minQty, err := types.NewQuantityFromString(it.minQty)
		if err != nil {
			return fmt.Errorf("parse min quantity for %s: %w", it.name, err)
		}

		_, err = pool.Pool.Exec(ctx, `
			INSERT INTO cat_items (
				id, tenant_id, type, name, sale_price, min_quantity,
				active, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)
			ON CONFLICT DO NOTHING
		`, id.New(), tenantID, it.itemType, it.name, price, minQty, now)
		if err != nil {
			log.Warnw("failed to seed item", "name", it.name, "error", err)
		}
	}

	accounts := []string{"Main Checking", "Savings"}
	for _, name := range accounts {
		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO reg_cash_accounts (
				bank_account_id, name, balance, active, updated_at
			)
			VALUES ($1, $2, 0, true, $3)
			ON CONFLICT DO NOTHING
		`, id.New(), name, now)
		if err != nil {
			log.Warnw("failed to seed cash account", "name", name, "error", err)
		}
	}

	log.Info("demo data seeded successfully")
	return nil
}
