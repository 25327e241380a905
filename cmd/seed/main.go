// Package main seeds a papyrus database with an admin account and demo content.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/core/principal"
	"papyrus/internal/domain/account"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/internal/infrastructure/storage/postgres/account_repo"
	"papyrus/internal/infrastructure/storage/postgres/content_repo"
	"papyrus/pkg/logger"
)

func main() {
	adminEmail := flag.String("admin-email", "admin@example.com", "admin account email")
	adminPassword := flag.String("admin-password", "", "admin account password (required)")
	demoProducts := flag.Int("demo-products", 0, "number of demo products to bulk-load")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if *adminPassword == "" {
		log.Fatal("admin-password is required")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	registry := entity.NewRegistry()
	content.RegisterAll(registry)
	account.RegisterAll(registry)

	filters, err := postgres.InstallSoftDeleteFilters(registry)
	if err != nil {
		log.Fatalw("failed to install soft-delete filters", "error", err)
	}

	trail, err := postgres.NewAuditTrail()
	if err != nil {
		log.Fatalw("failed to create audit trail", "error", err)
	}

	factory := postgres.NewSessionFactory(pool.Pool, filters,
		postgres.WithAuditTrail(trail),
		postgres.WithLogger(log),
	)

	adminID, err := ensureAdmin(ctx, factory, registry, *adminEmail, *adminPassword)
	if err != nil {
		log.Fatalw("failed to create admin account", "error", err)
	}
	log.Infow("admin account ready", "email", *adminEmail, "id", adminID)

	// Further seeding runs as the admin so audit fields reference a real user.
	ctx = principal.WithUserID(ctx, adminID)

	if err := seedContent(ctx, factory, registry); err != nil {
		log.Fatalw("failed to seed content", "error", err)
	}

	if *demoProducts > 0 {
		n, err := loadDemoProducts(ctx, pool, adminID, *demoProducts)
		if err != nil {
			log.Fatalw("failed to load demo products", "error", err)
		}
		log.Infow("demo products loaded", "count", n)
	}

	log.Info("seed complete")
}

// ensureAdmin creates the admin user unless it already exists.
func ensureAdmin(ctx context.Context, factory *postgres.SessionFactory, reg *entity.Registry, email, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	admin := &account.User{
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		IsAdmin:      true,
	}

	err = factory.RunInTransaction(ctx, func(ctx context.Context) error {
		users := account_repo.Users(postgres.MustSession(ctx), reg)

		existing, err := users.GetByEmail(ctx, email)
		if err == nil {
			admin = existing
			return nil
		}
		if !apperror.IsNotFound(err) {
			return err
		}
		return users.Create(ctx, admin)
	})
	if err != nil {
		return 0, err
	}
	return admin.ID, nil
}

// seedContent creates the starter folder layout and welcome page.
func seedContent(ctx context.Context, factory *postgres.SessionFactory, reg *entity.Registry) error {
	return factory.RunInTransaction(ctx, func(ctx context.Context) error {
		s := postgres.MustSession(ctx)
		folders := content_repo.Folders(s, reg)
		pages := content_repo.Pages(s, reg)

		if _, err := pages.GetBySlug(ctx, "welcome"); err == nil {
			return nil // already seeded
		} else if !apperror.IsNotFound(err) {
			return err
		}

		for _, name := range []string{"Images", "Documents", "Media"} {
			if err := folders.Create(ctx, &content.Folder{Name: name}); err != nil {
				return err
			}
		}

		return pages.Create(ctx, &content.Page{
			Slug:  "welcome",
			Title: "Welcome",
			Body:  "Welcome to your new site.",
		})
	})
}

// loadDemoProducts bulk-loads generated products through the COPY protocol.
func loadDemoProducts(ctx context.Context, pool *postgres.Pool, adminID int64, count int) (int64, error) {
	inserter := postgres.NewCopyInserter(pool)

	now := time.Now().UTC()
	columns := []string{
		"sku", "name", "description", "price",
		"is_deleted", "created_at", "updated_at", "created_by", "updated_by",
	}
	rows := make([][]any, 0, count)
	for i := 1; i <= count; i++ {
		rows = append(rows, []any{
			fmt.Sprintf("DEMO-%05d", i),
			fmt.Sprintf("Demo product %d", i),
			"Generated demo product",
			decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(10)),
			false, now, now, adminID, adminID,
		})
	}

	return inserter.CopyFromSlice(ctx, "cms_products", columns, rows)
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
