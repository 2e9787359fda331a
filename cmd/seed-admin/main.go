package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	"lending/internal/auth"
	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/logging"
	"lending/internal/models"
	"lending/internal/store"
	"lending/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// seed-admin creates the first super admin. It refuses to run once any admin
// exists unless -force is given.
func main() {
	name := flag.String("name", envOr("SEED_ADMIN_NAME", "Administrator"), "display name")
	email := flag.String("email", os.Getenv("SEED_ADMIN_EMAIL"), "login email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "login password")
	force := flag.Bool("force", false, "create even when admins already exist")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	admin, err := newSuperAdmin(*name, *email, *password)
	if err != nil {
		log.WithError(err).Fatal("invalid admin")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	admins := store.NewAdminStore(database)
	exists, err := admins.HasAnyAdmin(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to check admins")
	}
	if exists && !*force {
		log.Info("admins already exist; nothing to do")
		return
	}
	err = db.NewTxRunner(database, log).WithTx(ctx, func(tx *sqlx.Tx) error {
		return admins.Create(ctx, tx, admin, nil)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			log.WithField("email", admin.Email).Fatal("an admin with this email already exists")
		}
		log.WithError(err).Fatal("failed to create admin")
	}
	log.WithField("id", admin.ID).WithField("email", admin.Email).Info("created super admin")
}

func newSuperAdmin(name, email, password string) (models.Admin, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return models.Admin{}, errors.New("name is required")
	}
	if err := validator.ValidateEmail(email); err != nil {
		return models.Admin{}, err
	}
	if err := validator.ValidatePassword(password); err != nil {
		return models.Admin{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Admin{}, err
	}
	return models.Admin{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsSuper:      true,
	}, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
