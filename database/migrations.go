package database

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/iabdinur/blog/models"
)

func RunMigrations(db *gorm.DB) error {
	slog.Info("running database migrations")

	err := db.AutoMigrate(
		&models.Author{},
		&models.Post{},
		&models.Tag{},
		&models.PostTag{},
		&models.Comment{},
		&models.User{},
		&models.NewsletterSubscription{},
		&models.VerificationCode{},
		&models.SentEmail{},
		&models.PostVisit{},
	)
	if err != nil {
		slog.Error("migrations failed", "err", err)
		return err
	}

	slog.Info("migrations completed")
	return nil
}
