package main

import (
	"context"
	"log"
	"time"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain/auth"
	"staybook/internal/domain/notification"
	"staybook/internal/pkg/jwt"
)

// One-shot maintenance run: expired sessions and old read notifications.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	authService := auth.NewService(auth.NewUserRepository(db), jwt.New(cfg.JWTSecret, cfg.JWTAccessTTL), cfg.RefreshTokenPepper, cfg.RefreshTTL)
	sessions, err := authService.PurgeSessions(ctx)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	cleanup := notification.NewCleanupService(notification.NewNotificationRepository(db), cfg.NotificationRetention)
	notifications, err := cleanup.Run(ctx)
	if err != nil {
		log.Fatalf("cleanup notifications failed: %v", err)
	}

	log.Printf("cleanup completed: refresh_tokens=%d notifications=%d", sessions, notifications)
}
