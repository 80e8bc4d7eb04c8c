package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain/auth"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/feed"
	"staybook/internal/gateway"
	"staybook/internal/notify"
	"staybook/internal/pkg/toast"
	"staybook/internal/server"
)

// Headless client for one user: follows that user's notifications, logs
// every toast and keeps a feed loaded with the default filters.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AgentUserID <= 0 {
		log.Fatal("AGENT_USER_ID is required")
	}
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required to receive live notifications")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	rdb, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	rtClient, publisher := server.Realtime(rdb, cfg.RealtimeSubscribeTimeout)
	notifService := notification.NewService(notification.NewNotificationRepository(db), publisher)
	propertyRepo := property.NewRepository(db)
	bookingService := booking.NewService(booking.NewBookingRepository(db), propertyRepo, auth.NewUserRepository(db), notifService)

	manager := notify.NewManager(rtClient, notify.WithSingleUser(), notify.WithSubscribeTimeout(cfg.RealtimeSubscribeTimeout))
	defer manager.Close()

	toaster := toast.NewLogToaster("agent")
	navigator := gateway.NewNavigator(func(route string) {
		log.Printf("agent navigate route=%s", route)
	})
	store := notification.NewStore()
	provider := notify.NewProvider(manager, store, notifService, toaster, bookingService, navigator,
		notify.WithStoreListener(func(state notification.State) {
			if !state.Loading {
				log.Printf("agent notifications total=%d unread=%d", len(state.Notifications), state.UnreadCount)
			}
		}),
	)
	defer provider.Close()

	if err := provider.OnAuthChange(ctx, notify.AuthState{Authenticated: true, UserID: cfg.AgentUserID, Role: cfg.AgentRole}); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	navigator.SetAuthenticated(true)
	if err := provider.Refresh(ctx); err != nil {
		log.Printf("agent refresh failed: %v", err)
	}

	likes := property.NewLikeService(db, rdb)
	views := property.NewViewService(db, rdb)
	homeFeed := feed.NewStore(propertyRepo, likes, views, toaster, feed.WithListener(func(state feed.State) {
		if !state.Loading && state.Error == "" {
			log.Printf("agent feed properties=%d total=%d page=%d/%d", len(state.Properties), state.TotalCount, state.CurrentPage, state.TotalPages)
		}
	}))
	homeFeed.SetViewer(cfg.AgentUserID)
	if err := homeFeed.ApplyFilters(ctx, property.SearchFilters{}); err != nil {
		log.Printf("agent feed failed: %v", err)
	}

	log.Printf("agent running user_id=%d role=%s", cfg.AgentUserID, cfg.AgentRole)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("agent stopped")
			return
		case <-ticker.C:
			if _, ok := provider.Subscribed(); !ok {
				log.Println("agent resubscribing")
				if err := provider.OnAuthChange(ctx, notify.AuthState{Authenticated: true, UserID: cfg.AgentUserID, Role: cfg.AgentRole}); err != nil {
					log.Printf("agent resubscribe failed: %v", err)
					continue
				}
				// Catch up on anything inserted while the channel was down.
				if err := provider.Refresh(ctx); err != nil {
					log.Printf("agent refresh failed: %v", err)
				}
			}
		}
	}
}
