// Package server wires the HTTP API, the websocket gateway and the
// background jobs into one process.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"staybook/internal/config"
	"staybook/internal/domain/auth"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/gateway"
	"staybook/internal/middleware"
	"staybook/internal/notify"
	"staybook/internal/pkg/jwt"
	"staybook/internal/pkg/response"
	"staybook/internal/realtime"
)

// Models lists every table the API owns.
func Models() []any {
	models := append([]any{}, auth.Models()...)
	models = append(models, property.Models()...)
	models = append(models, booking.Models()...)
	models = append(models, notification.Models()...)
	return models
}

// Realtime returns the redis transport when rdb is set and an in-process
// broker otherwise.
func Realtime(rdb *redis.Client, subscribeTimeout time.Duration) (realtime.Client, realtime.Publisher) {
	if rdb != nil {
		return realtime.NewRedisClient(rdb, subscribeTimeout), realtime.NewRedisPublisher(rdb)
	}
	log.Println("realtime: REDIS_URL not set, using in-process broker")
	broker := realtime.NewMemoryBroker()
	return broker.NewClient(), broker
}

type Server struct {
	cfg       *config.Config
	engine    *gin.Engine
	manager   *notify.Manager
	gateway   *gateway.Handler
	scheduler *cron.Cron

	properties *property.Repository
	meili      *property.MeiliSearcher
}

func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	tokens := jwt.New(cfg.JWTSecret, cfg.JWTAccessTTL)
	rtClient, publisher := Realtime(rdb, cfg.RealtimeSubscribeTimeout)

	userRepo := auth.NewUserRepository(db)
	authService := auth.NewService(userRepo, tokens, cfg.RefreshTokenPepper, cfg.RefreshTTL)
	authHandler := auth.NewHandler(authService, cfg.CookieSecure)

	notifRepo := notification.NewNotificationRepository(db)
	notifService := notification.NewService(notifRepo, publisher)
	notifHandler := notification.NewHandler(notifService)
	cleanup := notification.NewCleanupService(notifRepo, cfg.NotificationRetention)

	propertyRepo := property.NewRepository(db)
	likes := property.NewLikeService(db, rdb)
	views := property.NewViewService(db, rdb)

	s := &Server{cfg: cfg, properties: propertyRepo}

	var searcher property.Searcher = propertyRepo
	if cfg.MeiliHost != "" {
		client := meilisearch.New(cfg.MeiliHost, meilisearch.WithAPIKey(cfg.MeiliAPIKey))
		s.meili = property.NewMeiliSearcher(client, cfg.MeiliIndex, db)
		searcher = s.meili
	}
	propertyHandler := property.NewHandler(searcher, likes, views, cfg.SearchPageSize)

	bookingService := booking.NewService(booking.NewBookingRepository(db), propertyRepo, userRepo, notifService)
	bookingHandler := booking.NewHandler(bookingService)

	s.manager = notify.NewManager(rtClient, notify.WithSubscribeTimeout(cfg.RealtimeSubscribeTimeout))
	s.gateway = gateway.NewHandler(tokens, gateway.Deps{
		Subscriber: s.manager,
		Source:     notifService,
		Bookings:   bookingService,
		Searcher:   searcher,
		Likes:      likes,
		Views:      views,
	}, gateway.Options{
		AllowAnyOrigin: cfg.WSAllowAnyOrigin,
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerSecond:  cfg.GatewayRatePerSecond,
		Burst:          cfg.GatewayBurst,
	})

	s.scheduler = cron.New()
	if _, err := cleanup.Schedule(s.scheduler, cfg.CleanupSchedule); err != nil {
		return nil, err
	}
	if _, err := views.Schedule(s.scheduler, cfg.ViewSyncSchedule); err != nil {
		return nil, err
	}
	if _, err := s.scheduler.AddFunc(cfg.SessionPurgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := authService.PurgeSessions(ctx); err != nil {
			log.Printf("session_purge_error error=%v", err)
		}
	}); err != nil {
		return nil, err
	}

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health", s.health)
	s.gateway.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	authHandler.RegisterPublicRoutes(v1)

	public := v1.Group("")
	public.Use(middleware.OptionalJWTAuth(tokens))

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(tokens))
	{
		authHandler.RegisterProtectedRoutes(protected)
		notification.RegisterRoutes(protected, notifHandler)
		bookingHandler.RegisterRoutes(protected)
	}
	property.RegisterRoutes(public, protected, propertyHandler)

	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(tokens), middleware.AdminOnly())
	notification.RegisterAdminRoutes(admin, notifHandler)

	s.engine = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the background jobs and, with Meilisearch configured, fills
// the search index.
func (s *Server) Start() {
	s.scheduler.Start()
	if s.meili != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			n, err := s.meili.Reindex(ctx, s.properties, 500)
			if err != nil {
				log.Printf("meili_reindex_error indexed=%d error=%v", n, err)
				return
			}
			log.Printf("meili_reindex_done indexed=%d", n)
		}()
	}
}

// Close stops the jobs and tears down every realtime channel.
func (s *Server) Close() {
	<-s.scheduler.Stop().Done()
	s.manager.Close()
}

func (s *Server) health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.gateway.Sessions(),
		"channels": s.manager.ChannelCount(),
	})
}
