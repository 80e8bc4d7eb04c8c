package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain/auth"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/realtime"
	"staybook/internal/server"
)

type city struct {
	name     string
	country  string
	lat, lng float64
}

var cities = []city{
	{"Almaty", "Kazakhstan", 43.2389, 76.8897},
	{"Astana", "Kazakhstan", 51.1694, 71.4491},
	{"Shymkent", "Kazakhstan", 42.3417, 69.5901},
	{"Tbilisi", "Georgia", 41.7151, 44.8271},
}

var (
	propertyTypes = []string{"apartment", "house", "villa", "cabin", "studio"}
	amenityPool   = []string{"wifi", "kitchen", "parking", "pool", "air_conditioning", "washer", "workspace", "fireplace"}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db, server.Models()...); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	// Child tables first.
	log.Println("Cleaning old data...")
	for _, table := range []string{"notifications", "bookings", "property_likes", "property_amenities", "properties", "refresh_tokens", "users"} {
		db.Exec("DELETE FROM " + table)
	}

	// ================== USERS ==================
	log.Println("Creating users...")
	users := auth.NewUserRepository(db)
	mkUser := func(name, email, password string, role auth.UserRole) *auth.User {
		hash, err := auth.HashPassword(password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		u := &auth.User{Name: name, Email: email, PasswordHash: hash, Role: role}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", email, err)
		}
		return u
	}

	mkUser("Administrator", "admin@staybook.dev", "admin12345", auth.RoleAdmin)
	log.Println("Admin created: admin@staybook.dev / admin12345")

	hosts := make([]*auth.User, 0, 3)
	for i := 1; i <= 3; i++ {
		hosts = append(hosts, mkUser(fmt.Sprintf("Host %d", i), fmt.Sprintf("host%d@staybook.dev", i), "host12345", auth.RoleHost))
	}
	guests := make([]*auth.User, 0, 4)
	for i := 1; i <= 4; i++ {
		guests = append(guests, mkUser(fmt.Sprintf("Guest %d", i), fmt.Sprintf("guest%d@staybook.dev", i), "guest12345", auth.RoleGuest))
	}
	log.Println("Hosts: host{1..3}@staybook.dev / host12345, guests: guest{1..4}@staybook.dev / guest12345")

	// ================== PROPERTIES ==================
	log.Println("Creating properties...")
	props := property.NewRepository(db)
	listings := make([]*property.Property, 0, 24)
	for i := 0; i < 24; i++ {
		c := cities[i%len(cities)]
		bedrooms := 1 + rand.Intn(4)
		p := &property.Property{
			HostID:        hosts[i%len(hosts)].ID,
			Title:         fmt.Sprintf("%s %s #%d", c.name, propertyTypes[i%len(propertyTypes)], i+1),
			Description:   "Bright place close to the centre.",
			City:          c.name,
			Country:       c.country,
			Latitude:      c.lat + (rand.Float64()-0.5)*0.1,
			Longitude:     c.lng + (rand.Float64()-0.5)*0.1,
			PropertyType:  propertyTypes[i%len(propertyTypes)],
			Bedrooms:      bedrooms,
			Bathrooms:     1 + rand.Intn(bedrooms),
			MaxGuests:     bedrooms * 2,
			PricePerNight: float64(40 + rand.Intn(260)),
			Rating:        math.Round((3.5+rand.Float64()*1.5)*10) / 10,
			ReviewCount:   rand.Intn(120),
			Status:        property.StatusPublished,
		}
		amenities := pickAmenities(2 + rand.Intn(4))
		if err := props.Create(ctx, p, amenities...); err != nil {
			log.Fatalf("create property: %v", err)
		}
		listings = append(listings, p)
	}

	// ================== BOOKINGS ==================
	// Notifications go through the service so they get the same text and
	// payload shape as live ones; nothing is listening during a seed.
	log.Println("Creating bookings and notifications...")
	notifs := notification.NewService(notification.NewNotificationRepository(db), realtime.NewMemoryBroker())
	bookings := booking.NewBookingRepository(db)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i, guest := range guests {
		for j := 0; j < 3; j++ {
			p := listings[(i*5+j*7)%len(listings)]
			checkIn := today.AddDate(0, 0, 7+i*10+j*3)
			b := &booking.Booking{
				RequestKey: uuid.NewString(),
				PropertyID: p.ID,
				GuestID:    guest.ID,
				HostID:     p.HostID,
				CheckIn:    checkIn,
				CheckOut:   checkIn.AddDate(0, 0, 2),
				Guests:     1,
				Status:     booking.StatusPending,
			}
			b.TotalPrice = math.Round(float64(b.Nights())*p.PricePerNight*100) / 100
			if j == 1 {
				b.Status = booking.StatusConfirmed
			}
			if err := bookings.Create(ctx, b); err != nil {
				log.Fatalf("create booking: %v", err)
			}

			payload := b.Payload(p.Title, guest.Name)
			if b.Status == booking.StatusPending {
				err = notifs.NotifyBookingRequestCreated(ctx, b.HostID, payload)
			} else {
				err = notifs.NotifyBookingConfirmed(ctx, b.GuestID, payload)
			}
			if err != nil {
				log.Fatalf("create notification: %v", err)
			}
		}
	}

	log.Printf("Seed completed: hosts=%d guests=%d properties=%d bookings=%d", len(hosts), len(guests), len(listings), len(guests)*3)
}

func pickAmenities(n int) []string {
	perm := rand.Perm(len(amenityPool))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, amenityPool[idx])
	}
	return out
}
