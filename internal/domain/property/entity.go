package property

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusSuspended Status = "suspended"
)

// Property is a listing a host rents out by the night.
type Property struct {
	ID            int64     `gorm:"primaryKey;column:id" json:"id"`
	HostID        int64     `gorm:"column:host_id;not null;index" json:"host_id"`
	Title         string    `gorm:"column:title;not null" json:"title"`
	Description   string    `gorm:"column:description" json:"description,omitempty"`
	City          string    `gorm:"column:city;size:128;index" json:"city"`
	Country       string    `gorm:"column:country;size:128" json:"country"`
	Latitude      float64   `gorm:"column:latitude" json:"latitude"`
	Longitude     float64   `gorm:"column:longitude" json:"longitude"`
	PropertyType  string    `gorm:"column:property_type;size:32;index" json:"property_type"`
	Bedrooms      int       `gorm:"column:bedrooms;not null;default:0" json:"bedrooms"`
	Bathrooms     int       `gorm:"column:bathrooms;not null;default:0" json:"bathrooms"`
	MaxGuests     int       `gorm:"column:max_guests;not null;default:1" json:"max_guests"`
	PricePerNight float64   `gorm:"column:price_per_night;not null" json:"price_per_night"`
	Rating        float64   `gorm:"column:rating;not null;default:0" json:"rating"`
	ReviewCount   int       `gorm:"column:review_count;not null;default:0" json:"review_count"`
	ViewCount     int64     `gorm:"column:view_count;not null;default:0" json:"view_count"`
	LikeCount     int64     `gorm:"column:like_count;not null;default:0" json:"like_count"`
	Status        Status    `gorm:"column:status;size:16;not null;default:published" json:"status"`
	Amenities     []Amenity `gorm:"foreignKey:PropertyID" json:"-"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// AmenityNames flattens the loaded amenity rows.
func (p *Property) AmenityNames() []string {
	out := make([]string, 0, len(p.Amenities))
	for _, a := range p.Amenities {
		out = append(out, a.Name)
	}
	return out
}

type Amenity struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	PropertyID int64  `gorm:"column:property_id;not null;uniqueIndex:idx_property_amenity,priority:1"`
	Name       string `gorm:"column:name;size:64;not null;uniqueIndex:idx_property_amenity,priority:2;index"`
}

func (Amenity) TableName() string {
	return "property_amenities"
}

// Like records that a user saved a property. One row per user and property.
type Like struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex:idx_property_like,priority:1"`
	PropertyID int64     `gorm:"column:property_id;not null;uniqueIndex:idx_property_like,priority:2;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (Like) TableName() string {
	return "property_likes"
}

// Models lists every table this package owns, for migrations.
func Models() []any {
	return []any{&Property{}, &Amenity{}, &Like{}}
}
