package models

import (
	"time"
)

// Listing lifecycle states. A listing enters pending_review when it is sent
// for moderation and only becomes visible after an admin approves it.
const (
	ListingStatusDraft         = "draft"
	ListingStatusPendingReview = "pending_review"
	ListingStatusActive        = "active"
	ListingStatusExpired       = "expired"
	ListingStatusSuspended     = "suspended"
	ListingStatusDeleted       = "deleted"
)

// Availability is a user-controlled axis independent of the lifecycle status.
const (
	AvailabilityAvailable = "available"
	AvailabilityReserved  = "reserved"
	AvailabilitySoldOut   = "sold_out"
	AvailabilityDraft     = "draft"
)

// Listing types with their base publication duration in days. The duration is
// only used when no subscription drives the expiry date.
const (
	ListingTypePuppy    = "PUPPY_LISTING"
	ListingTypeKitten   = "KITTEN_LISTING"
	ListingTypeAdultDog = "ADULT_DOG"
	ListingTypeAdultCat = "ADULT_CAT"
	ListingTypeOther    = "OTHER"
)

var listingTypeDurations = map[string]int{
	ListingTypePuppy:    90,
	ListingTypeKitten:   90,
	ListingTypeAdultDog: 60,
	ListingTypeAdultCat: 60,
	ListingTypeOther:    30,
}

// ListingDurationDays returns the base publication duration for a listing
// type. Unknown types fall back to the OTHER duration.
func ListingDurationDays(listingType string) int {
	if d, ok := listingTypeDurations[listingType]; ok {
		return d
	}
	return listingTypeDurations[ListingTypeOther]
}

// Listing represents a classified pet listing. Status and IsActive are owned
// by the lifecycle engine; Availability is owned by the user.
type Listing struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UUID             string     `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	Type             string     `gorm:"type:varchar(50);not null;default:'OTHER';index" json:"type"`
	Title            string     `gorm:"type:varchar(255);not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	BreedID          uint       `gorm:"index" json:"breed_id"`
	PriceCents       int64      `gorm:"type:bigint;default:0" json:"price_cents"`
	Currency         string     `gorm:"type:varchar(8);default:'EUR'" json:"currency"`
	Status           string     `gorm:"type:varchar(32);not null;default:'pending_review';index:idx_listings_status_active,priority:1" json:"status"`
	IsActive         bool       `gorm:"default:false;index:idx_listings_status_active,priority:2" json:"is_active"`
	Availability     string     `gorm:"type:varchar(32);not null;default:'available'" json:"availability"`
	SubscriptionID   *uint      `gorm:"index" json:"subscription_id,omitempty"`
	PaymentID        *uint      `gorm:"index" json:"payment_id,omitempty"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	PublishedAt      *time.Time `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	StartedAt        *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	SuspendedAt      *time.Time `gorm:"type:timestamp;default:null" json:"suspended_at,omitempty"`
	SuspensionReason string     `gorm:"type:varchar(255)" json:"suspension_reason,omitempty"`
	ViewCount        int64      `gorm:"default:0" json:"view_count"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsDeleted reports whether the listing reached its terminal state.
func (l *Listing) IsDeleted() bool {
	return l.Status == ListingStatusDeleted
}

// RequiredPublishFields must be non-empty before a draft can be published.
func (l *Listing) RequiredPublishFields() map[string]string {
	return map[string]string{
		"title":       l.Title,
		"type":        l.Type,
		"description": l.Description,
	}
}
