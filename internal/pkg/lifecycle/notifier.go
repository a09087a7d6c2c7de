package lifecycle

import (
	"fmt"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/internal/pkg/env"
	"github.com/FinnKramer/PawMarket/internal/pkg/mail"
)

// Notifier sends the moderation outcome emails. Implementations are
// best-effort; the engine never fails an operation over a notification.
type Notifier interface {
	ListingApproved(listing *models.Listing, owner *models.User, breedName string) error
	ListingApprovedAdmin(listing *models.Listing) error
}

// MailNotifier sends notifications through the SMTP mailer templates.
type MailNotifier struct{}

// NewMailNotifier creates the default mail-backed notifier.
func NewMailNotifier() *MailNotifier {
	return &MailNotifier{}
}

func (n *MailNotifier) ListingApproved(listing *models.Listing, owner *models.User, breedName string) error {
	if owner == nil || owner.Email == "" {
		return nil
	}
	return mail.SendTemplate(owner.Email, mail.TemplateListingApproved, map[string]interface{}{
		"name":       owner.Name,
		"title":      listing.Title,
		"breed":      breedName,
		"listing_id": listing.UUID,
	})
}

func (n *MailNotifier) ListingApprovedAdmin(listing *models.Listing) error {
	admin := env.GetEnv("ADMIN_EMAIL", "")
	if admin == "" {
		return fmt.Errorf("ADMIN_EMAIL is not configured")
	}
	return mail.SendTemplate(admin, mail.TemplateListingApprovedAdmin, map[string]interface{}{
		"title":      listing.Title,
		"listing_id": listing.UUID,
		"user_id":    listing.UserID,
	})
}
