package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/apperr"
	"github.com/FinnKramer/PawMarket/internal/pkg/async"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newUUID() string {
	return uuid.New().String()
}

// Engine is the single authority for mutating a listing's status, isActive,
// expiresAt and subscription link. Both user commands and webhook-driven
// reconciliation go through it so the listing never has two sources of truth.
type Engine struct {
	listings repository.ListingRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	users    repository.UserRepository
	breeds   repository.BreedRepository
	notifier Notifier
	tasks    *async.Runner
	now      func() time.Time
}

// NewEngine creates a lifecycle engine from injected repositories. The
// notifier and task runner handle best-effort side effects.
func NewEngine(repos *repository.Repositories, notifier Notifier, tasks *async.Runner) *Engine {
	if tasks == nil {
		tasks = async.NewRunner(nil)
	}
	return &Engine{
		listings: repos.Listing,
		subs:     repos.Subscription,
		payments: repos.Payment,
		users:    repos.User,
		breeds:   repos.Breed,
		notifier: notifier,
		tasks:    tasks,
		now:      time.Now,
	}
}

// CreateListingInput carries the user-supplied fields for a new listing.
// Status is optional; when present it is applied verbatim.
type CreateListingInput struct {
	Type           string
	Title          string
	Description    string
	BreedID        uint
	PriceCents     int64
	Currency       string
	Availability   string
	Status         string
	ExpiresAt      *time.Time
	PaymentID      *uint
	SubscriptionID *uint
}

// UpdateListingInput is a partial patch; nil fields are left untouched.
type UpdateListingInput struct {
	Title          *string
	Description    *string
	BreedID        *uint
	PriceCents     *int64
	Availability   *string
	Status         *string
	SubscriptionID *uint
}

// CreateListing creates a listing for ownerID. Without an explicit status the
// listing starts in pending_review and inactive. Payment or subscription
// references are linked best-effort: a failed link is logged, the listing
// still exists.
func (e *Engine) CreateListing(ctx context.Context, ownerID uint, in CreateListingInput) (*models.Listing, error) {
	_ = ctx
	if ownerID == 0 {
		return nil, apperr.BadRequest("owner id is required")
	}

	status := in.Status
	if status == "" {
		status = models.ListingStatusPendingReview
	}
	isActive := in.Status != "" &&
		in.Status != models.ListingStatusDraft &&
		in.Status != models.ListingStatusPendingReview

	availability := in.Availability
	if availability == "" {
		availability = models.AvailabilityAvailable
	}

	listingType := in.Type
	if listingType == "" {
		listingType = models.ListingTypeOther
	}

	now := e.now()
	expiresAt := in.ExpiresAt
	if expiresAt == nil {
		t := now.AddDate(0, 0, models.ListingDurationDays(listingType))
		expiresAt = &t
	}

	listing := &models.Listing{
		UUID:         newUUID(),
		UserID:       ownerID,
		Type:         listingType,
		Title:        in.Title,
		Description:  in.Description,
		BreedID:      in.BreedID,
		PriceCents:   in.PriceCents,
		Currency:     in.Currency,
		Status:       status,
		IsActive:     isActive,
		Availability: availability,
		ExpiresAt:    expiresAt,
	}
	if err := e.listings.Create(listing); err != nil {
		return nil, err
	}

	if in.PaymentID != nil {
		if err := e.linkPayment(listing, *in.PaymentID); err != nil {
			log.Warnf("[Lifecycle] listing %d created, payment %d link failed: %v", listing.ID, *in.PaymentID, err)
		}
	}
	if in.SubscriptionID != nil {
		if err := e.linkSubscription(listing, *in.SubscriptionID); err != nil {
			log.Warnf("[Lifecycle] listing %d created, subscription %d link failed: %v", listing.ID, *in.SubscriptionID, err)
		}
	}
	return listing, nil
}

// UpdateListing merges a patch into an owned listing. Status values in the
// patch are applied verbatim; moderation transitions go through
// ApproveListing/RejectListing instead.
func (e *Engine) UpdateListing(ctx context.Context, ownerID, listingID uint, patch UpdateListingInput) (*models.Listing, error) {
	_ = ctx
	listing, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != ownerID {
		return nil, apperr.Forbidden("listing %d does not belong to user %d", listingID, ownerID)
	}

	if patch.Title != nil {
		listing.Title = *patch.Title
	}
	if patch.Description != nil {
		listing.Description = *patch.Description
	}
	if patch.BreedID != nil {
		listing.BreedID = *patch.BreedID
	}
	if patch.PriceCents != nil {
		listing.PriceCents = *patch.PriceCents
	}
	if patch.Availability != nil {
		listing.Availability = *patch.Availability
	}
	if patch.Status != nil {
		listing.Status = *patch.Status
	}
	if err := e.listings.Update(listing); err != nil {
		return nil, err
	}

	if patch.SubscriptionID != nil {
		if err := e.linkSubscription(listing, *patch.SubscriptionID); err != nil {
			log.Warnf("[Lifecycle] listing %d updated, subscription %d link failed: %v", listingID, *patch.SubscriptionID, err)
		}
	}
	return listing, nil
}

// PublishListing moves a draft directly to active. The payment workflow
// bypasses this and drives the listing into moderation instead.
func (e *Engine) PublishListing(ctx context.Context, ownerID, listingID uint) (*models.Listing, error) {
	_ = ctx
	listing, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != ownerID {
		return nil, apperr.Forbidden("listing %d does not belong to user %d", listingID, ownerID)
	}
	if listing.Status != models.ListingStatusDraft {
		return nil, apperr.BadRequest("only draft listings can be published. Current status: %s", listing.Status)
	}
	for field, value := range listing.RequiredPublishFields() {
		if value == "" {
			return nil, apperr.BadRequest("listing is missing required field %q", field)
		}
	}

	now := e.now()
	listing.Status = models.ListingStatusActive
	listing.PublishedAt = &now
	if err := e.listings.Update(listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// ApproveListing is the only path that sets a listing active and visible.
// Requires pending_review. Fires best-effort notification emails to the
// owner and the moderation inbox; their failure never surfaces to the caller.
func (e *Engine) ApproveListing(ctx context.Context, listingID uint) (*models.Listing, error) {
	_ = ctx
	listing, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusPendingReview {
		return nil, apperr.BadRequest("only listings in review can be approved. Current status: %s", listing.Status)
	}

	listing.Status = models.ListingStatusActive
	listing.IsActive = true
	if err := e.listings.Update(listing); err != nil {
		return nil, err
	}

	e.notifyApproval(listing)
	return listing, nil
}

// RejectListing suspends a listing that failed moderation.
func (e *Engine) RejectListing(ctx context.Context, listingID uint, reason string) (*models.Listing, error) {
	_ = ctx
	listing, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusPendingReview {
		return nil, apperr.BadRequest("only listings in review can be rejected. Current status: %s", listing.Status)
	}
	if reason == "" {
		reason = "Listing did not pass moderation review"
	}

	now := e.now()
	listing.Status = models.ListingStatusSuspended
	listing.IsActive = false
	listing.SuspendedAt = &now
	listing.SuspensionReason = reason
	if err := e.listings.Update(listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// DeleteListing soft-deletes an owned listing. Deleted is terminal: nothing,
// including webhook convergence, transitions a listing out of it.
func (e *Engine) DeleteListing(ctx context.Context, ownerID, listingID uint) error {
	_ = ctx
	listing, err := e.getListing(listingID)
	if err != nil {
		return err
	}
	if listing.UserID != ownerID {
		return apperr.Forbidden("listing %d does not belong to user %d", listingID, ownerID)
	}

	return e.listings.UpdateFields(listing.ID, map[string]interface{}{
		"status":    models.ListingStatusDeleted,
		"is_active": false,
	})
}

// ReactivateListing re-activates an expired or suspended listing against a
// paid subscription owned by the same user.
func (e *Engine) ReactivateListing(ctx context.Context, ownerID, listingID, subscriptionID uint) (*models.Listing, error) {
	_ = ctx
	if subscriptionID == 0 {
		return nil, apperr.BadRequest("subscription id is required to reactivate a listing")
	}

	listing, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != ownerID {
		return nil, apperr.Forbidden("listing %d does not belong to user %d", listingID, ownerID)
	}
	if listing.IsDeleted() {
		return nil, apperr.BadRequest("deleted listings cannot be reactivated. Current status: %s", listing.Status)
	}

	sub, err := e.subs.GetByID(subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription %d not found", subscriptionID)
		}
		return nil, err
	}
	if sub.UserID != ownerID {
		return nil, apperr.Forbidden("subscription %d does not belong to user %d", subscriptionID, ownerID)
	}

	now := e.now()
	listing.SubscriptionID = &sub.ID
	listing.Status = models.ListingStatusActive
	listing.IsActive = true
	listing.StartedAt = &now
	if sub.CurrentPeriodEnd != nil {
		listing.ExpiresAt = sub.CurrentPeriodEnd
	}
	if err := e.listings.Update(listing); err != nil {
		return nil, err
	}

	if !sub.IsLinked() {
		sub.ListingID = &listing.ID
		if err := e.subs.Update(sub); err != nil {
			log.Warnf("[Lifecycle] listing %d reactivated, subscription %d back-link failed: %v", listingID, sub.ID, err)
		}
	}
	return listing, nil
}

// ConvergeWithSubscription recomputes the listing's status, isActive and
// expiresAt from the current subscription state. It is idempotent and safe
// to replay; deleted listings are absorbing and never resurrected.
func (e *Engine) ConvergeWithSubscription(ctx context.Context, listing *models.Listing, sub *models.Subscription) error {
	_ = ctx
	if listing == nil || sub == nil {
		return fmt.Errorf("converge requires a listing and a subscription")
	}
	if listing.IsDeleted() {
		return nil
	}

	fields := map[string]interface{}{}

	switch {
	case sub.Status == models.SubscriptionStatusActive:
		if sub.CurrentPeriodEnd != nil {
			listing.ExpiresAt = sub.CurrentPeriodEnd
			fields["expires_at"] = sub.CurrentPeriodEnd
		}
		switch listing.Status {
		case models.ListingStatusDraft, models.ListingStatusExpired:
			// A draft enters moderation once paid; an expired listing must
			// re-clear moderation, it never jumps straight back to active.
			listing.Status = models.ListingStatusPendingReview
			listing.IsActive = false
			fields["status"] = models.ListingStatusPendingReview
			fields["is_active"] = false
		}
	case models.IsInactiveSubscriptionStatus(sub.Status):
		listing.Status = models.ListingStatusExpired
		listing.IsActive = false
		fields["status"] = models.ListingStatusExpired
		fields["is_active"] = false
	default:
		// trialing/incomplete/expired stay as-is until the provider reports
		// a definitive state.
		return nil
	}

	if len(fields) == 0 {
		return nil
	}
	return e.listings.UpdateFields(listing.ID, fields)
}

// SyncListingSubscription loads the listing linked to sub and converges it.
// No-op when the subscription has no listing yet.
func (e *Engine) SyncListingSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub == nil || !sub.IsLinked() {
		return nil
	}
	listing, err := e.getListing(*sub.ListingID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Warnf("[Lifecycle] subscription %d links to missing listing %d", sub.ID, *sub.ListingID)
			return nil
		}
		return err
	}
	return e.ConvergeWithSubscription(ctx, listing, sub)
}

// ExpireDueListings deactivates listings whose expiry date has passed.
// Returns how many were expired.
func (e *Engine) ExpireDueListings(ctx context.Context, asOf time.Time) (int, error) {
	_ = ctx
	due, err := e.listings.ListExpiredActive(asOf, 500)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		l := &due[i]
		if l.IsDeleted() {
			continue
		}
		err := e.listings.UpdateFields(l.ID, map[string]interface{}{
			"status":    models.ListingStatusExpired,
			"is_active": false,
		})
		if err != nil {
			log.Errorf("[Lifecycle] expiring listing %d failed: %v", l.ID, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// RepairSubscriptionLinks back-links subscriptions that never learned their
// listing id. Listings store the forward link at creation time; the sweep
// closes the loop and converges.
func (e *Engine) RepairSubscriptionLinks(ctx context.Context, olderThan time.Time) (int, error) {
	orphans, err := e.subs.ListUnlinked(olderThan, 200)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for i := range orphans {
		sub := &orphans[i]
		listing, err := e.listings.GetBySubscriptionID(sub.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return repaired, err
		}
		sub.ListingID = &listing.ID
		if err := e.subs.Update(sub); err != nil {
			log.Errorf("[Lifecycle] repairing link for subscription %d failed: %v", sub.ID, err)
			continue
		}
		if err := e.ConvergeWithSubscription(ctx, listing, sub); err != nil {
			log.Errorf("[Lifecycle] converge after link repair failed for listing %d: %v", listing.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// linkSubscription attaches a subscription to a listing in both directions
// and converges. Ownership must match; the caller treats failures as
// best-effort.
func (e *Engine) linkSubscription(listing *models.Listing, subscriptionID uint) error {
	sub, err := e.subs.GetByID(subscriptionID)
	if err != nil {
		return err
	}
	if sub.UserID != listing.UserID {
		return apperr.Forbidden("subscription %d does not belong to user %d", subscriptionID, listing.UserID)
	}

	listing.SubscriptionID = &sub.ID
	if err := e.listings.UpdateFields(listing.ID, map[string]interface{}{"subscription_id": sub.ID}); err != nil {
		return err
	}
	if !sub.IsLinked() {
		sub.ListingID = &listing.ID
		if err := e.subs.Update(sub); err != nil {
			return err
		}
	}
	return e.ConvergeWithSubscription(context.Background(), listing, sub)
}

// linkPayment attaches a one-time payment to a listing. Best-effort.
func (e *Engine) linkPayment(listing *models.Listing, paymentID uint) error {
	payment, err := e.payments.GetByID(paymentID)
	if err != nil {
		return err
	}
	if payment.UserID != listing.UserID {
		return apperr.Forbidden("payment %d does not belong to user %d", paymentID, listing.UserID)
	}

	payment.ListingID = &listing.ID
	if err := e.payments.Update(payment); err != nil {
		return err
	}
	listing.PaymentID = &payment.ID
	return e.listings.UpdateFields(listing.ID, map[string]interface{}{"payment_id": payment.ID})
}

func (e *Engine) getListing(id uint) (*models.Listing, error) {
	listing, err := e.listings.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("listing %d not found", id)
		}
		return nil, err
	}
	return listing, nil
}

// notifyApproval dispatches the owner and moderation emails off the request
// path. Missing owner data degrades to skipping the mail, not to an error.
func (e *Engine) notifyApproval(listing *models.Listing) {
	if e.notifier == nil {
		return
	}
	snapshot := *listing

	e.tasks.Go("listing-approved-owner", func() error {
		owner, err := e.users.GetByID(snapshot.UserID)
		if err != nil {
			return fmt.Errorf("resolving owner %d: %w", snapshot.UserID, err)
		}
		breedName := ""
		if snapshot.BreedID != 0 {
			if breed, err := e.breeds.GetByID(snapshot.BreedID); err == nil {
				breedName = breed.Name
			}
		}
		return e.notifier.ListingApproved(&snapshot, owner, breedName)
	})
	e.tasks.Go("listing-approved-admin", func() error {
		return e.notifier.ListingApprovedAdmin(&snapshot)
	})
}
