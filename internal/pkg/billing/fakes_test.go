package billing

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
)

// In-memory repository fakes mirroring the persistence semantics the
// reconciler depends on: upsert keyed by provider subscription id, payment
// dedup by provider charge id, webhook event dedup by provider event id.

func newFakeRepositories() *repository.Repositories {
	return &repository.Repositories{
		User:         &fakeUserRepo{items: map[uint]models.User{}},
		Listing:      &fakeListingRepo{items: map[uint]models.Listing{}},
		Subscription: &fakeSubscriptionRepo{items: map[uint]models.Subscription{}},
		Payment:      &fakePaymentRepo{items: map[uint]models.Payment{}},
		WebhookEvent: &fakeWebhookEventRepo{items: map[string]models.WebhookEvent{}},
		Breed:        &fakeBreedRepo{items: map[uint]models.Breed{}},
	}
}

type fakeListingRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.Listing
}

func (f *fakeListingRepo) Create(listing *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	listing.ID = f.nextID
	listing.CreatedAt = time.Now()
	f.items[listing.ID] = *listing
	return nil
}

func (f *fakeListingRepo) GetByID(id uint) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := l
	return &out, nil
}

func (f *fakeListingRepo) GetByUUID(uuid string) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.items {
		if l.UUID == uuid {
			out := l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeListingRepo) GetBySubscriptionID(subscriptionID uint) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.items {
		if l.SubscriptionID != nil && *l.SubscriptionID == subscriptionID {
			out := l
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeListingRepo) GetByUserID(userID uint, offset, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.items {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingRepo) GetByStatus(status string, offset, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.items {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingRepo) ListPublic(offset, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.items {
		if l.Status == models.ListingStatusActive && l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingRepo) Update(listing *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[listing.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.items[listing.ID] = *listing
	return nil
}

func (f *fakeListingRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			l.Status = value.(string)
		case "is_active":
			l.IsActive = value.(bool)
		case "expires_at":
			l.ExpiresAt = value.(*time.Time)
		case "subscription_id":
			id := value.(uint)
			l.SubscriptionID = &id
		case "payment_id":
			id := value.(uint)
			l.PaymentID = &id
		default:
			return fmt.Errorf("fakeListingRepo: unsupported field %q", key)
		}
	}
	f.items[id] = l
	return nil
}

func (f *fakeListingRepo) ListExpiredActive(asOf time.Time, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Listing
	for _, l := range f.items {
		if l.IsActive && l.ExpiresAt != nil && l.ExpiresAt.Before(asOf) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingRepo) CountByStatus(status string) (int64, error) {
	listings, _ := f.GetByStatus(status, 0, 0)
	return int64(len(listings)), nil
}

func (f *fakeListingRepo) GetPhotos(listingID uint) ([]models.ListingPhoto, error) {
	return nil, nil
}

func (f *fakeListingRepo) AddPhoto(photo *models.ListingPhoto) error { return nil }

func (f *fakeListingRepo) DeletePhoto(id uint) error { return nil }

type fakeSubscriptionRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.Subscription
}

func (f *fakeSubscriptionRepo) key(paymentMethod, subID string) (models.Subscription, bool) {
	for _, s := range f.items {
		if s.PaymentMethod == paymentMethod && s.SubscriptionID == subID {
			return s, true
		}
	}
	return models.Subscription{}, false
}

// UpsertByProviderID mirrors the real repository: last write wins on the
// updatable columns, but id, created_at and the listing link survive, and the
// caller's struct is refreshed from the stored row.
func (f *fakeSubscriptionRepo) UpsertByProviderID(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.key(sub.PaymentMethod, sub.SubscriptionID); ok {
		sub.ID = existing.ID
		sub.ListingID = existing.ListingID
		sub.CreatedAt = existing.CreatedAt
	} else {
		f.nextID++
		sub.ID = f.nextID
		sub.CreatedAt = time.Now()
	}
	f.items[sub.ID] = *sub
	return nil
}

func (f *fakeSubscriptionRepo) GetByID(id uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := s
	return &out, nil
}

func (f *fakeSubscriptionRepo) GetByProviderID(paymentMethod, providerSubscriptionID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.key(paymentMethod, providerSubscriptionID); ok {
		out := s
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubscriptionRepo) GetByListingID(listingID uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.items {
		if s.ListingID != nil && *s.ListingID == listingID {
			out := s
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubscriptionRepo) ListByUser(userID uint) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.items {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionRepo) ListUnlinked(olderThan time.Time, limit int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.items {
		if s.ListingID == nil && s.CreatedAt.Before(olderThan) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionRepo) Update(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[sub.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.items[sub.ID] = *sub
	return nil
}

type fakePaymentRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.Payment
}

func (f *fakePaymentRepo) CreateIfNotExists(payment *models.Payment) (bool, *models.Payment, error) {
	if err := payment.Validate(); err != nil {
		return false, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.ProviderKey() == payment.ProviderKey() {
			out := p
			return false, &out, nil
		}
	}
	f.nextID++
	payment.ID = f.nextID
	f.items[payment.ID] = *payment
	out := *payment
	return true, &out, nil
}

func (f *fakePaymentRepo) GetByID(id uint) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := p
	return &out, nil
}

func (f *fakePaymentRepo) GetByPaymentIntentID(paymentIntentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.PaymentIntentID != nil && *p.PaymentIntentID == paymentIntentID {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) GetByPayPalOrderID(paypalOrderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.PayPalOrderID != nil && *p.PayPalOrderID == paypalOrderID {
			out := p
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) ListBySubscription(subscriptionID uint) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.items {
		if p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) Update(payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[payment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.items[payment.ID] = *payment
	return nil
}

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[string]models.WebhookEvent
}

func (f *fakeWebhookEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := f.items[key]; ok {
		out := stored
		return false, &out, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.items[key] = *event
	out := *event
	return true, &out, nil
}

func (f *fakeWebhookEventRepo) MarkProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.items {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			f.items[key] = e
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.User
}

func (f *fakeUserRepo) Create(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.items[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := u
	return &out, nil
}

func (f *fakeUserRepo) GetByUUID(uuid string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByActivationToken(token string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Update(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items)), nil
}

type fakeBreedRepo struct {
	items map[uint]models.Breed
}

func (f *fakeBreedRepo) GetByID(id uint) (*models.Breed, error) {
	b, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := b
	return &out, nil
}

func (f *fakeBreedRepo) List() ([]models.Breed, error) {
	var out []models.Breed
	for _, b := range f.items {
		out = append(out, b)
	}
	return out, nil
}
