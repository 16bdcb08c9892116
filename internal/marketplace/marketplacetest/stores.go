// Package marketplacetest provides in-memory stores and a recording event
// publisher for exercising the marketplace workflow without Postgres.
package marketplacetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"
	"affiliate-marketplace/internal/repository"
)

// Clock hands out strictly increasing timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type ListingStore struct {
	mu     sync.Mutex
	clock  *Clock
	nextID int64
	rows   map[int64]models.Listing
}

func NewListingStore(clock *Clock) *ListingStore {
	return &ListingStore{clock: clock, rows: map[int64]models.Listing{}}
}

func (s *ListingStore) Create(_ context.Context, in models.NewListing) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.clock.Now()
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	l := models.Listing{
		ID:                  s.nextID,
		OwnerID:             in.OwnerID,
		OwnerContact:        in.OwnerContact,
		Name:                in.Name,
		Description:         in.Description,
		URL:                 in.URL,
		CommissionStructure: in.CommissionStructure,
		PaymentTerms:        in.PaymentTerms,
		AffiliateSignupURL:  in.AffiliateSignupURL,
		PromoMaterials:      in.PromoMaterials,
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.rows[l.ID] = l
	return &l, nil
}

func (s *ListingStore) ListByStatus(_ context.Context, status models.ListingStatus) ([]models.Listing, error) {
	return s.filter(func(l models.Listing) bool { return l.Status == status }), nil
}

func (s *ListingStore) ListByOwner(_ context.Context, ownerID string) ([]models.Listing, error) {
	return s.filter(func(l models.Listing) bool { return l.OwnerID == ownerID }), nil
}

func (s *ListingStore) FindByID(_ context.Context, id int64) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (s *ListingStore) UpdateStatus(_ context.Context, id int64, status models.ListingStatus) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = s.clock.Now()
	s.rows[id] = l
	return &l, nil
}

func (s *ListingStore) DeleteByOwner(_ context.Context, id int64, ownerID string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok || l.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	delete(s.rows, id)
	return &l, nil
}

func (s *ListingStore) exists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok
}

func (s *ListingStore) filter(keep func(models.Listing) bool) []models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Listing, 0)
	for _, l := range s.rows {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type favoriteKey struct {
	owner   string
	listing int64
}

// FavoriteStore enforces the same uniqueness and existence rules as the
// Postgres schema.
type FavoriteStore struct {
	mu       sync.Mutex
	listings *ListingStore
	seq      int64
	rows     map[favoriteKey]int64
}

func NewFavoriteStore(listings *ListingStore) *FavoriteStore {
	return &FavoriteStore{listings: listings, rows: map[favoriteKey]int64{}}
}

func (s *FavoriteStore) ListByOwner(_ context.Context, ownerID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct{ listing, seq int64 }
	var rows []row
	for k, seq := range s.rows {
		if k.owner == ownerID {
			rows = append(rows, row{k.listing, seq})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.listing)
	}
	return ids, nil
}

func (s *FavoriteStore) Toggle(_ context.Context, ownerID string, listingID int64) (bool, error) {
	if s.listings != nil && !s.listings.exists(listingID) {
		return false, repository.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := favoriteKey{ownerID, listingID}
	if _, ok := s.rows[key]; ok {
		delete(s.rows, key)
		return false, nil
	}
	s.seq++
	s.rows[key] = s.seq
	return true, nil
}

type WaitlistStore struct {
	mu    sync.Mutex
	clock *Clock
	rows  []models.WaitlistEntry
}

func NewWaitlistStore(clock *Clock) *WaitlistStore {
	return &WaitlistStore{clock: clock}
}

func (s *WaitlistStore) Create(_ context.Context, in models.NewWaitlistEntry) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := models.WaitlistEntry{
		ID:          int64(len(s.rows) + 1),
		Email:       in.Email,
		Feedback:    in.Feedback,
		DesiredApps: in.DesiredApps,
		CreatedAt:   s.clock.Now(),
	}
	s.rows = append(s.rows, e)
	return &e, nil
}

func (s *WaitlistStore) List(context.Context) ([]models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WaitlistEntry{}, s.rows...), nil
}

// Publisher records published events synchronously.
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *Publisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *Publisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// Kinds lists the kinds of the recorded events in order.
func (p *Publisher) Kinds() []events.Kind {
	evs := p.Events()
	out := make([]events.Kind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind()
	}
	return out
}

// Stores bundles a consistent set of in-memory stores.
type Stores struct {
	Clock     *Clock
	Listings  *ListingStore
	Favorites *FavoriteStore
	Waitlist  *WaitlistStore
	Publisher *Publisher
}

func NewStores() *Stores {
	clock := NewClock()
	listings := NewListingStore(clock)
	return &Stores{
		Clock:     clock,
		Listings:  listings,
		Favorites: NewFavoriteStore(listings),
		Waitlist:  NewWaitlistStore(clock),
		Publisher: &Publisher{},
	}
}
