// Package marketplace implements the listing workflow: submission, review,
// withdrawal, favorites and the waitlist. It holds no domain state between
// calls; every operation reads and writes through the stores.
package marketplace

import (
	"context"
	"errors"
	"strings"
	"time"

	"affiliate-marketplace/internal/authz"
	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/metrics"
	"affiliate-marketplace/internal/common/observability"
	"affiliate-marketplace/internal/common/validation"
	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"
	"affiliate-marketplace/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ListingStore interface {
	Create(ctx context.Context, in models.NewListing) (*models.Listing, error)
	ListByStatus(ctx context.Context, status models.ListingStatus) ([]models.Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
	FindByID(ctx context.Context, id int64) (*models.Listing, error)
	UpdateStatus(ctx context.Context, id int64, status models.ListingStatus) (*models.Listing, error)
	DeleteByOwner(ctx context.Context, id int64, ownerID string) (*models.Listing, error)
}

type FavoriteStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]int64, error)
	Toggle(ctx context.Context, ownerID string, listingID int64) (bool, error)
}

type WaitlistStore interface {
	Create(ctx context.Context, in models.NewWaitlistEntry) (*models.WaitlistEntry, error)
	List(ctx context.Context) ([]models.WaitlistEntry, error)
}

// EventPublisher must return immediately; delivery happens elsewhere.
type EventPublisher interface {
	Publish(e events.Event)
}

type ListingSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]models.Listing, error)
}

type FailureLog interface {
	Recent(ctx context.Context, limit int64) ([]models.NotificationFailure, error)
	Counts(ctx context.Context) (map[string]int64, error)
}

// Deps are the collaborators of a Service. Searcher and Failures are
// optional.
type Deps struct {
	Listings  ListingStore
	Favorites FavoriteStore
	Waitlist  WaitlistStore
	Publisher EventPublisher
	Searcher  ListingSearcher
	Failures  FailureLog
	Obs       *observability.Observability
}

type Service struct {
	listings  ListingStore
	favorites FavoriteStore
	waitlist  WaitlistStore
	publisher EventPublisher
	searcher  ListingSearcher
	failures  FailureLog
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewService(deps Deps, log logger.Logger) *Service {
	obs := deps.Obs
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		listings:  deps.Listings,
		favorites: deps.Favorites,
		waitlist:  deps.Waitlist,
		publisher: deps.Publisher,
		searcher:  deps.Searcher,
		failures:  deps.Failures,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "marketplace"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores a new pending listing owned by the actor and announces it.
func (s *Service) Submit(ctx context.Context, c authz.Capability, in models.NewListing) (out *models.Listing, err error) {
	ctx, done := s.track(ctx, "submit")
	defer func() { done(err) }()

	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("submitting a listing requires an actor id")
	}
	in.OwnerID = c.ActorID()
	in.Status = models.StatusPending

	created, err := s.listings.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	metrics.ListingTransitions.WithLabelValues("draft", string(models.StatusPending)).Inc()
	s.publish(events.NewListingSubmitted(*created, s.now()))

	s.logger.Info("listing submitted", map[string]interface{}{
		"listingId": created.ID,
		"ownerId":   created.OwnerID,
	})
	return created, nil
}

// Review records an admin decision. The current status is not checked, so an
// approved or rejected listing can be reviewed again; the previous status
// reported in the event is whatever was read before the write.
func (s *Service) Review(ctx context.Context, c authz.Capability, upd models.StatusUpdate) (out *models.Listing, err error) {
	ctx, done := s.track(ctx, "review")
	defer func() { done(err) }()

	if err := checkStatusUpdate(upd); err != nil {
		return nil, err
	}
	if !c.CanReview() {
		return nil, apperrors.NewForbiddenError("review listing")
	}

	id := upd.ListingID.Int64()
	current, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}

	if current.Status.IsTerminal() {
		s.logger.Warn("re-reviewing a listing that already has a decision", map[string]interface{}{
			"listingId":      id,
			"previousStatus": string(current.Status),
			"newStatus":      string(upd.Status),
			"reviewerId":     c.ActorID(),
		})
	}

	updated, err := s.listings.UpdateStatus(ctx, id, upd.Status)
	if err != nil {
		return nil, notFound(err, id)
	}

	metrics.ListingTransitions.WithLabelValues(string(current.Status), string(updated.Status)).Inc()
	s.publish(events.NewListingStatusChanged(*updated, current.Status, c.ActorID(), s.now()))

	s.logger.Info("listing reviewed", map[string]interface{}{
		"listingId":      id,
		"previousStatus": string(current.Status),
		"newStatus":      string(updated.Status),
		"reviewerId":     c.ActorID(),
	})
	return updated, nil
}

// ToggleFavorite flips the actor's bookmark on a listing. No event is raised.
func (s *Service) ToggleFavorite(ctx context.Context, c authz.Capability, in models.FavoriteToggle) (out *models.ToggleResult, err error) {
	ctx, done := s.track(ctx, "toggle_favorite")
	defer func() { done(err) }()

	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("favorites require an actor id")
	}
	if in.ListingID <= 0 {
		return nil, apperrors.NewFieldError("listingId", validation.CodeMinimumViolation, "listingId must be a positive integer")
	}

	id := in.ListingID.Int64()
	on, err := s.favorites.Toggle(ctx, c.ActorID(), id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return &models.ToggleResult{ListingID: id, IsFavorite: on}, nil
}

// DeleteOwn removes a listing the actor owns. Absent and not-owned listings
// produce the same NotFound. The delete itself is still filtered by owner,
// so a listing that changes hands in between is never removed.
func (s *Service) DeleteOwn(ctx context.Context, c authz.Capability, listingID models.ListingID) (out *models.Listing, err error) {
	ctx, done := s.track(ctx, "delete_own")
	defer func() { done(err) }()

	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("deleting a listing requires an actor id")
	}
	if listingID <= 0 {
		return nil, apperrors.NewFieldError("listingId", validation.CodeMinimumViolation, "listingId must be a positive integer")
	}

	id := listingID.Int64()
	existing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	if !c.CanDeleteListing(existing) {
		return nil, apperrors.NewNotFoundError("listing", id)
	}

	deleted, err := s.listings.DeleteByOwner(ctx, id, c.ActorID())
	if err != nil {
		return nil, notFound(err, id)
	}

	s.publish(events.NewListingWithdrawn(*deleted, s.now()))
	s.logger.Info("listing withdrawn", map[string]interface{}{
		"listingId": id,
		"ownerId":   c.ActorID(),
	})
	return deleted, nil
}

func (s *Service) ListApproved(ctx context.Context) (out []models.Listing, err error) {
	ctx, done := s.track(ctx, "list_approved")
	defer func() { done(err) }()

	approved, err := s.listings.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	return models.PublicListings(approved), nil
}

func (s *Service) ListPending(ctx context.Context, c authz.Capability) (out []models.Listing, err error) {
	ctx, done := s.track(ctx, "list_pending")
	defer func() { done(err) }()

	if !c.CanReview() {
		return nil, apperrors.NewForbiddenError("list pending listings")
	}
	return s.listings.ListByStatus(ctx, models.StatusPending)
}

func (s *Service) ListOwn(ctx context.Context, c authz.Capability) (out []models.Listing, err error) {
	ctx, done := s.track(ctx, "list_own")
	defer func() { done(err) }()

	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("listing own listings requires an actor id")
	}
	return s.listings.ListByOwner(ctx, c.ActorID())
}

// ListFavorites returns the ids the actor has favorited.
func (s *Service) ListFavorites(ctx context.Context, c authz.Capability) (out []int64, err error) {
	ctx, done := s.track(ctx, "list_favorites")
	defer func() { done(err) }()

	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("favorites require an actor id")
	}
	return s.favorites.ListByOwner(ctx, c.ActorID())
}

// FavoriteListings returns the approved listings the actor has favorited, in
// display order.
func (s *Service) FavoriteListings(ctx context.Context, c authz.Capability) ([]models.Listing, error) {
	ids, err := s.ListFavorites(ctx, c)
	if err != nil {
		return nil, err
	}
	approved, err := s.ListApproved(ctx)
	if err != nil {
		return nil, err
	}

	favs := make([]interface{}, len(ids))
	for i, id := range ids {
		favs[i] = id
	}
	return models.FilterFavorites(approved, func(l models.Listing) interface{} { return l.ID }, favs), nil
}

// SearchApproved runs a text query over approved listings. Without a search
// backend it falls back to a case-insensitive substring match.
func (s *Service) SearchApproved(ctx context.Context, q string, limit int) (out []models.Listing, err error) {
	ctx, done := s.track(ctx, "search_approved")
	defer func() { done(err) }()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.NewFieldError("q", validation.CodeRequiredFieldMissing, "q is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if s.searcher != nil {
		hits, err := s.searcher.Search(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		return models.PublicListings(hits), nil
	}

	approved, err := s.listings.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)
	out = make([]models.Listing, 0)
	for _, l := range approved {
		hay := strings.ToLower(l.Name + " " + l.Description + " " + l.CommissionStructure + " " + l.PaymentTerms)
		if strings.Contains(hay, needle) {
			out = append(out, l.Public())
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Service) SubmitWaitlistEntry(ctx context.Context, in models.NewWaitlistEntry) (out *models.WaitlistEntry, err error) {
	ctx, done := s.track(ctx, "submit_waitlist_entry")
	defer func() { done(err) }()

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return nil, apperrors.NewFieldError("email", validation.CodeRequiredFieldMissing, "email is required")
	}
	return s.waitlist.Create(ctx, in)
}

func (s *Service) ListWaitlistEntries(ctx context.Context, c authz.Capability) (out []models.WaitlistEntry, err error) {
	ctx, done := s.track(ctx, "list_waitlist_entries")
	defer func() { done(err) }()

	if !c.IsAdmin() {
		return nil, apperrors.NewForbiddenError("list waitlist entries")
	}
	return s.waitlist.List(ctx)
}

// NotificationFailures returns recent delivery failures, newest first, with
// per-subscriber totals. Without a failure log the report is empty.
func (s *Service) NotificationFailures(ctx context.Context, c authz.Capability, limit int64) (out *models.NotificationFailureReport, err error) {
	ctx, done := s.track(ctx, "notification_failures")
	defer func() { done(err) }()

	if !c.IsAdmin() {
		return nil, apperrors.NewForbiddenError("list notification failures")
	}
	report := &models.NotificationFailureReport{
		Recent:       []models.NotificationFailure{},
		BySubscriber: map[string]int64{},
	}
	if s.failures == nil {
		return report, nil
	}

	if report.Recent, err = s.failures.Recent(ctx, limit); err != nil {
		return nil, err
	}
	if report.BySubscriber, err = s.failures.Counts(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) publish(e events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(e)
}

// track opens a span for operation and returns a func that closes it and
// records the outcome.
func (s *Service) track(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "marketplace."+operation)
	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			code := apperrors.AsStandard(err).Code
			outcome = string(code)
			span.SetAttributes(attribute.String("error.code", outcome))
			span.SetStatus(codes.Error, err.Error())
		}
		s.obs.RecordOperation(ctx, operation, outcome, time.Since(start))
		span.End()
	}
}

func checkStatusUpdate(upd models.StatusUpdate) error {
	var fields []apperrors.FieldError
	if upd.ListingID <= 0 {
		fields = append(fields, apperrors.FieldError{
			Field:   "listingId",
			Code:    validation.CodeMinimumViolation,
			Message: "listingId must be a positive integer",
		})
	}
	if !upd.Status.IsReviewOutcome() {
		fields = append(fields, apperrors.FieldError{
			Field:   "status",
			Code:    validation.CodeInvalidEnumValue,
			Message: "status must be one of: approved, rejected",
		})
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}
	return nil
}

func notFound(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("listing", id)
	}
	return err
}
