package maintenance

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"go.uber.org/zap"
)

// Topic identifies maintenance events on a hub.
const Topic = "maintenance"

const maxIDAttempts = 32

// IDProvider issues request identifiers for the supplied instant.
type IDProvider interface {
	NewID(now time.Time) string
}

type randomIDProvider struct{}

// NewRandomIDProvider issues ids shaped MR-YYYYMM-#### with a random four digit suffix.
func NewRandomIDProvider() IDProvider {
	return randomIDProvider{}
}

func (randomIDProvider) NewID(now time.Time) string {
	return formatID(now, rand.IntN(10000))
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Hub        *events.Hub
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store owns maintenance requests and their activity logs.
type Store struct {
	requests   *workflow.Collection[Request]
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs an empty request store.
func NewStore(cfg StoreConfig) *Store {
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewRandomIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		requests: workflow.NewCollection(workflow.CollectionConfig[Request]{
			Topic: Topic,
			Hub:   hub,
			Clock: cfg.Clock,
			Clone: cloneRequest,
		}),
		idProvider: idProvider,
		logger:     logger,
	}
}

// Subscribe registers listener for every committed mutation.
func (s *Store) Subscribe(listener events.Listener) func() {
	return s.requests.Subscribe(listener)
}

// Create stores a new request in under_review with its first activity entry and returns its id.
func (s *Store) Create(submission Submission) string {
	now := s.requests.Now().UTC()
	request := Request{
		Submission: submission,
		Status:     StatusUnderReview,
		Activity: []Activity{{
			Timestamp: now,
			Message:   "Request submitted",
			Actor:     ActorTenant,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	id := s.insertWithFreshID(now, request)

	s.logger.Debug("maintenance request created",
		zap.String("request_id", id),
		zap.String("category", string(submission.Category)),
		zap.String("urgency", string(submission.Urgency)))
	return id
}

// insertWithFreshID stores request under the first free id. Provider draws are tried first; once
// they keep colliding the month's sequence numbers are scanned, which ends after at most Len+1 tries.
func (s *Store) insertWithFreshID(now time.Time, request Request) string {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		request.ID = s.idProvider.NewID(now)
		// Insert only fails on an id collision.
		if err := s.requests.Insert(request.ID, request); err == nil {
			return request.ID
		}
	}
	s.logger.Warn("maintenance id draws exhausted; using sequence", zap.Int("attempts", maxIDAttempts))
	for sequence := 0; ; sequence++ {
		request.ID = formatID(now, sequence)
		if err := s.requests.Insert(request.ID, request); err == nil {
			return request.ID
		}
	}
}

func formatID(now time.Time, suffix int) string {
	return fmt.Sprintf("MR-%s-%04d", now.Format("200601"), suffix)
}

// Transition moves a request to status and records who did it. An empty actor means the landlord.
func (s *Store) Transition(id string, status Status, actor string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.mutate(id, events.KindStatusChanged, actor, func(request *Request) string {
		request.Status = status
		return fmt.Sprintf("Status changed to %s", status)
	})
}

// AssignVendor sets the vendor responsible for the request.
func (s *Store) AssignVendor(id, vendor, actor string) error {
	vendor = strings.TrimSpace(vendor)
	return s.mutate(id, events.KindUpdated, actor, func(request *Request) string {
		request.AssignedVendor = vendor
		return fmt.Sprintf("Vendor assigned: %s", vendor)
	})
}

// SetResolutionNotes replaces the request's resolution notes.
func (s *Store) SetResolutionNotes(id, notes, actor string) error {
	return s.mutate(id, events.KindUpdated, actor, func(request *Request) string {
		request.ResolutionNotes = notes
		return "Resolution notes updated"
	})
}

// Get returns the request stored under id.
func (s *Store) Get(id string) (Request, error) {
	request, ok := s.requests.Get(id)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return request, nil
}

// List returns every request in creation order.
func (s *Store) List() []Request {
	return s.requests.List()
}

// Query returns requests matching filter, newest first. Search covers title, property, unit and id.
func (s *Store) Query(filter Filter) []Request {
	matched := s.requests.Filter(func(request Request) bool {
		if !workflow.MatchesStatus(filter.Status, request.Status) {
			return false
		}
		return workflow.MatchesSearch(filter.Search,
			request.Title, request.PropertyName, request.Unit, request.ID)
	})
	slices.SortStableFunc(matched, func(a, b Request) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return matched
}

func (s *Store) mutate(id string, kind events.Kind, actor string, apply func(*Request) string) error {
	if strings.TrimSpace(actor) == "" {
		actor = ActorLandlord
	}
	err := s.requests.Mutate(id, kind, func(request *Request) error {
		now := s.requests.Now().UTC()
		message := apply(request)
		request.UpdatedAt = now
		request.Activity = append(request.Activity, Activity{
			Timestamp: now,
			Message:   message,
			Actor:     actor,
		})
		return nil
	})
	if errors.Is(err, workflow.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return err
}
