package leases

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"go.uber.org/zap"
)

// Topic identifies lease application events on a hub.
const Topic = "leases"

const draftEntityPrefix = "draft:"

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Hub    *events.Hub
	Clock  func() time.Time
	Logger *zap.Logger
}

// Store owns lease applications, the tenant-side cached copies, staged drafts and draft leases.
//
// Writers are serialized so a status change lands on both copies of an application before the
// next write begins. Listeners may read from the store but must not call its mutating methods.
type Store struct {
	mu           sync.Mutex
	applications *workflow.Collection[Application]
	tenantCopies *workflow.Collection[Application]
	draftLeases  *workflow.Collection[DraftLease]
	drafts       map[string]ApplicationDraft
	hub          *events.Hub
	clock        func() time.Time
	logger       *zap.Logger
}

// NewStore constructs an empty application store.
func NewStore(cfg StoreConfig) *Store {
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		applications: workflow.NewCollection(workflow.CollectionConfig[Application]{
			Topic: Topic,
			Hub:   hub,
			Clock: clock,
			Clone: cloneApplication,
		}),
		tenantCopies: workflow.NewCollection(workflow.CollectionConfig[Application]{
			Clock: clock,
			Clone: cloneApplication,
		}),
		draftLeases: workflow.NewCollection(workflow.CollectionConfig[DraftLease]{
			Clock: clock,
		}),
		drafts: make(map[string]ApplicationDraft),
		hub:    hub,
		clock:  clock,
		logger: logger,
	}
}

// Subscribe registers listener for every committed mutation.
func (s *Store) Subscribe(listener events.Listener) func() {
	return s.hub.Subscribe(listener)
}

// SaveDraftSection stores one section of the tenant's staged draft and returns the whole draft.
func (s *Store) SaveDraftSection(tenantID string, section DraftSection) ApplicationDraft {
	s.mu.Lock()
	draft := s.drafts[tenantID].clone()
	section.applyTo(&draft)
	s.drafts[tenantID] = draft
	s.mu.Unlock()

	s.publishDraft(tenantID)
	return draft.clone()
}

// Draft returns the tenant's staged draft.
func (s *Store) Draft(tenantID string) (ApplicationDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[tenantID]
	if !ok {
		return ApplicationDraft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, tenantID)
	}
	return draft.clone(), nil
}

// DiscardDraft drops the tenant's staged draft.
func (s *Store) DiscardDraft(tenantID string) error {
	s.mu.Lock()
	if _, ok := s.drafts[tenantID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDraftNotFound, tenantID)
	}
	delete(s.drafts, tenantID)
	s.mu.Unlock()

	s.publishDraft(tenantID)
	return nil
}

// Submit records draft as a new submitted application for tenantID and returns its id.
// The draft is assumed complete; see ApplicationDraft.Validate.
func (s *Store) Submit(tenantID, propertyID string, draft ApplicationDraft) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(tenantID, propertyID, draft)
}

// SubmitDraft submits the tenant's staged draft and discards it.
func (s *Store) SubmitDraft(tenantID, propertyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[tenantID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, tenantID)
	}
	delete(s.drafts, tenantID)
	return s.submitLocked(tenantID, propertyID, draft), nil
}

func (s *Store) submitLocked(tenantID, propertyID string, draft ApplicationDraft) string {
	now := s.clock().UTC()
	id := s.nextIDLocked(now)
	application := Application{
		ID:          id,
		TenantID:    tenantID,
		PropertyID:  propertyID,
		Status:      StatusSubmitted,
		Draft:       draft.clone(),
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	// Insert cannot collide: nextIDLocked skips ids already present.
	_ = s.tenantCopies.Insert(id, application)
	_ = s.applications.Insert(id, application)

	s.logger.Debug("lease application submitted",
		zap.String("application_id", id),
		zap.String("tenant_id", tenantID))
	return id
}

func (s *Store) nextIDLocked(now time.Time) string {
	millis := now.UnixMilli()
	for {
		id := fmt.Sprintf("APP-%d", millis)
		if !s.applications.Has(id) && !s.tenantCopies.Has(id) {
			return id
		}
		millis++
	}
}

// StartReview moves a submitted application to under_review.
func (s *Store) StartReview(id string) error {
	return s.transition(id, StatusUnderReview, nil)
}

// RequestMoreInfo records a landlord question; the application stays in (or enters) under_review.
func (s *Store) RequestMoreInfo(id, note string) error {
	note = strings.TrimSpace(note)
	return s.transition(id, StatusUnderReview, func(application *Application) {
		if note != "" {
			application.InfoRequests = append(application.InfoRequests, note)
		}
	})
}

// Reject closes the application as rejected.
func (s *Store) Reject(id, reason string) error {
	reason = strings.TrimSpace(reason)
	return s.transition(id, StatusRejected, func(application *Application) {
		application.RejectionReason = reason
	})
}

// Approve marks the application approved. When terms are supplied the draft lease is created
// and the application proceeds to lease_ready in the same call.
func (s *Store) Approve(id string, terms *LeaseTerms) error {
	if terms != nil {
		if err := terms.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(id, StatusApproved, nil); err != nil {
		return err
	}
	if terms == nil {
		return nil
	}
	return s.attachTermsLocked(id, *terms)
}

// AttachLeaseTerms stores the draft lease for an approved application and moves it to lease_ready.
func (s *Store) AttachLeaseTerms(id string, terms LeaseTerms) error {
	if err := terms.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachTermsLocked(id, terms)
}

func (s *Store) attachTermsLocked(id string, terms LeaseTerms) error {
	application, ok := s.applications.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	if !CanTransition(application.Status, StatusLeaseReady) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, application.Status, StatusLeaseReady)
	}

	lease := DraftLease{ApplicationID: id, Terms: terms, CreatedAt: s.clock().UTC()}
	if err := s.draftLeases.Insert(id, lease); err != nil {
		return err
	}
	return s.transitionLocked(id, StatusLeaseReady, nil)
}

// SignLease records the tenant's signature and moves both copies of the application to
// lease_signed. The trimmed signature must equal the applicant's declared full name and a
// draft lease must exist; the current status is not otherwise checked.
func (s *Store) SignLease(id, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	application, ok := s.applications.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	if !s.draftLeases.Has(id) {
		return newValidationError("draft_lease", "lease terms must be issued before signing")
	}
	if err := VerifySignature(application.Draft.Personal.FullName, signature); err != nil {
		return err
	}

	now := s.clock().UTC()
	signed := strings.TrimSpace(signature)
	err := s.applyLocked(id, events.KindStatusChanged, func(application *Application) {
		application.Status = StatusLeaseSigned
		application.Signature = signed
		application.SignedAt = &now
		application.UpdatedAt = now
	})
	if err == nil {
		s.logger.Info("lease signed", zap.String("application_id", id))
	}
	return err
}

// Get returns the landlord copy of the application.
func (s *Store) Get(id string) (Application, error) {
	application, ok := s.applications.Get(id)
	if !ok {
		return Application{}, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	return application, nil
}

// TenantApplications returns the tenant's cached copies in submission order.
func (s *Store) TenantApplications(tenantID string) []Application {
	return s.tenantCopies.Filter(func(application Application) bool {
		return application.TenantID == tenantID
	})
}

// DraftLease returns the lease terms issued for an application.
func (s *Store) DraftLease(applicationID string) (DraftLease, error) {
	lease, ok := s.draftLeases.Get(applicationID)
	if !ok {
		return DraftLease{}, fmt.Errorf("%w: %s", ErrDraftLeaseNotFound, applicationID)
	}
	return lease, nil
}

// List returns every application in submission order.
func (s *Store) List() []Application {
	return s.applications.List()
}

// Query returns applications matching filter, newest first. Search covers applicant name,
// property and id.
func (s *Store) Query(filter Filter) []Application {
	matched := s.applications.Filter(func(application Application) bool {
		if !workflow.MatchesStatus(filter.Status, application.Status) {
			return false
		}
		return workflow.MatchesSearch(filter.Search,
			application.Draft.Personal.FullName, application.PropertyID, application.ID)
	})
	slices.SortStableFunc(matched, func(a, b Application) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return matched
}

func (s *Store) transition(id string, to Status, apply func(*Application)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, to, apply)
}

func (s *Store) transitionLocked(id string, to Status, apply func(*Application)) error {
	application, ok := s.applications.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	if !CanTransition(application.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, application.Status, to)
	}
	now := s.clock().UTC()
	return s.applyLocked(id, events.KindStatusChanged, func(application *Application) {
		application.Status = to
		application.UpdatedAt = now
		if apply != nil {
			apply(application)
		}
	})
}

// applyLocked updates the tenant copy first so listeners notified by the landlord copy
// observe both changes.
func (s *Store) applyLocked(id string, kind events.Kind, apply func(*Application)) error {
	mutate := func(application *Application) error {
		apply(application)
		return nil
	}
	if err := s.tenantCopies.Mutate(id, kind, mutate); err != nil && !errors.Is(err, workflow.ErrNotFound) {
		return err
	}
	if err := s.applications.Mutate(id, kind, mutate); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
		}
		return err
	}
	return nil
}

func (s *Store) publishDraft(tenantID string) {
	s.hub.Publish(events.Event{
		Topic:    Topic,
		Kind:     events.KindUpdated,
		EntityID: draftEntityPrefix + tenantID,
		At:       s.clock().UTC(),
	})
}
