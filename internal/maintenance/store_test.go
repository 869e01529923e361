package maintenance

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(time.Minute)
	return current
}

type sequenceIDs struct {
	ids []string
}

func (p *sequenceIDs) NewID(time.Time) string {
	id := p.ids[0]
	if len(p.ids) > 1 {
		p.ids = p.ids[1:]
	}
	return id
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := &fixedClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	return NewStore(StoreConfig{Clock: clock.Now})
}

func plumbingSubmission() Submission {
	return Submission{
		TenantID:     "tenant-1",
		TenantName:   "Jane Roe",
		PropertyID:   "prop-1",
		PropertyName: "Maple Court",
		Unit:         "4B",
		Category:     CategoryPlumbing,
		Title:        "Kitchen sink leak",
		Description:  "Water pooling under the sink",
		Urgency:      UrgencyMedium,
		Availability: Availability{Days: []string{"Mon"}, TimeSlots: []string{"morning"}},
		AllowEntry:   true,
		Attachments:  []Attachment{{URI: "file:///leak.jpg", Name: "leak.jpg", Size: 2048, MimeType: "image/jpeg"}},
	}
}

func TestCreateStartsUnderReviewWithOneActivity(t *testing.T) {
	store := newTestStore(t)

	id := store.Create(plumbingSubmission())

	require.Regexp(t, regexp.MustCompile(`^MR-202503-\d{4}$`), id)
	request, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, StatusUnderReview, request.Status)
	require.Len(t, request.Activity, 1)
	require.Equal(t, ActorTenant, request.Activity[0].Actor)
}

func TestVendorThenTransitionScenario(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())

	require.NoError(t, store.AssignVendor(id, "FlowPro Plumbing", ""))
	require.NoError(t, store.Transition(id, StatusInProgress, ""))

	request, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, request.Status)
	require.Equal(t, "FlowPro Plumbing", request.AssignedVendor)
	require.Len(t, request.Activity, 3)
	require.Equal(t, "Request submitted", request.Activity[0].Message)
	require.Equal(t, "Vendor assigned: FlowPro Plumbing", request.Activity[1].Message)
	require.Contains(t, request.Activity[2].Message, string(StatusInProgress))
	require.Equal(t, ActorLandlord, request.Activity[2].Actor)
	require.True(t, request.Activity[1].Timestamp.Before(request.Activity[2].Timestamp))
}

func TestTransitionAllowsAnyOrderAndAppendsOneEntry(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())

	sequence := []Status{StatusResolved, StatusNew, StatusWaitingVendor, StatusCancelled, StatusInProgress}
	for index, status := range sequence {
		require.NoError(t, store.Transition(id, status, "Property Manager"))
		request, err := store.Get(id)
		require.NoError(t, err)
		require.Equal(t, status, request.Status)
		require.Len(t, request.Activity, index+2)
		last := request.Activity[len(request.Activity)-1]
		require.Contains(t, last.Message, string(status))
		require.Equal(t, "Property Manager", last.Actor)
	}
}

func TestMutationsOnUnknownIDLeaveStoreUnchanged(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())
	before := store.List()

	require.ErrorIs(t, store.Transition("MR-000000-0000", StatusResolved, ""), workflow.ErrNotFound)
	require.ErrorIs(t, store.AssignVendor("MR-000000-0000", "Nobody", ""), ErrRequestNotFound)
	require.ErrorIs(t, store.SetResolutionNotes("MR-000000-0000", "n/a", ""), ErrRequestNotFound)

	require.Equal(t, before, store.List())
	request, err := store.Get(id)
	require.NoError(t, err)
	require.Len(t, request.Activity, 1)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())

	require.ErrorIs(t, store.Transition(id, Status("escalated"), ""), ErrInvalidStatus)
	request, _ := store.Get(id)
	require.Len(t, request.Activity, 1)
}

func TestSetResolutionNotesAppendsEntry(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())

	require.NoError(t, store.SetResolutionNotes(id, "Replaced trap seal", ""))
	request, _ := store.Get(id)
	require.Equal(t, "Replaced trap seal", request.ResolutionNotes)
	require.Equal(t, "Resolution notes updated", request.Activity[1].Message)
	require.Equal(t, StatusUnderReview, request.Status)
}

func TestCreateRedrawsCollidingIDs(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}
	store := NewStore(StoreConfig{
		Clock:      clock.Now,
		IDProvider: &sequenceIDs{ids: []string{"MR-202501-0001", "MR-202501-0001", "MR-202501-0002"}},
	})

	first := store.Create(plumbingSubmission())
	second := store.Create(plumbingSubmission())

	require.Equal(t, "MR-202501-0001", first)
	require.Equal(t, "MR-202501-0002", second)
}

func TestCreateFallsBackToSequenceWhenDrawsKeepColliding(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	store := NewStore(StoreConfig{
		Clock:      func() time.Time { return now },
		IDProvider: &sequenceIDs{ids: []string{"MR-202501-0000"}},
	})

	first := store.Create(plumbingSubmission())
	second := store.Create(plumbingSubmission())
	third := store.Create(plumbingSubmission())

	require.Equal(t, []string{"MR-202501-0000", "MR-202501-0001", "MR-202501-0002"}, []string{first, second, third})
	require.Len(t, store.List(), 3)
}

func TestQueryFiltersByStatusAndSearchNewestFirst(t *testing.T) {
	store := newTestStore(t)
	leak := store.Create(plumbingSubmission())

	heater := plumbingSubmission()
	heater.Title = "No hot water"
	heater.Category = CategoryAppliance
	heaterID := store.Create(heater)

	other := plumbingSubmission()
	other.Title = "Broken window"
	other.PropertyName = "Oak Terrace"
	otherID := store.Create(other)
	require.NoError(t, store.Transition(otherID, StatusResolved, ""))

	all := store.Query(Filter{Status: "all"})
	require.Len(t, all, 3)
	require.Equal(t, otherID, all[0].ID)
	require.Equal(t, leak, all[2].ID)

	open := store.Query(Filter{Status: StatusUnderReview})
	require.Len(t, open, 2)

	byProperty := store.Query(Filter{Search: "oak"})
	require.Len(t, byProperty, 1)
	require.Equal(t, otherID, byProperty[0].ID)

	byTitle := store.Query(Filter{Status: StatusUnderReview, Search: "HOT WATER"})
	require.Len(t, byTitle, 1)
	require.Equal(t, heaterID, byTitle[0].ID)

	byID := store.Query(Filter{Search: leak})
	require.Len(t, byID, 1)
}

func TestSubscribersObserveEachMutation(t *testing.T) {
	store := newTestStore(t)
	var received []string
	unsubscribe := store.Subscribe(func(event events.Event) {
		received = append(received, fmt.Sprintf("%s:%s", event.Topic, event.Kind))
		request, err := store.Get(event.EntityID)
		require.NoError(t, err)
		require.NotEmpty(t, request.Activity)
	})
	defer unsubscribe()

	id := store.Create(plumbingSubmission())
	require.NoError(t, store.AssignVendor(id, "FlowPro Plumbing", ""))
	require.NoError(t, store.Transition(id, StatusResolved, ""))

	require.Equal(t, []string{
		"maintenance:created",
		"maintenance:updated",
		"maintenance:status_changed",
	}, received)
}

func TestReturnedRequestsAreDetached(t *testing.T) {
	store := newTestStore(t)
	id := store.Create(plumbingSubmission())

	request, _ := store.Get(id)
	request.Activity[0].Message = "tampered"
	request.Attachments[0].Name = "tampered"

	again, _ := store.Get(id)
	require.Equal(t, "Request submitted", again.Activity[0].Message)
	require.Equal(t, "leak.jpg", again.Attachments[0].Name)
}
