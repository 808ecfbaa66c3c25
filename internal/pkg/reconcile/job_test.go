package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/notify"
	"github.com/erpeaz/siteboard/internal/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- fakes ---

type fakeSource struct {
	sites      []upstream.Site
	sitesErr   error
	expired    []upstream.ExpiredPlan
	fetchCalls int
}

func (f *fakeSource) FetchSites(ctx context.Context) ([]upstream.Site, error) {
	f.fetchCalls++
	if f.sitesErr != nil {
		return nil, f.sitesErr
	}
	return f.sites, nil
}

func (f *fakeSource) FetchExpiredPlans(ctx context.Context) []upstream.ExpiredPlan {
	return f.expired
}

type fakeSubRepo struct {
	subs map[string]*models.SiteSubscription
}

func (f *fakeSubRepo) Create(sub *models.SiteSubscription) error {
	if _, ok := f.subs[sub.SiteID]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *sub
	f.subs[sub.SiteID] = &cp
	return nil
}

func (f *fakeSubRepo) GetBySiteID(siteID string) (*models.SiteSubscription, error) {
	sub, ok := f.subs[siteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubRepo) ExistsBySiteID(siteID string) (bool, error) {
	_, ok := f.subs[siteID]
	return ok, nil
}

func (f *fakeSubRepo) Update(sub *models.SiteSubscription) error {
	cp := *sub
	f.subs[sub.SiteID] = &cp
	return nil
}

type fakeSnapRepo struct {
	snaps map[string]*models.SiteSnapshot
}

func (f *fakeSnapRepo) CreateIfAbsent(snap *models.SiteSnapshot) (bool, error) {
	if _, ok := f.snaps[snap.SiteID]; ok {
		return false, nil
	}
	cp := *snap
	f.snaps[snap.SiteID] = &cp
	return true, nil
}

func (f *fakeSnapRepo) GetBySiteID(siteID string) (*models.SiteSnapshot, error) {
	snap, ok := f.snaps[siteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return snap, nil
}

func (f *fakeSnapRepo) Count() (int64, error) {
	return int64(len(f.snaps)), nil
}

type fakeNoteRepo struct {
	notes []models.Notification
}

func (f *fakeNoteRepo) Create(n *models.Notification) error {
	n.ID = uint(len(f.notes) + 1)
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeNoteRepo) List(unreadOnly bool, limit int) ([]models.Notification, error) {
	return f.notes, nil
}

func (f *fakeNoteRepo) MarkRead(id uint) (*models.Notification, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNoteRepo) MarkAllRead() error { return nil }

func (f *fakeNoteRepo) ExistsWithMeta(siteID, eventType string, meta map[string]string) (bool, error) {
	for _, n := range f.notes {
		if n.SiteID != siteID || n.EventType != eventType {
			continue
		}
		match := true
		for k, v := range meta {
			if fmt.Sprintf("%v", n.Meta[k]) != v {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNoteRepo) ofType(eventType string) []models.Notification {
	var out []models.Notification
	for _, n := range f.notes {
		if n.EventType == eventType {
			out = append(out, n)
		}
	}
	return out
}

type fakeTrialRepo struct {
	states map[string]*models.TrialAlertState
}

func (f *fakeTrialRepo) GetBySiteID(siteID string) (*models.TrialAlertState, error) {
	state, ok := f.states[siteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *state
	return &cp, nil
}

func (f *fakeTrialRepo) Upsert(state *models.TrialAlertState) error {
	cp := *state
	f.states[state.SiteID] = &cp
	return nil
}

// --- harness ---

type harness struct {
	source *fakeSource
	subs   *fakeSubRepo
	snaps  *fakeSnapRepo
	notes  *fakeNoteRepo
	trials *fakeTrialRepo
	hub    *notify.Hub
	job    *Job
}

func newHarness(now time.Time) *harness {
	h := &harness{
		source: &fakeSource{},
		subs:   &fakeSubRepo{subs: make(map[string]*models.SiteSubscription)},
		snaps:  &fakeSnapRepo{snaps: make(map[string]*models.SiteSnapshot)},
		notes:  &fakeNoteRepo{},
		trials: &fakeTrialRepo{states: make(map[string]*models.TrialAlertState)},
		hub:    notify.NewHub(),
	}
	repos := &repository.Repositories{
		Subscription: h.subs,
		Snapshot:     h.snaps,
		Notification: h.notes,
		TrialAlert:   h.trials,
	}
	h.job = NewJob(h.source, repos, h.hub).
		WithClock(func() time.Time { return now }).
		WithMailer(nil).
		WithLease(func(string, time.Duration) (bool, error) { return true, nil }, func(string) error { return nil })
	return h
}

func (h *harness) setClock(now time.Time) {
	h.job.WithClock(func() time.Time { return now })
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

// --- tests ---

func TestNewSiteEmitsOnce(t *testing.T) {
	now := date(2024, time.March, 1)
	h := newHarness(now)
	created := date(2024, time.February, 20)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "premium", CreatedAt: timePtr(created)},
	}

	require.NoError(t, h.job.RunTick(context.Background()))

	require.Len(t, h.notes.ofType(models.EventSiteCreated), 1)
	n := h.notes.ofType(models.EventSiteCreated)[0]
	assert.Equal(t, "S1", n.SiteID)
	assert.Equal(t, models.SeveritySuccess, n.Severity)
	assert.Equal(t, "Alpha was added.", n.Message)
	assert.Len(t, h.snaps.snaps, 1)

	// Subscription was backfilled from the upstream creation date.
	sub, err := h.subs.GetBySiteID("S1")
	require.NoError(t, err)
	assert.Equal(t, "premium", sub.PlanKey)
	assert.Equal(t, created.AddDate(0, 0, 14), sub.TrialEndAt)
	assert.Equal(t, created.AddDate(0, 0, 14).AddDate(0, 12, 0), sub.ExpiryAt)

	// Identical second tick emits nothing new.
	before := len(h.notes.notes)
	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Len(t, h.notes.notes, before)
}

func TestSiteCreatedPublishedToHub(t *testing.T) {
	now := date(2024, time.March, 1)
	h := newHarness(now)
	_, ch := h.hub.Subscribe()
	h.source.sites = []upstream.Site{{ID: "S1", Name: "Alpha", Plan: "basic"}}

	require.NoError(t, h.job.RunTick(context.Background()))

	n := <-ch
	assert.Equal(t, models.EventSiteCreated, n.EventType)
	assert.Equal(t, "S1", n.SiteID)
}

func TestTrialEndingThenEndedEmitOnceEach(t *testing.T) {
	trialStart := date(2024, time.March, 1)
	// Trial ends March 15. On March 13 there are 2 days left.
	now := date(2024, time.March, 13)
	h := newHarness(now)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "premium", CreatedAt: timePtr(trialStart), TrialStart: timePtr(trialStart), TrialDays: 14},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	ending := h.notes.ofType(models.EventTrialEnding)
	require.Len(t, ending, 1)
	assert.Equal(t, "Alpha trial ends in 2 day(s).", ending[0].Message)
	assert.Equal(t, 2, ending[0].Meta["days_left"])

	// Same bucket on the next tick is silent.
	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Len(t, h.notes.ofType(models.EventTrialEnding), 1)

	// Past the trial end the ended bucket fires exactly once.
	h.setClock(date(2024, time.March, 16))
	require.NoError(t, h.job.RunTick(context.Background()))
	require.NoError(t, h.job.RunTick(context.Background()))
	ended := h.notes.ofType(models.EventTrialEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, models.SeverityError, ended[0].Severity)
	assert.Len(t, h.notes.ofType(models.EventTrialEnding), 1)
}

func TestTrialAlertRearmsWhenTrialEndMoves(t *testing.T) {
	trialStart := date(2024, time.March, 1)
	now := date(2024, time.March, 13)
	h := newHarness(now)
	site := upstream.Site{ID: "S1", Name: "Alpha", Plan: "premium", TrialStart: timePtr(trialStart), TrialDays: 14}
	h.source.sites = []upstream.Site{site}

	require.NoError(t, h.job.RunTick(context.Background()))
	require.Len(t, h.notes.ofType(models.EventTrialEnding), 1)

	// The trial window is extended upstream into the ending range again.
	site.TrialDays = 25 // new end March 26
	h.source.sites = []upstream.Site{site}
	h.setClock(date(2024, time.March, 24))
	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Len(t, h.notes.ofType(models.EventTrialEnding), 2)
}

func TestNoTrialEventsOutsideThreshold(t *testing.T) {
	trialStart := date(2024, time.March, 1)
	now := date(2024, time.March, 5) // 10 days left
	h := newHarness(now)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "premium", TrialStart: timePtr(trialStart), TrialDays: 14},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Empty(t, h.notes.ofType(models.EventTrialEnding))
	assert.Empty(t, h.notes.ofType(models.EventTrialEnded))
}

func TestBasicPlanBucketFiresOncePerExpiryDate(t *testing.T) {
	created := date(2024, time.January, 1)
	// Expiry lands on 2024-07-15; on June 20 there are 25 days left.
	now := date(2024, time.June, 20)
	h := newHarness(now)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "basic", CreatedAt: timePtr(created)},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	ending := h.notes.ofType(models.EventBasicPlanEnding)
	require.Len(t, ending, 1)
	assert.Equal(t, "30d", ending[0].Meta["bucket"])
	assert.Equal(t, "2024-07-15", ending[0].Meta["expiry_date"])

	// Further ticks inside the same bucket stay silent.
	h.setClock(date(2024, time.June, 25))
	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Len(t, h.notes.ofType(models.EventBasicPlanEnding), 1)

	// Crossing into the 7d bucket fires again, once.
	h.setClock(date(2024, time.July, 10))
	require.NoError(t, h.job.RunTick(context.Background()))
	require.NoError(t, h.job.RunTick(context.Background()))
	ending = h.notes.ofType(models.EventBasicPlanEnding)
	require.Len(t, ending, 2)
	assert.Equal(t, "7d", ending[1].Meta["bucket"])

	// And finally the expired bucket.
	h.setClock(date(2024, time.July, 16))
	require.NoError(t, h.job.RunTick(context.Background()))
	require.NoError(t, h.job.RunTick(context.Background()))
	expired := h.notes.ofType(models.EventBasicPlanExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, models.SeverityError, expired[0].Severity)
}

func TestBasicPlanBucketRearmsAfterRenewal(t *testing.T) {
	created := date(2024, time.January, 1)
	now := date(2024, time.July, 10)
	h := newHarness(now)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "basic", CreatedAt: timePtr(created)},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	require.Len(t, h.notes.ofType(models.EventBasicPlanEnding), 1)

	// A renewal moves the expiry; the same bucket is armed again for the new
	// date once it comes into range.
	sub, err := h.subs.GetBySiteID("S1")
	require.NoError(t, err)
	sub.ExpiryAt = date(2025, time.January, 15)
	require.NoError(t, h.subs.Update(sub))

	h.setClock(date(2025, time.January, 10))
	require.NoError(t, h.job.RunTick(context.Background()))
	ending := h.notes.ofType(models.EventBasicPlanEnding)
	require.Len(t, ending, 2)
	assert.Equal(t, "2025-01-15", ending[1].Meta["expiry_date"])
}

func TestNonBasicPlanSkipsExpiryBuckets(t *testing.T) {
	created := date(2024, time.January, 1)
	now := date(2025, time.February, 1) // past the 12 month expiry
	h := newHarness(now)
	h.source.sites = []upstream.Site{
		{ID: "S1", Name: "Alpha", Plan: "premium", CreatedAt: timePtr(created)},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Empty(t, h.notes.ofType(models.EventBasicPlanEnding))
	assert.Empty(t, h.notes.ofType(models.EventBasicPlanExpired))
}

func TestReportedExpiredPlanEmitsOnce(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.expired = []upstream.ExpiredPlan{
		{SiteID: "E1", SiteName: "Expired One", Plan: "premium", ExpiredAt: timePtr(date(2024, time.June, 15))},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	got := h.notes.ofType(models.EventPlanExpired)
	require.Len(t, got, 1)
	assert.Equal(t, "E1", got[0].SiteID)
	assert.Equal(t, "2024-06-15", got[0].Meta["expiry_date"])

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Len(t, h.notes.ofType(models.EventPlanExpired), 1)
}

func TestReportedExpiredPlanStillInFutureSkipped(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.expired = []upstream.ExpiredPlan{
		{SiteID: "E1", Plan: "premium", ExpiredAt: timePtr(date(2024, time.July, 20))},
		{SiteID: "E2", Plan: "premium"}, // missing expiry date
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Empty(t, h.notes.notes)
}

func TestReportedExpiredBasicPlanUsesBasicEventType(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.expired = []upstream.ExpiredPlan{
		{SiteID: "E1", Plan: "basic", ExpiredAt: timePtr(date(2024, time.June, 15))},
	}

	require.NoError(t, h.job.RunTick(context.Background()))
	require.Len(t, h.notes.ofType(models.EventBasicPlanExpired), 1)
	assert.Empty(t, h.notes.ofType(models.EventPlanExpired))
}

func TestFetchFailureAbortsTick(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.sitesErr = errors.New("connection refused")
	h.source.expired = []upstream.ExpiredPlan{
		{SiteID: "E1", Plan: "premium", ExpiredAt: timePtr(date(2024, time.June, 15))},
	}

	err := h.job.RunTick(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.notes.notes)
	assert.Empty(t, h.snaps.snaps)
}

func TestLeaseHeldElsewhereSkipsTick(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.sites = []upstream.Site{{ID: "S1", Name: "Alpha", Plan: "basic"}}
	h.job.WithLease(func(string, time.Duration) (bool, error) { return false, nil }, func(string) error { return nil })

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Zero(t, h.source.fetchCalls)
	assert.Empty(t, h.notes.notes)
}

func TestLeaseBackendFailureDoesNotBlockTick(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.sites = []upstream.Site{{ID: "S1", Name: "Alpha", Plan: "premium"}}
	h.job.WithLease(func(string, time.Duration) (bool, error) { return false, errors.New("redis down") }, func(string) error { return nil })

	require.NoError(t, h.job.RunTick(context.Background()))
	assert.Equal(t, 1, h.source.fetchCalls)
	assert.Len(t, h.notes.ofType(models.EventSiteCreated), 1)
}

func TestMailerReceivesEmittedNotifications(t *testing.T) {
	now := date(2024, time.July, 1)
	h := newHarness(now)
	h.source.sites = []upstream.Site{{ID: "S1", Name: "Alpha", Plan: "basic"}}

	var mailed []models.Notification
	h.job.WithMailer(func(n models.Notification) { mailed = append(mailed, n) })

	require.NoError(t, h.job.RunTick(context.Background()))
	require.Len(t, mailed, 1)
	assert.Equal(t, models.EventSiteCreated, mailed[0].EventType)
}
