package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/cache"
	"github.com/erpeaz/siteboard/internal/pkg/mail"
	"github.com/erpeaz/siteboard/internal/pkg/notify"
	"github.com/erpeaz/siteboard/internal/pkg/planmath"
	"github.com/erpeaz/siteboard/internal/pkg/subscription"
	"github.com/erpeaz/siteboard/internal/pkg/upstream"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	tickLeaseKey = "reconcile:tick"
	tickLeaseTTL = 10 * time.Minute

	trialEndingThresholdDays = 3
)

// basicBuckets are checked in order; the first matching threshold wins.
var basicBuckets = []struct {
	Name    string
	MaxDays int
}{
	{"expired", 0},
	{"7d", 7},
	{"30d", 30},
	{"60d", 60},
}

// SiteSource is the upstream dependency of the job.
type SiteSource interface {
	FetchSites(ctx context.Context) ([]upstream.Site, error)
	FetchExpiredPlans(ctx context.Context) []upstream.ExpiredPlan
}

// Job is the polling reconciliation job. Each tick re-evaluates every site
// from absolute timestamps, so a missed tick means a late detection rather
// than a skipped transition.
type Job struct {
	source SiteSource
	subs   repository.SubscriptionRepository
	snaps  repository.SnapshotRepository
	notes  repository.NotificationRepository
	trials repository.TrialAlertRepository
	svc    *subscription.Service
	hub    *notify.Hub

	now    func() time.Time
	mailer func(models.Notification)

	acquireLease func(key string, ttl time.Duration) (bool, error)
	releaseLease func(key string) error

	running atomic.Bool
}

// NewJob wires the reconcile job with production dependencies.
func NewJob(source SiteSource, repos *repository.Repositories, hub *notify.Hub) *Job {
	return &Job{
		source:       source,
		subs:         repos.Subscription,
		snaps:        repos.Snapshot,
		notes:        repos.Notification,
		trials:       repos.TrialAlert,
		svc:          subscription.NewService(repos.Subscription),
		hub:          hub,
		now:          time.Now,
		mailer:       mail.SendNotificationMail,
		acquireLease: cache.AcquireLease,
		releaseLease: cache.ReleaseLease,
	}
}

// WithClock pins the job clock; tests drive ticks at fixed instants.
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	j.svc.WithClock(now)
	return j
}

// WithMailer overrides mail delivery (nil disables it).
func (j *Job) WithMailer(m func(models.Notification)) *Job {
	j.mailer = m
	return j
}

// WithLease overrides the cross-process tick lease.
func (j *Job) WithLease(acquire func(string, time.Duration) (bool, error), release func(string) error) *Job {
	j.acquireLease = acquire
	j.releaseLease = release
	return j
}

// RunTick executes one reconciliation pass. It is safe to call from a timer
// and from the admin force-run route at the same time: overlapping calls are
// skipped, not queued.
func (j *Job) RunTick(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		log.Info("[Reconcile] previous tick still running, skipping")
		return nil
	}
	defer j.running.Store(false)

	if j.acquireLease != nil {
		ok, err := j.acquireLease(tickLeaseKey, tickLeaseTTL)
		if err != nil {
			// The lease is an optimization against concurrent processes,
			// not a correctness requirement: dedup still holds via the
			// store queries. Proceed when the lease backend is down.
			log.Warnf("[Reconcile] lease backend unavailable, proceeding without lease: %v", err)
		} else if !ok {
			log.Info("[Reconcile] tick lease held elsewhere, skipping")
			return nil
		} else {
			defer func() {
				if err := j.releaseLease(tickLeaseKey); err != nil {
					log.Warnf("[Reconcile] failed to release tick lease: %v", err)
				}
			}()
		}
	}

	start := j.now()

	// The primary site list is ground truth: if it cannot be fetched there
	// is nothing to reconcile and the tick aborts without emitting anything.
	sites, err := j.source.FetchSites(ctx)
	if err != nil {
		log.Errorf("[Reconcile] site list fetch failed, aborting tick: %v", err)
		return err
	}
	expired := j.source.FetchExpiredPlans(ctx)

	for _, site := range sites {
		j.processSite(ctx, site)
	}
	for _, plan := range expired {
		j.processExpiredPlan(plan)
	}

	log.Infof("[Reconcile] tick finished: %d sites, %d reported expired plans, took %s",
		len(sites), len(expired), time.Since(start).Round(time.Millisecond))
	return nil
}

func (j *Job) processSite(ctx context.Context, site upstream.Site) {
	now := j.now()

	j.ensureSubscription(ctx, site, now)
	j.detectNewSite(site)
	j.detectTrial(site, now)
	j.detectBasicPlanExpiry(site, now)
}

// ensureSubscription backfills a subscription record for external sites that
// were created before this dashboard existed (or outside of it). A conflict
// just means the record is already there.
func (j *Job) ensureSubscription(ctx context.Context, site upstream.Site, now time.Time) {
	exists, err := j.subs.ExistsBySiteID(site.ID)
	if err != nil {
		log.Errorf("[Reconcile] subscription lookup for site %s failed: %v", site.ID, err)
		return
	}
	if exists {
		return
	}

	start := now
	if site.CreatedAt != nil {
		start = *site.CreatedAt
	}
	plan := planmath.NormalizePlan(site.Plan)

	if _, err := j.svc.Init(ctx, site.ID, plan, start); err != nil {
		if !errors.Is(err, subscription.ErrConflict) {
			log.Errorf("[Reconcile] failed to initialize subscription for site %s: %v", site.ID, err)
		}
		return
	}
	log.Infof("[Reconcile] initialized subscription for site %s (plan %s)", site.ID, plan)
}

func (j *Job) detectNewSite(site upstream.Site) {
	payload, err := json.Marshal(site)
	if err != nil {
		log.Errorf("[Reconcile] failed to encode snapshot for site %s: %v", site.ID, err)
		return
	}

	created, err := j.snaps.CreateIfAbsent(&models.SiteSnapshot{
		SiteID:   site.ID,
		Snapshot: string(payload),
	})
	if err != nil {
		log.Errorf("[Reconcile] snapshot insert for site %s failed: %v", site.ID, err)
		return
	}
	if !created {
		return
	}

	name := site.Name
	if name == "" {
		name = site.ID
	}
	j.emit(models.Notification{
		EventType: models.EventSiteCreated,
		SiteID:    site.ID,
		SiteName:  name,
		Severity:  models.SeveritySuccess,
		Title:     "Site created",
		Message:   fmt.Sprintf("%s was added.", name),
		Meta:      models.NotificationMeta{"plan": planmath.NormalizePlan(site.Plan)},
	})
}

// detectTrial emits trial_ending/trial_ended once per bucket transition. The
// last notified bucket is persisted per site, keyed to the trial end date, so
// the alert re-arms if the trial window ever moves.
func (j *Job) detectTrial(site upstream.Site, now time.Time) {
	if site.TrialStart == nil {
		return
	}

	trialEnd := planmath.ComputeTrialEnd(*site.TrialStart, site.TrialDays)
	daysLeft := planmath.DaysRemaining(trialEnd, now)

	var bucket, eventType, severity, title, message string
	switch {
	case daysLeft <= 0:
		bucket = models.TrialBucketEnded
		eventType = models.EventTrialEnded
		severity = models.SeverityError
		title = "Trial ended"
		message = fmt.Sprintf("%s trial has ended.", site.Name)
	case daysLeft <= trialEndingThresholdDays:
		bucket = models.TrialBucketEnding
		eventType = models.EventTrialEnding
		severity = models.SeverityWarning
		title = "Trial ending soon"
		message = fmt.Sprintf("%s trial ends in %d day(s).", site.Name, daysLeft)
	default:
		return
	}

	state, err := j.trials.GetBySiteID(site.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Reconcile] trial alert lookup for site %s failed: %v", site.ID, err)
		return
	}
	if state != nil && state.Bucket == bucket && sameDay(state.TrialEndAt, trialEnd) {
		return
	}

	if err := j.trials.Upsert(&models.TrialAlertState{
		SiteID:     site.ID,
		Bucket:     bucket,
		TrialEndAt: trialEnd,
	}); err != nil {
		log.Errorf("[Reconcile] trial alert state update for site %s failed: %v", site.ID, err)
		return
	}

	j.emit(models.Notification{
		EventType: eventType,
		SiteID:    site.ID,
		SiteName:  site.Name,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Meta:      models.NotificationMeta{"days_left": daysLeft},
	})
}

// detectBasicPlanExpiry watches basic-plan sites approach their 6 month
// expiry and emits at most one notification per (site, expiry date, bucket).
func (j *Job) detectBasicPlanExpiry(site upstream.Site, now time.Time) {
	if planmath.NormalizePlan(site.Plan) != planmath.PlanBasic {
		return
	}

	sub, err := j.subs.GetBySiteID(site.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Reconcile] subscription fetch for site %s failed: %v", site.ID, err)
		return
	}

	res := planmath.Resolve(site.CreatedAt, planmath.PlanBasic, sub, now)
	if res.Expiry == nil || res.DaysToExpiry == nil {
		return
	}
	daysLeft := *res.DaysToExpiry

	bucket := ""
	for _, b := range basicBuckets {
		if daysLeft <= b.MaxDays {
			bucket = b.Name
			break
		}
	}
	if bucket == "" {
		return
	}

	eventType := models.EventBasicPlanEnding
	severity := models.SeverityWarning
	title := "Basic plan ending soon"
	message := fmt.Sprintf("%s basic plan expires in %d day(s).", site.Name, daysLeft)
	if bucket == "expired" {
		eventType = models.EventBasicPlanExpired
		severity = models.SeverityError
		title = "Basic plan expired"
		message = fmt.Sprintf("%s basic plan has expired.", site.Name)
	}

	expiryDate := res.Expiry.Format("2006-01-02")
	dedupKey := map[string]string{"bucket": bucket, "expiry_date": expiryDate}
	exists, err := j.notes.ExistsWithMeta(site.ID, eventType, dedupKey)
	if err != nil {
		log.Errorf("[Reconcile] dedup query for site %s failed: %v", site.ID, err)
		return
	}
	if exists {
		return
	}

	j.emit(models.Notification{
		EventType: eventType,
		SiteID:    site.ID,
		SiteName:  site.Name,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Meta: models.NotificationMeta{
			"bucket":      bucket,
			"expiry_date": expiryDate,
			"days_left":   daysLeft,
			"plan":        planmath.PlanBasic,
		},
	})
}

// processExpiredPlan handles the externally reported expired plan list, with
// at most one emission per (site, event type, expiry date, plan).
func (j *Job) processExpiredPlan(plan upstream.ExpiredPlan) {
	if plan.ExpiredAt == nil {
		return
	}

	now := j.now()
	daysLeft := planmath.DaysRemaining(*plan.ExpiredAt, now)
	if daysLeft > 0 {
		// Reported but not actually lapsed yet.
		return
	}

	planKey := planmath.NormalizePlan(plan.Plan)
	eventType := models.EventPlanExpired
	if planKey == planmath.PlanBasic {
		eventType = models.EventBasicPlanExpired
	}

	expiryDate := plan.ExpiredAt.Format("2006-01-02")
	dedupKey := map[string]string{"expiry_date": expiryDate, "plan": planKey}
	exists, err := j.notes.ExistsWithMeta(plan.SiteID, eventType, dedupKey)
	if err != nil {
		log.Errorf("[Reconcile] dedup query for site %s failed: %v", plan.SiteID, err)
		return
	}
	if exists {
		return
	}

	name := plan.SiteName
	if name == "" {
		name = plan.SiteID
	}
	j.emit(models.Notification{
		EventType: eventType,
		SiteID:    plan.SiteID,
		SiteName:  name,
		Severity:  models.SeverityError,
		Title:     "Plan expired",
		Message:   fmt.Sprintf("%s plan %s expired on %s.", name, planKey, expiryDate),
		Meta: models.NotificationMeta{
			"expiry_date": expiryDate,
			"plan":        planKey,
			"days_left":   daysLeft,
		},
	})
}

// emit persists a notification, fans it out to streaming clients and sends
// the optional email. Persistence failure means no fan-out: subscribers only
// ever see durable notifications.
func (j *Job) emit(n models.Notification) {
	if err := j.notes.Create(&n); err != nil {
		log.Errorf("[Reconcile] failed to store %s notification for site %s: %v", n.EventType, n.SiteID, err)
		return
	}
	if j.hub != nil {
		j.hub.Publish(n)
	}
	if j.mailer != nil {
		j.mailer(n)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
