package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crowd-dashboard/internal/alerts"
	"crowd-dashboard/internal/auth"
	"crowd-dashboard/internal/model"
	"crowd-dashboard/internal/series"
	"crowd-dashboard/internal/timerange"
	"crowd-dashboard/internal/upstream"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrSiteMissing = errors.New("site id required")
)

// Analytics is the slice of the upstream client the dashboard needs. The
// tests substitute a fake.
type Analytics interface {
	Login(ctx context.Context, creds upstream.Credentials) (string, error)
	Sites(ctx context.Context) ([]model.Site, error)
	Site(ctx context.Context, siteID string) (*model.Site, error)
	Dwell(ctx context.Context, q upstream.AggregateQuery) (*model.DwellResponse, error)
	Footfall(ctx context.Context, q upstream.AggregateQuery) (*model.FootfallResponse, error)
	Occupancy(ctx context.Context, q upstream.AggregateQuery) (*model.OccupancyResponse, error)
	Demographics(ctx context.Context, q upstream.AggregateQuery) (*model.DemographicsResponse, error)
	EntryExit(ctx context.Context, q upstream.EntryExitQuery) (*model.EntryExitResponse, error)
}

type Options struct {
	FallbackOffsetMinutes int
	AlertPageSize         int
	EntriesPageSize       int
}

// DashboardService turns upstream aggregate responses into render-ready
// dashboard artifacts. All cached state is replaced wholesale per cycle; the
// one sanctioned exception is the live-occupancy overwrite, which is
// reconciled by timestamp so the newer source always wins.
type DashboardService struct {
	api      Analytics
	sessions *auth.SessionStore
	parser   *auth.Parser
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	mu           sync.Mutex
	sites        []model.Site
	current      *model.DashboardOverview
	committedSeq uint64
	liveValue    int64
	liveAt       int64 // epoch ms of the newest applied live push
	alertFeed    []model.AlertRecord
	alertSite    string

	cycleMu sync.Mutex
	cycle   uint64
}

func NewDashboardService(api Analytics, sessions *auth.SessionStore, parser *auth.Parser, opts Options, log zerolog.Logger) *DashboardService {
	if opts.FallbackOffsetMinutes == 0 {
		opts.FallbackOffsetMinutes = 240
	}
	if opts.AlertPageSize <= 0 {
		opts.AlertPageSize = 50
	}
	if opts.EntriesPageSize <= 0 {
		opts.EntriesPageSize = 10
	}
	return &DashboardService{
		api:      api,
		sessions: sessions,
		parser:   parser,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Login authenticates against the upstream issuer and installs the session.
func (s *DashboardService) Login(ctx context.Context, email, password string) (auth.Session, error) {
	token, err := s.api.Login(ctx, upstream.Credentials{Email: email, Password: password})
	if err != nil {
		return auth.Session{}, err
	}
	claims, err := s.parser.Parse(token)
	if err != nil {
		return auth.Session{}, err
	}
	return s.sessions.Set(token, claims), nil
}

// Logout destroys the session.
func (s *DashboardService) Logout() {
	s.sessions.Clear()
}

// Sites returns the upstream site directory, degrading to the single
// built-in site when the directory is empty or unavailable.
func (s *DashboardService) Sites(ctx context.Context) []model.Site {
	sites, err := s.api.Sites(ctx)
	if err != nil || len(sites) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Msg("site directory unavailable, using fallback site")
		}
		sites = []model.Site{model.FallbackSite()}
	}

	s.mu.Lock()
	s.sites = sites
	s.mu.Unlock()
	return sites
}

func (s *DashboardService) siteByID(ctx context.Context, siteID string) model.Site {
	s.mu.Lock()
	cached := s.sites
	s.mu.Unlock()

	if cached == nil {
		cached = s.Sites(ctx)
	}
	for _, site := range cached {
		if site.SiteID == siteID {
			return site
		}
	}
	if site, err := s.api.Site(ctx, siteID); err == nil && site != nil {
		return *site
	}
	fallback := model.FallbackSite()
	fallback.SiteID = siteID
	return fallback
}

func (s *DashboardService) resolverFor(site model.Site) *timerange.Resolver {
	return timerange.ForSite(&site, s.opts.FallbackOffsetMinutes).WithClock(s.now)
}

// Overview runs one full fetch cycle for a site and day: resolve the window,
// fan out the eight aggregate calls, fold the responses into the snapshot,
// series and live marker. A calendar date of "" means today.
func (s *DashboardService) Overview(ctx context.Context, siteID, date string) (*model.DashboardOverview, error) {
	if siteID == "" {
		return nil, ErrSiteMissing
	}
	site := s.siteByID(ctx, siteID)
	resolver := s.resolverFor(site)

	day := s.now()
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, resolver.Location())
		if err != nil {
			return nil, ErrInvalidDate
		}
		day = parsed
	}

	window := resolver.ResolveDay(day)
	seq := s.nextCycle()
	startMs := s.now().UnixMilli()

	cur, prev := s.fetchAggregates(ctx, siteID, window)

	loc := resolver.Location()
	overview := &model.DashboardOverview{
		SiteID:  siteID,
		Window:  window,
		Metrics: computeSnapshot(cur, prev),
	}

	if cur.Occupancy != nil {
		labels := make([]model.RawTimestamp, len(cur.Occupancy.Buckets))
		values := make([]float64, len(cur.Occupancy.Buckets))
		for i, b := range cur.Occupancy.Buckets {
			labels[i] = b.Local
			values[i] = math.Round(b.Avg)
		}
		overview.Occupancy = series.MapHourly(labels, values, loc)
	} else {
		overview.Occupancy = model.NewBucketSeries()
	}

	overview.Demographics, overview.GenderSeries = foldDemographics(cur.Demographics, loc)
	overview.Live = series.LiveMarker(window, overview.Occupancy, loc, s.now())

	s.commit(seq, startMs, overview)
	return overview, nil
}

// fetchAggregates dispatches the eight upstream calls concurrently, four per
// window, and joins with partial success: a failed call leaves its member
// nil, it never fails the cycle.
func (s *DashboardService) fetchAggregates(ctx context.Context, siteID string, window model.TimeWindow) (cur, prev model.AggregateResults) {
	curQ := upstream.AggregateQuery{SiteID: siteID, FromUTC: window.FromUTC, ToUTC: window.ToUTC}
	prevWindow := window.Previous()
	prevQ := upstream.AggregateQuery{SiteID: siteID, FromUTC: prevWindow.FromUTC, ToUTC: prevWindow.ToUTC}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	fetch := func(q upstream.AggregateQuery, dst *model.AggregateResults) {
		run(func() {
			if r, err := s.api.Dwell(ctx, q); err == nil {
				dst.Dwell = r
			} else {
				s.log.Warn().Err(err).Int64("from", q.FromUTC).Msg("dwell fetch failed")
			}
		})
		run(func() {
			if r, err := s.api.Footfall(ctx, q); err == nil {
				dst.Footfall = r
			} else {
				s.log.Warn().Err(err).Int64("from", q.FromUTC).Msg("footfall fetch failed")
			}
		})
		run(func() {
			if r, err := s.api.Occupancy(ctx, q); err == nil {
				dst.Occupancy = r
			} else {
				s.log.Warn().Err(err).Int64("from", q.FromUTC).Msg("occupancy fetch failed")
			}
		})
		run(func() {
			if r, err := s.api.Demographics(ctx, q); err == nil {
				dst.Demographics = r
			} else {
				s.log.Warn().Err(err).Int64("from", q.FromUTC).Msg("demographics fetch failed")
			}
		})
	}

	fetch(curQ, &cur)
	fetch(prevQ, &prev)
	wg.Wait()
	return cur, prev
}

// computeSnapshot applies the per-field extraction rules and the
// zero-guarded change calculation. Absent responses degrade their fields to
// zero; the snapshot itself is always fully populated.
func computeSnapshot(cur, prev model.AggregateResults) model.MetricSnapshot {
	snap := model.MetricSnapshot{
		LiveOccupancy:   lastBucketAvg(cur.Occupancy),
		AvgDwellSeconds: dwellSeconds(cur.Dwell),
	}
	if cur.Footfall != nil {
		snap.TodayFootfall = cur.Footfall.Footfall
	}

	var prevFootfall int64
	if prev.Footfall != nil {
		prevFootfall = prev.Footfall.Footfall
	}

	snap.OccupancyChange = change(snap.LiveOccupancy, lastBucketAvg(prev.Occupancy))
	snap.FootfallChange = change(snap.TodayFootfall, prevFootfall)
	snap.DwellTimeChange = change(snap.AvgDwellSeconds, dwellSeconds(prev.Dwell))
	return snap
}

func lastBucketAvg(resp *model.OccupancyResponse) int64 {
	if resp == nil || len(resp.Buckets) == 0 {
		return 0
	}
	return int64(math.Round(resp.Buckets[len(resp.Buckets)-1].Avg))
}

func dwellSeconds(resp *model.DwellResponse) int64 {
	if resp == nil {
		return 0
	}
	return int64(math.Round(resp.AvgDwellMinutes * 60))
}

// change is the zero-guarded percent delta: 0 when the previous value is
// zero or absent, so non-numeric values never reach rendering.
func change(current, previous int64) int64 {
	if previous == 0 {
		return 0
	}
	return int64(math.Round(float64(current-previous) / float64(previous) * 100))
}

func foldDemographics(resp *model.DemographicsResponse, loc *time.Location) (model.DemographicsSummary, model.DemographicsSeries) {
	out := model.DemographicsSeries{
		Male:   model.NewBucketSeries(),
		Female: model.NewBucketSeries(),
	}
	if resp == nil || len(resp.Buckets) == 0 {
		return model.DemographicsSummary{}, out
	}

	labels := make([]model.RawTimestamp, len(resp.Buckets))
	male := make([]float64, len(resp.Buckets))
	female := make([]float64, len(resp.Buckets))
	var maleSum, femaleSum float64
	for i, b := range resp.Buckets {
		labels[i] = b.Local
		male[i] = b.Male
		female[i] = b.Female
		maleSum += b.Male
		femaleSum += b.Female
	}

	n := float64(len(resp.Buckets))
	out.Male = series.MapHourly(labels, male, loc)
	out.Female = series.MapHourly(labels, female, loc)
	return model.DemographicsSummary{Male: maleSum / n, Female: femaleSum / n}, out
}

func (s *DashboardService) nextCycle() uint64 {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.cycle++
	return s.cycle
}

// commit installs a cycle's overview unless a newer cycle has already
// committed; a late response from a stale cycle never overwrites fresher
// state. A live push newer than the cycle's start keeps its occupancy value.
func (s *DashboardService) commit(seq uint64, startMs int64, overview *model.DashboardOverview) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.committedSeq {
		return false
	}
	if s.liveAt > startMs {
		overview.Metrics.LiveOccupancy = s.liveValue
	}
	s.committedSeq = seq
	s.current = overview
	return true
}

// ApplyLiveOccupancy feeds a realtime push into the current snapshot. Pushes
// are reconciled by their own timestamp, not arrival order; ts of zero means
// the payload carried none and arrival time is used.
func (s *DashboardService) ApplyLiveOccupancy(count int64, ts int64) {
	if ts == 0 {
		ts = s.now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ts < s.liveAt {
		return
	}
	s.liveAt = ts
	s.liveValue = count
	if s.current != nil {
		s.current.Metrics.LiveOccupancy = count
	}
}

// CurrentOverview returns the last committed overview, if any.
func (s *DashboardService) CurrentOverview() (model.DashboardOverview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.DashboardOverview{}, false
	}
	return *s.current, true
}

// Alerts derives the feed from today's entry records for a site. Upstream
// failure degrades to an empty feed; the dashboard stays renderable.
func (s *DashboardService) Alerts(ctx context.Context, siteID string) []model.AlertRecord {
	if siteID == "" {
		return []model.AlertRecord{}
	}
	site := s.siteByID(ctx, siteID)
	resolver := s.resolverFor(site)
	window := resolver.Today()

	resp, err := s.api.EntryExit(ctx, upstream.EntryExitQuery{
		SiteID:     siteID,
		FromUTC:    window.FromUTC,
		ToUTC:      window.ToUTC,
		PageNumber: 1,
		PageSize:   s.opts.AlertPageSize,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("site", siteID).Msg("alert fetch failed")
		return []model.AlertRecord{}
	}

	feed := alerts.Derive(resp.Records, &site, resolver.Location())

	s.mu.Lock()
	s.alertFeed = feed
	s.alertSite = siteID
	s.mu.Unlock()
	return feed
}

// RunAlertRefresher re-derives the alert feed for the most recently
// requested site on a fixed interval, until the context is cancelled.
func (s *DashboardService) RunAlertRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			siteID := s.alertSite
			s.mu.Unlock()
			if siteID != "" {
				s.Alerts(ctx, siteID)
			}
		}
	}
}

// Entries returns one page of the entry/exit table for a site and day.
func (s *DashboardService) Entries(ctx context.Context, siteID, date string, page, pageSize int) (*model.EntryExitResponse, error) {
	if siteID == "" {
		return nil, ErrSiteMissing
	}
	site := s.siteByID(ctx, siteID)
	resolver := s.resolverFor(site)

	day := s.now()
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, resolver.Location())
		if err != nil {
			return nil, ErrInvalidDate
		}
		day = parsed
	}
	window := resolver.ResolveDay(day)

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.opts.EntriesPageSize
	}

	resp, err := s.api.EntryExit(ctx, upstream.EntryExitQuery{
		SiteID:     siteID,
		FromUTC:    window.FromUTC,
		ToUTC:      window.ToUTC,
		PageNumber: page,
		PageSize:   pageSize,
	})
	if err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []model.EntryExitRecord{}
	}
	if resp.TotalPages <= 0 {
		resp.TotalPages = 1
	}
	return resp, nil
}
