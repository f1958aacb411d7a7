package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crowd-dashboard/internal/auth"
	"crowd-dashboard/internal/model"
	"crowd-dashboard/internal/upstream"
)

var errDown = errors.New("endpoint down")

// fakeAPI lets each endpoint be stubbed or failed independently.
type fakeAPI struct {
	login        func(upstream.Credentials) (string, error)
	sites        func() ([]model.Site, error)
	site         func(string) (*model.Site, error)
	dwell        func(upstream.AggregateQuery) (*model.DwellResponse, error)
	footfall     func(upstream.AggregateQuery) (*model.FootfallResponse, error)
	occupancy    func(upstream.AggregateQuery) (*model.OccupancyResponse, error)
	demographics func(upstream.AggregateQuery) (*model.DemographicsResponse, error)
	entryExit    func(upstream.EntryExitQuery) (*model.EntryExitResponse, error)
}

func (f *fakeAPI) Login(_ context.Context, c upstream.Credentials) (string, error) {
	if f.login == nil {
		return "", errDown
	}
	return f.login(c)
}

func (f *fakeAPI) Sites(_ context.Context) ([]model.Site, error) {
	if f.sites == nil {
		return nil, errDown
	}
	return f.sites()
}

func (f *fakeAPI) Site(_ context.Context, siteID string) (*model.Site, error) {
	if f.site == nil {
		return nil, errDown
	}
	return f.site(siteID)
}

func (f *fakeAPI) Dwell(_ context.Context, q upstream.AggregateQuery) (*model.DwellResponse, error) {
	if f.dwell == nil {
		return nil, errDown
	}
	return f.dwell(q)
}

func (f *fakeAPI) Footfall(_ context.Context, q upstream.AggregateQuery) (*model.FootfallResponse, error) {
	if f.footfall == nil {
		return nil, errDown
	}
	return f.footfall(q)
}

func (f *fakeAPI) Occupancy(_ context.Context, q upstream.AggregateQuery) (*model.OccupancyResponse, error) {
	if f.occupancy == nil {
		return nil, errDown
	}
	return f.occupancy(q)
}

func (f *fakeAPI) Demographics(_ context.Context, q upstream.AggregateQuery) (*model.DemographicsResponse, error) {
	if f.demographics == nil {
		return nil, errDown
	}
	return f.demographics(q)
}

func (f *fakeAPI) EntryExit(_ context.Context, q upstream.EntryExitQuery) (*model.EntryExitResponse, error) {
	if f.entryExit == nil {
		return nil, errDown
	}
	return f.entryExit(q)
}

func newTestService(api Analytics) *DashboardService {
	return NewDashboardService(api, auth.NewSessionStore(), auth.NewParser(""), Options{}, zerolog.Nop())
}

func TestChangeZeroGuard(t *testing.T) {
	cases := []struct {
		current, previous, want int64
	}{
		{120, 100, 20},
		{120, 0, 0},
		{0, 0, 0},
		{80, 100, -20},
		{100, 80, 25},
	}
	for _, tc := range cases {
		if got := change(tc.current, tc.previous); got != tc.want {
			t.Fatalf("change(%d, %d) = %d, want %d", tc.current, tc.previous, got, tc.want)
		}
	}
}

func TestComputeSnapshotExtraction(t *testing.T) {
	cur := model.AggregateResults{
		Dwell:    &model.DwellResponse{AvgDwellMinutes: 12.5},
		Footfall: &model.FootfallResponse{Footfall: 120},
		Occupancy: &model.OccupancyResponse{Buckets: []model.OccupancyBucket{
			{Local: model.TextTimestamp("2024-01-01T08:00:00Z"), Avg: 40},
			{Local: model.TextTimestamp("2024-01-01T09:00:00Z"), Avg: 99.6},
		}},
	}
	prev := model.AggregateResults{
		Footfall: &model.FootfallResponse{Footfall: 100},
	}

	snap := computeSnapshot(cur, prev)

	if snap.LiveOccupancy != 100 {
		t.Fatalf("liveOccupancy = %d, want 100 (rounded last bucket)", snap.LiveOccupancy)
	}
	if snap.TodayFootfall != 120 {
		t.Fatalf("todayFootfall = %d, want 120", snap.TodayFootfall)
	}
	if snap.AvgDwellSeconds != 750 {
		t.Fatalf("avgDwellSeconds = %d, want 750", snap.AvgDwellSeconds)
	}
	if snap.FootfallChange != 20 {
		t.Fatalf("footfallChange = %d, want 20", snap.FootfallChange)
	}
	// No previous occupancy or dwell: change is defined as 0, never NaN.
	if snap.OccupancyChange != 0 || snap.DwellTimeChange != 0 {
		t.Fatalf("changes against absent previous must be 0, got %d/%d",
			snap.OccupancyChange, snap.DwellTimeChange)
	}
}

func TestComputeSnapshotAllAbsent(t *testing.T) {
	snap := computeSnapshot(model.AggregateResults{}, model.AggregateResults{})
	if snap != (model.MetricSnapshot{}) {
		t.Fatalf("fully absent inputs must yield the zero snapshot, got %+v", snap)
	}
}

func TestOverviewSurvivesPartialFailures(t *testing.T) {
	// Only current footfall succeeds; the other seven calls fail.
	api := &fakeAPI{
		sites: func() ([]model.Site, error) { return []model.Site{model.FallbackSite()}, nil },
		footfall: func(q upstream.AggregateQuery) (*model.FootfallResponse, error) {
			return &model.FootfallResponse{Footfall: 42}, nil
		},
	}
	svc := newTestService(api)
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	}

	overview, err := svc.Overview(context.Background(), "SITE-AE-DXB-001", "2025-03-09")
	if err != nil {
		t.Fatalf("partial failure must not fail the cycle: %v", err)
	}
	if overview.Metrics.TodayFootfall != 42 {
		t.Fatalf("todayFootfall = %d, want 42", overview.Metrics.TodayFootfall)
	}
	if len(overview.Occupancy) != model.HoursPerDay {
		t.Fatalf("occupancy series len = %d, want 24", len(overview.Occupancy))
	}
	if overview.Live.Show {
		t.Fatal("live marker must be hidden without occupancy data")
	}
	if overview.Demographics.Male != 0 || overview.Demographics.Female != 0 {
		t.Fatal("absent demographics must degrade to zero")
	}
}

func TestOverviewBuildsSeriesAndMarker(t *testing.T) {
	now := time.Date(2025, time.March, 10, 14, 20, 0, 0, time.UTC)
	site := model.Site{SiteID: "s1", Timezone: "UTC"}

	api := &fakeAPI{
		sites: func() ([]model.Site, error) { return []model.Site{site}, nil },
		occupancy: func(q upstream.AggregateQuery) (*model.OccupancyResponse, error) {
			if q.FromUTC != time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC).UnixMilli() {
				return nil, errDown // previous day has no data
			}
			return &model.OccupancyResponse{Buckets: []model.OccupancyBucket{
				{Local: model.TextTimestamp("2025-03-10T09:00:00Z"), Avg: 10},
				{Local: model.TextTimestamp("10/03/2025 13:00:00"), Avg: 55.4},
			}}, nil
		},
		demographics: func(q upstream.AggregateQuery) (*model.DemographicsResponse, error) {
			return &model.DemographicsResponse{Buckets: []model.DemographicsBucket{
				{Local: model.TextTimestamp("2025-03-10T09:00:00Z"), Male: 10, Female: 30},
				{Local: model.TextTimestamp("2025-03-10T10:00:00Z"), Male: 20, Female: 10},
			}}, nil
		},
	}
	svc := newTestService(api)
	svc.now = func() time.Time { return now }

	overview, err := svc.Overview(context.Background(), "s1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if overview.Occupancy[9] == nil || *overview.Occupancy[9] != 10 {
		t.Fatalf("bucket 9 = %v, want 10", overview.Occupancy[9])
	}
	if overview.Occupancy[13] == nil || *overview.Occupancy[13] != 55 {
		t.Fatalf("bucket 13 = %v, want rounded 55", overview.Occupancy[13])
	}
	if !overview.Live.Show || overview.Live.HourIndex != 13 {
		t.Fatalf("live marker = %+v, want shown at 13", overview.Live)
	}
	if overview.Metrics.LiveOccupancy != 55 {
		t.Fatalf("liveOccupancy = %d, want 55", overview.Metrics.LiveOccupancy)
	}
	if overview.Demographics.Male != 15 || overview.Demographics.Female != 20 {
		t.Fatalf("demographics pie = %+v, want male 15 / female 20", overview.Demographics)
	}
}

func TestStaleCycleNeverCommits(t *testing.T) {
	svc := newTestService(&fakeAPI{})

	fresh := &model.DashboardOverview{Metrics: model.MetricSnapshot{TodayFootfall: 2}}
	stale := &model.DashboardOverview{Metrics: model.MetricSnapshot{TodayFootfall: 1}}

	if !svc.commit(2, 0, fresh) {
		t.Fatal("fresh cycle must commit")
	}
	if svc.commit(1, 0, stale) {
		t.Fatal("stale cycle must be discarded")
	}

	got, ok := svc.CurrentOverview()
	if !ok || got.Metrics.TodayFootfall != 2 {
		t.Fatalf("current overview = %+v, want the fresh cycle's", got)
	}
}

func TestLiveOverwriteReconciledByTimestamp(t *testing.T) {
	svc := newTestService(&fakeAPI{})
	svc.commit(1, 100, &model.DashboardOverview{})

	svc.ApplyLiveOccupancy(500, 2000)
	svc.ApplyLiveOccupancy(300, 1000) // older push, must lose

	got, _ := svc.CurrentOverview()
	if got.Metrics.LiveOccupancy != 500 {
		t.Fatalf("liveOccupancy = %d, want 500 (newer timestamp wins)", got.Metrics.LiveOccupancy)
	}
}

func TestLivePushOutlivesOlderPollCycle(t *testing.T) {
	svc := newTestService(&fakeAPI{})

	svc.ApplyLiveOccupancy(777, 5000)
	// A poll cycle that started before the push commits afterwards.
	svc.commit(1, 4000, &model.DashboardOverview{
		Metrics: model.MetricSnapshot{LiveOccupancy: 10},
	})

	got, _ := svc.CurrentOverview()
	if got.Metrics.LiveOccupancy != 777 {
		t.Fatalf("liveOccupancy = %d, want 777 (push newer than cycle start)", got.Metrics.LiveOccupancy)
	}
}

func TestSitesFallback(t *testing.T) {
	svc := newTestService(&fakeAPI{}) // directory call fails
	sites := svc.Sites(context.Background())
	if len(sites) != 1 || sites[0].SiteID != "SITE-AE-DXB-001" {
		t.Fatalf("expected the built-in fallback site, got %+v", sites)
	}

	empty := &fakeAPI{sites: func() ([]model.Site, error) { return []model.Site{}, nil }}
	sites = newTestService(empty).Sites(context.Background())
	if len(sites) != 1 {
		t.Fatalf("empty directory must also fall back, got %d sites", len(sites))
	}
}

func TestAlertsDegradeToEmptyFeed(t *testing.T) {
	svc := newTestService(&fakeAPI{
		sites: func() ([]model.Site, error) { return []model.Site{model.FallbackSite()}, nil },
	})
	feed := svc.Alerts(context.Background(), "SITE-AE-DXB-001")
	if feed == nil || len(feed) != 0 {
		t.Fatalf("failed entry query must yield empty feed, got %v", feed)
	}
}

func TestAlertsDerivedAndOrdered(t *testing.T) {
	api := &fakeAPI{
		sites: func() ([]model.Site, error) { return []model.Site{model.FallbackSite()}, nil },
		entryExit: func(q upstream.EntryExitQuery) (*model.EntryExitResponse, error) {
			if q.PageNumber != 1 || q.PageSize != 50 {
				t.Fatalf("alert query paging = %d/%d, want 1/50", q.PageNumber, q.PageSize)
			}
			return &model.EntryExitResponse{Records: []model.EntryExitRecord{
				{PersonID: "a", EntryUTC: 1000},
				{PersonID: "b", EntryUTC: 2000},
			}}, nil
		},
	}
	svc := newTestService(api)

	feed := svc.Alerts(context.Background(), "SITE-AE-DXB-001")
	if len(feed) != 2 || feed[0].ID != "b" {
		t.Fatalf("feed = %+v, want b first", feed)
	}
}

func TestEntriesDefaults(t *testing.T) {
	var captured upstream.EntryExitQuery
	api := &fakeAPI{
		sites: func() ([]model.Site, error) { return []model.Site{model.FallbackSite()}, nil },
		entryExit: func(q upstream.EntryExitQuery) (*model.EntryExitResponse, error) {
			captured = q
			return &model.EntryExitResponse{}, nil
		},
	}
	svc := newTestService(api)

	resp, err := svc.Entries(context.Background(), "SITE-AE-DXB-001", "", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.PageNumber != 1 || captured.PageSize != 10 {
		t.Fatalf("paging defaults = %d/%d, want 1/10", captured.PageNumber, captured.PageSize)
	}
	if resp.Records == nil {
		t.Fatal("records must never be nil")
	}
	if resp.TotalPages != 1 {
		t.Fatalf("totalPages = %d, want 1", resp.TotalPages)
	}

	if _, err := svc.Entries(context.Background(), "", "", 1, 10); !errors.Is(err, ErrSiteMissing) {
		t.Fatalf("missing site id: got %v, want ErrSiteMissing", err)
	}
	if _, err := svc.Entries(context.Background(), "SITE-AE-DXB-001", "not-a-date", 1, 10); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("bad date: got %v, want ErrInvalidDate", err)
	}
}
