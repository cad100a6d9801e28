package projection

import (
	"context"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/aevon-lab/pulse/internal/api/v1"
	"github.com/aevon-lab/pulse/internal/core/aggregation"
	"github.com/aevon-lab/pulse/internal/core/storage"
)

var (
	bySearchQuery = []storage.Dimension{storage.DimSearchQuery}
	bySubject     = []storage.Dimension{storage.DimSubjectID}
	byDay         = []storage.Dimension{storage.DimDay}
	byCity        = []storage.Dimension{storage.DimCity}
	byFilterType  = []storage.Dimension{storage.DimFilterType}
	byEventType   = []storage.Dimension{storage.DimEventType}
	byFilterValue = []storage.Dimension{storage.DimFilterValue}
)

// CityFilterType is the filterType a filter_applied event carries when the
// user narrows results to a city; filterValue holds the city.
const CityFilterType = "city"

// SearchMetrics reports the top search terms with their result clicks, the
// search to click conversion and the daily search volume.
func (s *Service) SearchMetrics(ctx context.Context, r aggregation.DateRange, limit int) (*SearchMetrics, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	base := aggregation.NewFilter(r)
	searches := base.Types(v1.EventSearchPerformed)
	clicks := base.Types(v1.EventSearchResultClicked)

	totalSearches, err := s.total(ctx, searches)
	if err != nil {
		return nil, err
	}
	totalClicks, err := s.total(ctx, clicks)
	if err != nil {
		return nil, err
	}

	terms, err := s.groups(ctx, searches.NonEmpty(storage.DimSearchQuery), bySearchQuery, limit)
	if err != nil {
		return nil, err
	}
	clickGroups, err := s.groups(ctx, clicks.NonEmpty(storage.DimSearchQuery), bySearchQuery, 0)
	if err != nil {
		return nil, err
	}
	clicksByTerm := countsByKey(clickGroups, storage.DimSearchQuery)

	top := make([]SearchTerm, 0, len(terms))
	for _, g := range terms {
		term := g.Key(storage.DimSearchQuery)
		top = append(top, SearchTerm{Query: term, Count: g.Count, ResultClicks: clicksByTerm[term]})
	}

	daily, err := s.groups(ctx, searches, byDay, 0)
	if err != nil {
		return nil, err
	}

	return &SearchMetrics{
		Period:            periodOf(r),
		TotalSearches:     totalSearches,
		TotalResultClicks: totalClicks,
		ConversionRate:    aggregation.Percentage(totalClicks, totalSearches),
		TopSearches:       top,
		DailyTrend:        dailyTrend(daily),
	}, nil
}

// EventPerformance ranks subject entities by views, clicks and shares, and
// lists their click-through rates. subjectID, when set, narrows every ranking
// to that entity.
func (s *Service) EventPerformance(ctx context.Context, r aggregation.DateRange, limit int, subjectID string) (*EventPerformance, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	base := aggregation.NewFilter(r).Subject(subjectID).NonEmpty(storage.DimSubjectID)
	views := base.Types(v1.EventViewed)
	clicks := base.Types(v1.EventClicked)

	mostViewed, err := s.groups(ctx, views, bySubject, limit)
	if err != nil {
		return nil, err
	}
	mostClicked, err := s.groups(ctx, clicks, bySubject, limit)
	if err != nil {
		return nil, err
	}
	mostShared, err := s.groups(ctx, base.Types(v1.EventShared), bySubject, limit)
	if err != nil {
		return nil, err
	}

	allViews, err := s.groups(ctx, views, bySubject, 0)
	if err != nil {
		return nil, err
	}
	allClicks, err := s.groups(ctx, clicks, bySubject, 0)
	if err != nil {
		return nil, err
	}

	return &EventPerformance{
		Period:            periodOf(r),
		MostViewed:        entityCounts(mostViewed),
		MostClicked:       entityCounts(mostClicked),
		MostShared:        entityCounts(mostShared),
		ClickThroughRates: clickThroughRates(allViews, allClicks, limit),
	}, nil
}

// clickThroughRates joins per-entity views and clicks, highest rate first.
func clickThroughRates(views, clicks []storage.Group, limit int) []EntityCTR {
	viewsByID := countsByKey(views, storage.DimSubjectID)
	clicksByID := countsByKey(clicks, storage.DimSubjectID)

	ids := make(map[string]struct{}, len(viewsByID)+len(clicksByID))
	for id := range viewsByID {
		ids[id] = struct{}{}
	}
	for id := range clicksByID {
		ids[id] = struct{}{}
	}

	rates := make([]EntityCTR, 0, len(ids))
	for id := range ids {
		rates = append(rates, EntityCTR{
			EventID: id,
			Views:   viewsByID[id],
			Clicks:  clicksByID[id],
			CTR:     aggregation.ClickThroughRate(clicksByID[id], viewsByID[id]),
		})
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].CTR != rates[j].CTR {
			return rates[i].CTR > rates[j].CTR
		}
		return rates[i].EventID < rates[j].EventID
	})
	if len(rates) > limit {
		rates = rates[:limit]
	}
	return rates
}

// PopularEvents ranks subject entities by detail views and reports how many
// distinct actors viewed each.
func (s *Service) PopularEvents(ctx context.Context, r aggregation.DateRange, limit int) (*PopularEvents, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	views := aggregation.NewFilter(r).Types(v1.EventViewed).NonEmpty(storage.DimSubjectID)

	ranked, err := s.groups(ctx, views, bySubject, limit)
	if err != nil {
		return nil, err
	}
	viewers, err := s.distinctBy(ctx, views, bySubject, storage.DimActor)
	if err != nil {
		return nil, err
	}
	named, err := s.groups(ctx, views.NonEmpty(storage.DimSubjectName),
		[]storage.Dimension{storage.DimSubjectID, storage.DimSubjectName}, 0)
	if err != nil {
		return nil, err
	}

	viewersByID := countsByKey(viewers, storage.DimSubjectID)
	// Groups arrive most frequent first, so the first name seen wins.
	names := make(map[string]string, len(named))
	for _, g := range named {
		id := g.Key(storage.DimSubjectID)
		if _, ok := names[id]; !ok {
			names[id] = g.Key(storage.DimSubjectName)
		}
	}

	events := make([]PopularEvent, 0, len(ranked))
	for _, g := range ranked {
		id := g.Key(storage.DimSubjectID)
		events = append(events, PopularEvent{
			EventID:       id,
			EventName:     names[id],
			Views:         g.Count,
			UniqueViewers: viewersByID[id],
		})
	}
	return &PopularEvents{Period: periodOf(r), Events: events}, nil
}

// UserEngagement reports active actors and devices and splits actors into
// power and casual users.
func (s *Service) UserEngagement(ctx context.Context, r aggregation.DateRange) (*UserEngagement, error) {
	base := aggregation.NewFilter(r)

	activeUsers, err := s.distinct(ctx, base, storage.DimActor)
	if err != nil {
		return nil, err
	}
	activeDevices, err := s.distinct(ctx, base, storage.DimDevice)
	if err != nil {
		return nil, err
	}
	totalEvents, err := s.total(ctx, base)
	if err != nil {
		return nil, err
	}
	totalSearches, err := s.total(ctx, base.Types(v1.EventSearchPerformed))
	if err != nil {
		return nil, err
	}

	perActor, err := s.groups(ctx, base, []storage.Dimension{storage.DimActor}, 0)
	if err != nil {
		return nil, err
	}
	var power, casual int64
	for _, g := range perActor {
		if g.Count >= PowerUserThreshold {
			power++
		} else {
			casual++
		}
	}

	return &UserEngagement{
		Period:               periodOf(r),
		ActiveUsers:          activeUsers,
		ActiveDevices:        activeDevices,
		PowerUsers:           power,
		CasualUsers:          casual,
		TotalEvents:          totalEvents,
		AvgEventsPerDevice:   aggregation.Ratio(totalEvents, activeDevices, 1),
		AvgSearchesPerDevice: aggregation.Ratio(totalSearches, activeDevices, 1),
	}, nil
}

// Geographic reports detail views per city with the number of distinct
// entities viewed there, and explicit city selections. A selection is either
// a city_selected event or a filter_applied event with filterType "city".
func (s *Service) Geographic(ctx context.Context, r aggregation.DateRange, limit int) (*Geographic, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	base := aggregation.NewFilter(r).NonEmpty(storage.DimCity)
	views := base.Types(v1.EventViewed)

	viewGroups, err := s.groups(ctx, views, byCity, limit)
	if err != nil {
		return nil, err
	}
	entityGroups, err := s.distinctBy(ctx, views, byCity, storage.DimSubjectID)
	if err != nil {
		return nil, err
	}
	selectedGroups, err := s.groups(ctx, base.Types(v1.EventCitySelected), byCity, 0)
	if err != nil {
		return nil, err
	}
	cityFilter := aggregation.NewFilter(r).
		Types(v1.EventFilterApplied).
		Match(storage.DimFilterType, CityFilterType).
		NonEmpty(storage.DimFilterValue)
	filteredGroups, err := s.groups(ctx, cityFilter, byFilterValue, 0)
	if err != nil {
		return nil, err
	}

	entities := countsByKey(entityGroups, storage.DimCity)
	cities := make([]CityViews, 0, len(viewGroups))
	for _, g := range viewGroups {
		city := g.Key(storage.DimCity)
		cities = append(cities, CityViews{City: city, Views: g.Count, UniqueEvents: entities[city]})
	}

	perCity := countsByKey(selectedGroups, storage.DimCity)
	for _, g := range filteredGroups {
		perCity[g.Key(storage.DimFilterValue)] += g.Count
	}
	selections := make([]CityCount, 0, len(perCity))
	for city, n := range perCity {
		selections = append(selections, CityCount{City: city, Count: n})
	}
	sort.Slice(selections, func(i, j int) bool {
		if selections[i].Count != selections[j].Count {
			return selections[i].Count > selections[j].Count
		}
		return selections[i].City < selections[j].City
	})
	if len(selections) > limit {
		selections = selections[:limit]
	}

	return &Geographic{Period: periodOf(r), Cities: cities, CitySelections: selections}, nil
}

// FilterMetrics reports filter usage, the most common type/value pairs, and
// per type the share of applications followed by a view carrying that filter.
func (s *Service) FilterMetrics(ctx context.Context, r aggregation.DateRange, limit int) (*FilterMetrics, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	base := aggregation.NewFilter(r).NonEmpty(storage.DimFilterType)
	applied := base.Types(v1.EventFilterApplied)

	usage, err := s.groups(ctx, applied, byFilterType, limit)
	if err != nil {
		return nil, err
	}
	combos, err := s.groups(ctx, applied.NonEmpty(storage.DimFilterValue),
		[]storage.Dimension{storage.DimFilterType, storage.DimFilterValue}, limit)
	if err != nil {
		return nil, err
	}
	viewGroups, err := s.groups(ctx, base.Types(v1.EventViewed), byFilterType, 0)
	if err != nil {
		return nil, err
	}
	viewsByType := countsByKey(viewGroups, storage.DimFilterType)

	out := &FilterMetrics{
		Period:          periodOf(r),
		FilterUsage:     make([]FilterTypeCount, 0, len(usage)),
		TopCombinations: make([]FilterCombination, 0, len(combos)),
		Effectiveness:   make([]FilterEffectiveness, 0, len(usage)),
	}
	for _, g := range usage {
		ft := g.Key(storage.DimFilterType)
		out.FilterUsage = append(out.FilterUsage, FilterTypeCount{FilterType: ft, Count: g.Count})
		out.Effectiveness = append(out.Effectiveness, FilterEffectiveness{
			FilterType:    ft,
			Applied:       g.Count,
			Views:         viewsByType[ft],
			Effectiveness: aggregation.Percentage(viewsByType[ft], g.Count),
		})
	}
	for _, g := range combos {
		out.TopCombinations = append(out.TopCombinations, FilterCombination{
			FilterType:  g.Key(storage.DimFilterType),
			FilterValue: g.Key(storage.DimFilterValue),
			Count:       g.Count,
		})
	}
	return out, nil
}

// ScreenFlow reports screen views per screen and per day.
func (s *Service) ScreenFlow(ctx context.Context, r aggregation.DateRange, limit int) (*ScreenFlow, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	views := aggregation.NewFilter(r).Types(v1.EventScreenView)

	total, err := s.total(ctx, views)
	if err != nil {
		return nil, err
	}
	screenGroups, err := s.groups(ctx, views.NonEmpty(storage.DimScreen), []storage.Dimension{storage.DimScreen}, limit)
	if err != nil {
		return nil, err
	}
	daily, err := s.groups(ctx, views, byDay, 0)
	if err != nil {
		return nil, err
	}

	screens := make([]ScreenCount, 0, len(screenGroups))
	for _, g := range screenGroups {
		screens = append(screens, ScreenCount{Screen: g.Key(storage.DimScreen), Views: g.Count})
	}
	return &ScreenFlow{
		Period:           periodOf(r),
		TotalScreenViews: total,
		Screens:          screens,
		DailyTrend:       dailyTrend(daily),
	}, nil
}

// LinkMetrics reports outbound link clicks per link type and per entity.
func (s *Service) LinkMetrics(ctx context.Context, r aggregation.DateRange, limit int, subjectID string) (*LinkMetrics, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	clicks := aggregation.NewFilter(r).Types(v1.EventLinkClicked).Subject(subjectID)

	total, err := s.total(ctx, clicks)
	if err != nil {
		return nil, err
	}
	typeGroups, err := s.groups(ctx, clicks.NonEmpty(storage.DimLinkType), []storage.Dimension{storage.DimLinkType}, limit)
	if err != nil {
		return nil, err
	}
	entityGroups, err := s.groups(ctx, clicks.NonEmpty(storage.DimSubjectID), bySubject, limit)
	if err != nil {
		return nil, err
	}

	byType := make([]LinkTypeCount, 0, len(typeGroups))
	for _, g := range typeGroups {
		byType = append(byType, LinkTypeCount{LinkType: g.Key(storage.DimLinkType), Count: g.Count})
	}
	return &LinkMetrics{
		Period:      periodOf(r),
		TotalClicks: total,
		ByLinkType:  byType,
		ByEvent:     entityCounts(entityGroups),
	}, nil
}

// TimeDistribution buckets all events by UTC hour of day, weekday and ISO
// week. Every hour and weekday is present, with zero counts where empty.
func (s *Service) TimeDistribution(ctx context.Context, r aggregation.DateRange) (*TimeDistribution, error) {
	base := aggregation.NewFilter(r)

	hourGroups, err := s.groups(ctx, base, []storage.Dimension{storage.DimHourOfDay}, 0)
	if err != nil {
		return nil, err
	}
	dayGroups, err := s.groups(ctx, base, []storage.Dimension{storage.DimDayOfWeek}, 0)
	if err != nil {
		return nil, err
	}
	weekGroups, err := s.groups(ctx, base, []storage.Dimension{storage.DimISOWeek}, 0)
	if err != nil {
		return nil, err
	}

	perHour := countsByKey(hourGroups, storage.DimHourOfDay)
	hourly := make([]HourCount, 24)
	for h := range hourly {
		hourly[h] = HourCount{Hour: h, Count: perHour[strconv.Itoa(h)]}
	}

	perDay := countsByKey(dayGroups, storage.DimDayOfWeek)
	weekdays := make([]WeekdayCount, 7)
	for d := range weekdays {
		weekdays[d] = WeekdayCount{Day: time.Weekday(d).String(), Count: perDay[strconv.Itoa(d)]}
	}

	weekly := make([]WeekCount, 0, len(weekGroups))
	for _, g := range weekGroups {
		weekly = append(weekly, WeekCount{Week: g.Key(storage.DimISOWeek), Count: g.Count})
	}
	sort.Slice(weekly, func(i, j int) bool {
		return weekly[i].Week < weekly[j].Week
	})

	return &TimeDistribution{Period: periodOf(r), Hourly: hourly, DayOfWeek: weekdays, Weekly: weekly}, nil
}

type stageDef struct {
	name      string
	eventType v1.EventType
}

var (
	searchFunnel = []stageDef{
		{"search", v1.EventSearchPerformed},
		{"result_view", v1.EventSearchResultClicked},
		{"event_view", v1.EventViewed},
		{"link_click", v1.EventLinkClicked},
	}
	browseFunnel = []stageDef{
		{"list_view", v1.EventListViewed},
		{"event_click", v1.EventClicked},
		{"event_view", v1.EventViewed},
		{"link_click", v1.EventLinkClicked},
	}
	filterFunnel = []stageDef{
		{"filter_applied", v1.EventFilterApplied},
		{"event_view", v1.EventViewed},
		{"event_click", v1.EventClicked},
	}
)

// Funnels counts each stage of the search, browse and filter funnels. The
// success rate is the share of the entry stage that reached the second stage.
func (s *Service) Funnels(ctx context.Context, r aggregation.DateRange) (*Funnels, error) {
	types := funnelTypes(searchFunnel, browseFunnel, filterFunnel)
	groups, err := s.groups(ctx, aggregation.NewFilter(r).Types(types...), byEventType, 0)
	if err != nil {
		return nil, err
	}
	counts := countsByKey(groups, storage.DimEventType)

	return &Funnels{
		Period: periodOf(r),
		Search: buildFunnel(searchFunnel, counts),
		Browse: buildFunnel(browseFunnel, counts),
		Filter: buildFunnel(filterFunnel, counts),
	}, nil
}

func funnelTypes(funnels ...[]stageDef) []v1.EventType {
	seen := make(map[v1.EventType]struct{})
	var types []v1.EventType
	for _, f := range funnels {
		for _, st := range f {
			if _, ok := seen[st.eventType]; ok {
				continue
			}
			seen[st.eventType] = struct{}{}
			types = append(types, st.eventType)
		}
	}
	return types
}

func buildFunnel(defs []stageDef, counts map[string]int64) Funnel {
	stages := make([]FunnelStage, len(defs))
	for i, d := range defs {
		stages[i] = FunnelStage{Name: d.name, Count: counts[string(d.eventType)]}
	}
	return Funnel{
		Stages:      stages,
		SuccessRate: aggregation.Percentage(stages[1].Count, stages[0].Count),
	}
}

// Overview combines the headline totals. The sub-queries run concurrently.
func (s *Service) Overview(ctx context.Context, r aggregation.DateRange) (*Overview, error) {
	base := aggregation.NewFilter(r)
	out := &Overview{Period: periodOf(r)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.total(gctx, base.Types(v1.EventViewed))
		out.TotalViews = n
		return err
	})
	g.Go(func() error {
		n, err := s.total(gctx, base.Types(v1.EventSearchPerformed))
		out.TotalSearches = n
		return err
	})
	g.Go(func() error {
		n, err := s.total(gctx, base.Types(v1.EventLinkClicked))
		out.TotalLinkClicks = n
		return err
	})
	g.Go(func() error {
		n, err := s.distinct(gctx, base, storage.DimActor)
		out.ActiveUsers = n
		return err
	})
	g.Go(func() error {
		top, err := s.groups(gctx, base.Types(v1.EventViewed).NonEmpty(storage.DimSubjectID), bySubject, 1)
		if err != nil {
			return err
		}
		if len(top) > 0 {
			out.MostViewedEvent = &EntityCount{EventID: top[0].Key(storage.DimSubjectID), Count: top[0].Count}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
