package projection

import (
	"encoding/json"
	"time"

	"github.com/aevon-lab/pulse/internal/core/aggregation"
)

// Period echoes the resolved query window.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

func periodOf(r aggregation.DateRange) Period {
	return Period{StartDate: r.Start, EndDate: r.End}
}

// DailyCount is one day of a volume trend, oldest first.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// SearchTerm is a search query with the result clicks recorded against it.
type SearchTerm struct {
	Query        string `json:"query"`
	Count        int64  `json:"count"`
	ResultClicks int64  `json:"resultClicks"`
}

type SearchMetrics struct {
	Period            Period       `json:"period"`
	TotalSearches     int64        `json:"totalSearches"`
	TotalResultClicks int64        `json:"totalResultClicks"`
	ConversionRate    float64      `json:"conversionRate"`
	TopSearches       []SearchTerm `json:"topSearches"`
	DailyTrend        []DailyCount `json:"dailyTrend"`
}

// EntityCount is a count attributed to one subject entity.
type EntityCount struct {
	EventID string `json:"eventId"`
	Count   int64  `json:"count"`
}

// EntityCTR is the click-through rate of one subject entity.
type EntityCTR struct {
	EventID string  `json:"eventId"`
	Views   int64   `json:"views"`
	Clicks  int64   `json:"clicks"`
	CTR     float64 `json:"ctr"`
}

type EventPerformance struct {
	Period            Period        `json:"period"`
	MostViewed        []EntityCount `json:"mostViewed"`
	MostClicked       []EntityCount `json:"mostClicked"`
	MostShared        []EntityCount `json:"mostShared"`
	ClickThroughRates []EntityCTR   `json:"clickThroughRates"`
}

// PopularEvent is a subject entity ranked by detail views.
type PopularEvent struct {
	EventID       string `json:"eventId"`
	EventName     string `json:"eventName,omitempty"`
	Views         int64  `json:"views"`
	UniqueViewers int64  `json:"uniqueViewers"`
}

type PopularEvents struct {
	Period Period         `json:"period"`
	Events []PopularEvent `json:"events"`
}

type UserEngagement struct {
	Period               Period  `json:"period"`
	ActiveUsers          int64   `json:"activeUsers"`
	ActiveDevices        int64   `json:"activeDevices"`
	PowerUsers           int64   `json:"powerUsers"`
	CasualUsers          int64   `json:"casualUsers"`
	TotalEvents          int64   `json:"totalEvents"`
	AvgEventsPerDevice   float64 `json:"avgEventsPerDevice"`
	AvgSearchesPerDevice float64 `json:"avgSearchesPerDevice"`
}

type CityViews struct {
	City         string `json:"city"`
	Views        int64  `json:"views"`
	UniqueEvents int64  `json:"uniqueEvents"`
}

type CityCount struct {
	City  string `json:"city"`
	Count int64  `json:"count"`
}

type Geographic struct {
	Period         Period      `json:"period"`
	Cities         []CityViews `json:"cities"`
	CitySelections []CityCount `json:"citySelections"`
}

type FilterTypeCount struct {
	FilterType string `json:"filterType"`
	Count      int64  `json:"count"`
}

type FilterCombination struct {
	FilterType  string `json:"filterType"`
	FilterValue string `json:"filterValue"`
	Count       int64  `json:"count"`
}

// FilterEffectiveness relates views carrying a filter to the times it was applied.
type FilterEffectiveness struct {
	FilterType    string  `json:"filterType"`
	Applied       int64   `json:"applied"`
	Views         int64   `json:"views"`
	Effectiveness float64 `json:"effectiveness"`
}

type FilterMetrics struct {
	Period          Period                `json:"period"`
	FilterUsage     []FilterTypeCount     `json:"filterUsage"`
	TopCombinations []FilterCombination   `json:"topCombinations"`
	Effectiveness   []FilterEffectiveness `json:"effectiveness"`
}

type ScreenCount struct {
	Screen string `json:"screen"`
	Views  int64  `json:"views"`
}

type ScreenFlow struct {
	Period           Period        `json:"period"`
	TotalScreenViews int64         `json:"totalScreenViews"`
	Screens          []ScreenCount `json:"screens"`
	DailyTrend       []DailyCount  `json:"dailyTrend"`
}

type LinkTypeCount struct {
	LinkType string `json:"linkType"`
	Count    int64  `json:"count"`
}

type LinkMetrics struct {
	Period      Period          `json:"period"`
	TotalClicks int64           `json:"totalClicks"`
	ByLinkType  []LinkTypeCount `json:"byLinkType"`
	ByEvent     []EntityCount   `json:"byEvent"`
}

type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type WeekdayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type WeekCount struct {
	Week  string `json:"week"`
	Count int64  `json:"count"`
}

type TimeDistribution struct {
	Period    Period         `json:"period"`
	Hourly    []HourCount    `json:"hourly"`
	DayOfWeek []WeekdayCount `json:"dayOfWeek"`
	Weekly    []WeekCount    `json:"weekly"`
}

// FunnelStage is one step of a funnel. It serializes as {"<name>": count}.
type FunnelStage struct {
	Name  string
	Count int64
}

func (s FunnelStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{s.Name: s.Count})
}

func (s *FunnelStage) UnmarshalJSON(data []byte) error {
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, count := range m {
		s.Name, s.Count = name, count
	}
	return nil
}

// Funnel stages are counted independently within the window; they are not
// linked by session, so SuccessRate is an approximation.
type Funnel struct {
	Stages      []FunnelStage `json:"stages"`
	SuccessRate float64       `json:"successRate"`
}

type Funnels struct {
	Period Period `json:"period"`
	Search Funnel `json:"search"`
	Browse Funnel `json:"browse"`
	Filter Funnel `json:"filter"`
}

type Overview struct {
	Period          Period       `json:"period"`
	TotalViews      int64        `json:"totalViews"`
	TotalSearches   int64        `json:"totalSearches"`
	TotalLinkClicks int64        `json:"totalLinkClicks"`
	ActiveUsers     int64        `json:"activeUsers"`
	MostViewedEvent *EntityCount `json:"mostViewedEvent"`
}
