package pricing

import (
	"regexp"
	"strconv"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
)

// Config is the pricing summary served to clients.
type Config struct {
	TripBaseCost         int `json:"TRIP_BASE_COST"`
	TripDailyCost        int `json:"TRIP_DAILY_COST"`
	NewUserBonus         int `json:"NEW_USER_BONUS"`
	AttractionSearchCost int `json:"ATTRACTION_SEARCH_COST"`
}

// Service prices actions from a Table.
type Service struct {
	table Table
}

func NewService(table Table) *Service {
	return &Service{table: table}
}

// Cost returns the point price of action. Trip generation scales with the
// number of days in the date range; other actions are flat.
func (s *Service) Cost(action domain.Action, params domain.PriceParams) int {
	if action == domain.ActionGenerateTrip {
		return s.table.TripBaseCost + s.table.TripDailyCost*TripDays(params.DateRange)
	}
	if action == "SEARCH_ATTRACTION" {
		return s.table.AttractionSearchCost
	}
	return s.table.ActionCosts[string(action)]
}

func (s *Service) Config() Config {
	return Config{
		TripBaseCost:         s.table.TripBaseCost,
		TripDailyCost:        s.table.TripDailyCost,
		NewUserBonus:         s.table.NewUserBonus,
		AttractionSearchCost: s.table.AttractionSearchCost,
	}
}

// Packages returns a copy of the purchasable point packages.
func (s *Service) Packages() []Package {
	return append([]Package(nil), s.table.Packages...)
}

var (
	dayCountPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:days?|天|日)`)
	isoDatePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

const maxTripDays = 60

// TripDays reads a day count from "5 days", "5天", or an inclusive pair of
// ISO dates. Anything unparseable counts as one day.
func TripDays(dateRange string) int {
	if m := dayCountPattern.FindStringSubmatch(dateRange); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return clampDays(n)
		}
	}
	if dates := isoDatePattern.FindAllString(dateRange, 2); len(dates) == 2 {
		start, err1 := time.Parse("2006-01-02", dates[0])
		end, err2 := time.Parse("2006-01-02", dates[1])
		if err1 == nil && err2 == nil && !end.Before(start) {
			return clampDays(int(end.Sub(start).Hours()/24) + 1)
		}
	}
	return 1
}

func clampDays(n int) int {
	if n > maxTripDays {
		return maxTripDays
	}
	return n
}
