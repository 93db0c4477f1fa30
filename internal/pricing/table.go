package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Package is a purchasable bundle of points shown to clients.
type Package struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Points      int    `json:"points" yaml:"points" toml:"points"`
	Price       int    `json:"price" yaml:"price" toml:"price"`
	Type        string `json:"type,omitempty" yaml:"type" toml:"type"`
	Popular     bool   `json:"popular,omitempty" yaml:"popular" toml:"popular"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// Table holds every price the service charges.
type Table struct {
	TripBaseCost         int
	TripDailyCost        int
	NewUserBonus         int
	AttractionSearchCost int
	// ActionCosts are flat prices for actions other than trip generation.
	ActionCosts map[string]int
	Packages    []Package
}

// DefaultTable is used when no pricing file is configured.
func DefaultTable() Table {
	return Table{
		TripBaseCost:         20,
		TripDailyCost:        10,
		NewUserBonus:         100,
		AttractionSearchCost: 5,
		ActionCosts: map[string]int{
			"GET_RECOMMENDATIONS": 5,
			"CHECK_FEASIBILITY":   5,
			"GENERATE_ADVISORY":   5,
			"UPDATE_TRIP":         10,
		},
		Packages: []Package{
			{ID: "pkg_100", Points: 100, Price: 30, Type: "points", Name: "100 點", Description: "適合小額體驗 AI 功能"},
			{ID: "pkg_500", Points: 500, Price: 130, Type: "points", Popular: true, Name: "500 點", Description: "最受歡迎的點數方案"},
			{ID: "pkg_1000", Points: 1000, Price: 250, Type: "points", Name: "1000 點", Description: "高用量推薦，單點成本更划算"},
			{ID: "plan_unlimited", Points: 0, Price: 399, Type: "subscription", Name: "無限會員", Description: "訂閱期間內享會員功能與指定服務免費"},
		},
	}
}

type fileTable struct {
	TripBaseCost         *int           `yaml:"trip_base_cost" toml:"trip_base_cost"`
	TripDailyCost        *int           `yaml:"trip_daily_cost" toml:"trip_daily_cost"`
	NewUserBonus         *int           `yaml:"new_user_bonus" toml:"new_user_bonus"`
	AttractionSearchCost *int           `yaml:"attraction_search_cost" toml:"attraction_search_cost"`
	Actions              map[string]int `yaml:"actions" toml:"actions"`
	Packages             []Package      `yaml:"packages" toml:"packages"`
}

// LoadTable reads a YAML or TOML pricing file and overlays it on the
// defaults. An empty path returns the defaults.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read pricing file: %w", err)
	}

	var file fileTable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Table{}, fmt.Errorf("parse yaml pricing: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return Table{}, fmt.Errorf("parse toml pricing: %w", err)
		}
	default:
		return Table{}, fmt.Errorf("unsupported pricing file extension: %s", filepath.Ext(path))
	}

	if err := applyFileTable(&table, file); err != nil {
		return Table{}, err
	}
	return table, nil
}

func applyFileTable(table *Table, file fileTable) error {
	for name, v := range map[string]*int{
		"trip_base_cost":         file.TripBaseCost,
		"trip_daily_cost":        file.TripDailyCost,
		"new_user_bonus":         file.NewUserBonus,
		"attraction_search_cost": file.AttractionSearchCost,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if file.TripBaseCost != nil {
		table.TripBaseCost = *file.TripBaseCost
	}
	if file.TripDailyCost != nil {
		table.TripDailyCost = *file.TripDailyCost
	}
	if file.NewUserBonus != nil {
		table.NewUserBonus = *file.NewUserBonus
	}
	if file.AttractionSearchCost != nil {
		table.AttractionSearchCost = *file.AttractionSearchCost
	}
	for action, cost := range file.Actions {
		if cost < 0 {
			return fmt.Errorf("actions.%s must be >= 0", action)
		}
		table.ActionCosts[strings.ToUpper(action)] = cost
	}
	if len(file.Packages) > 0 {
		seen := make(map[string]bool, len(file.Packages))
		for _, pkg := range file.Packages {
			if pkg.ID == "" {
				return fmt.Errorf("packages: id is required")
			}
			if seen[pkg.ID] {
				return fmt.Errorf("packages: duplicate id %q", pkg.ID)
			}
			seen[pkg.ID] = true
		}
		table.Packages = append([]Package(nil), file.Packages...)
	}
	return nil
}
