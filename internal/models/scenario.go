package models

import (
	"fmt"
	"strings"
)

// ScenarioType identifies the kind of operational decision being made.
type ScenarioType string

const (
	ScenarioDiversion          ScenarioType = "diversion"
	ScenarioDelayManagement    ScenarioType = "delay_management"
	ScenarioRouteOptimization  ScenarioType = "route_optimization"
	ScenarioResourceAllocation ScenarioType = "resource_allocation"
)

// AllScenarioTypes returns every supported scenario type in catalogue order.
func AllScenarioTypes() []ScenarioType {
	return []ScenarioType{
		ScenarioDiversion,
		ScenarioDelayManagement,
		ScenarioRouteOptimization,
		ScenarioResourceAllocation,
	}
}

// IsValid reports whether t is one of the supported scenario types.
func (t ScenarioType) IsValid() bool {
	for _, known := range AllScenarioTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseScenarioType converts a caller-supplied string into a ScenarioType.
// Hyphens are accepted in place of underscores.
func ParseScenarioType(s string) (ScenarioType, error) {
	normalized := ScenarioType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid scenario type %q: must be one of %s", s, joinScenarioTypes())
	}
	return normalized, nil
}

func joinScenarioTypes() string {
	types := AllScenarioTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Weather holds the observed or forecast conditions at an option's location.
type Weather struct {
	VisibilityKm *float64 `json:"visibilityKm,omitempty"`
	WindSpeedKts *float64 `json:"windSpeedKts,omitempty"`
	CeilingFt    *float64 `json:"ceilingFt,omitempty"`
}

// DecisionOption is a single candidate within a scenario: an alternate
// airport, a reaccommodation plan, a route. Every factor is optional; a nil
// factor carries no signal.
type DecisionOption struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	EstimatedCostUSD      *float64 `json:"estimatedCostUsd,omitempty"`
	EstimatedDelayMinutes *float64 `json:"estimatedDelayMinutes,omitempty"`
	FuelRequiredKg        *float64 `json:"fuelRequiredKg,omitempty"`
	MissedConnections     *int     `json:"missedConnections,omitempty"`
	Weather               *Weather `json:"weather,omitempty"`

	RunwayLengthFt       *float64 `json:"runwayLengthFt,omitempty"`
	FireCategory         *int     `json:"fireCategory,omitempty"`
	MaintenanceAvailable *bool    `json:"maintenanceAvailable,omitempty"`
}

// DisplayName returns the option title, falling back to its id.
func (o DecisionOption) DisplayName() string {
	if strings.TrimSpace(o.Title) != "" {
		return o.Title
	}
	return o.ID
}

// ScenarioContext carries scenario-wide bounds shared by every option.
type ScenarioContext struct {
	MaxCostBudget  *float64 `json:"maxCostBudget,omitempty"`
	CurrentFuelKg  *float64 `json:"currentFuelKg,omitempty"`
	PassengerCount *int     `json:"passengerCount,omitempty"`
}

// DecisionScenario is one decision request. It is built per request and
// discarded once it has produced a DecisionAnalysis.
type DecisionScenario struct {
	Type        ScenarioType     `json:"type"`
	Description string           `json:"description,omitempty"`
	Context     ScenarioContext  `json:"context"`
	Options     []DecisionOption `json:"options"`
}

// OptionByID returns the option with the given id.
func (s *DecisionScenario) OptionByID(id string) (DecisionOption, bool) {
	for _, o := range s.Options {
		if o.ID == id {
			return o, true
		}
	}
	return DecisionOption{}, false
}

// Validate checks the caller contract: a known type and uniquely identified
// options. It returns a *MalformedScenarioError describing every problem.
func (s *DecisionScenario) Validate() error {
	if s == nil {
		return &MalformedScenarioError{Problems: []string{"scenario is required"}}
	}

	var problems []string
	switch {
	case s.Type == "":
		problems = append(problems, "type is required")
	case !s.Type.IsValid():
		problems = append(problems, fmt.Sprintf("type %q is not supported (want one of %s)", s.Type, joinScenarioTypes()))
	}

	seen := make(map[string]int, len(s.Options))
	for i, o := range s.Options {
		if strings.TrimSpace(o.ID) == "" {
			problems = append(problems, fmt.Sprintf("options[%d]: id is required", i))
			continue
		}
		if first, dup := seen[o.ID]; dup {
			problems = append(problems, fmt.Sprintf("options[%d]: id %q duplicates options[%d]", i, o.ID, first))
			continue
		}
		seen[o.ID] = i
	}

	if len(problems) > 0 {
		return &MalformedScenarioError{Problems: problems}
	}
	return nil
}

// MalformedScenarioError reports a violation of the request contract. It is
// the only analysis failure that reaches callers.
type MalformedScenarioError struct {
	Problems []string
}

func (e *MalformedScenarioError) Error() string {
	if len(e.Problems) == 0 {
		return "malformed scenario"
	}
	return "malformed scenario: " + strings.Join(e.Problems, "; ")
}
