package quick

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

const (
	// CriticalConfidence is the confidence of every plan served for
	// CRITICAL urgency. The plan is correct by policy, not by computation.
	CriticalConfidence = 0.95
	// DefaultConfidence applies to every other urgency tier.
	DefaultConfidence = 0.85
)

type key struct {
	scenarioType models.ScenarioType
	urgency      models.Urgency
}

type plan struct {
	action         string
	rationale      string
	immediateSteps []string
}

var timeToDecision = map[models.Urgency]string{
	models.UrgencyCritical: "Immediate (under 2 minutes)",
	models.UrgencyHigh:     "Within 10 minutes",
	models.UrgencyMedium:   "Within 30 minutes",
	models.UrgencyLow:      "Within 2 hours",
}

var plans = map[key]plan{
	{models.ScenarioDiversion, models.UrgencyCritical}: {
		action:    "Declare emergency and divert to the nearest suitable airport",
		rationale: "Safety of flight overrides cost and schedule when the situation is critical",
		immediateSteps: []string{
			"Declare emergency (MAYDAY) with ATC",
			"Select the nearest airport with adequate runway and fire cover",
			"Notify operations control and the destination station",
			"Brief cabin crew and prepare passengers for landing",
		},
	},
	{models.ScenarioDiversion, models.UrgencyHigh}: {
		action:    "Divert to the best-equipped alternate within range",
		rationale: "Time allows choosing an alternate with maintenance and passenger handling",
		immediateSteps: []string{
			"Request priority handling (PAN PAN) from ATC",
			"Confirm fuel state against the top two alternates",
			"Check maintenance and ground handling at the chosen alternate",
			"Coordinate passenger care with operations control",
		},
	},
	{models.ScenarioDiversion, models.UrgencyMedium}: {
		action:    "Evaluate alternates and prepare a diversion plan",
		rationale: "No immediate threat; a scored comparison of alternates is affordable",
		immediateSteps: []string{
			"Gather weather and NOTAMs for candidate alternates",
			"Run a full analysis of diversion options",
			"Pre-brief the crew on the preferred alternate",
		},
	},
	{models.ScenarioDelayManagement, models.UrgencyCritical}: {
		action:    "Protect downstream rotations and rebook at-risk connections now",
		rationale: "A critical delay cascades through the network unless contained immediately",
		immediateSteps: []string{
			"Identify passengers with connections at risk",
			"Swap or protect the next rotation of the aircraft",
			"Alert crew scheduling about duty-time limits",
			"Publish a revised departure time",
		},
	},
	{models.ScenarioDelayManagement, models.UrgencyHigh}: {
		action:    "Reaccommodate misconnecting passengers and adjust the schedule",
		rationale: "Early rebooking keeps compensation and misconnect costs down",
		immediateSteps: []string{
			"Rebook passengers whose connections will be missed",
			"Check crew legality for the delayed departure",
			"Inform the destination station of the new ETA",
		},
	},
	{models.ScenarioDelayManagement, models.UrgencyMedium}: {
		action:    "Monitor the delay and prepare recovery options",
		rationale: "The delay is still absorbable within the schedule buffer",
		immediateSteps: []string{
			"Track the revised ETD against connection windows",
			"Prepare rebooking options in case the delay grows",
		},
	},
	{models.ScenarioRouteOptimization, models.UrgencyCritical}: {
		action:    "Request an immediate reroute around the hazard",
		rationale: "Avoiding the hazard outweighs any fuel or time penalty",
		immediateSteps: []string{
			"Request the reroute from ATC",
			"Recalculate fuel for the new routing",
			"Confirm alternates remain valid on the new track",
		},
	},
	{models.ScenarioRouteOptimization, models.UrgencyHigh}: {
		action:    "File the alternative route with the best fuel margin",
		rationale: "A prompt refile secures the slot before conditions change",
		immediateSteps: []string{
			"Compare fuel burn on the candidate routes",
			"File the amended flight plan",
			"Brief the crew on the routing change",
		},
	},
	{models.ScenarioRouteOptimization, models.UrgencyMedium}: {
		action:    "Analyse route options before the next planning cycle",
		rationale: "There is time to optimise for cost and winds",
		immediateSteps: []string{
			"Fetch updated wind and weather forecasts",
			"Run a full analysis of route options",
		},
	},
	{models.ScenarioResourceAllocation, models.UrgencyCritical}: {
		action:    "Reassign standby resources to the affected flight immediately",
		rationale: "An uncovered flight grounds the aircraft and strands passengers",
		immediateSteps: []string{
			"Call out standby crew or a spare aircraft",
			"Notify ground handling of the change",
			"Confirm legality and readiness before departure",
		},
	},
	{models.ScenarioResourceAllocation, models.UrgencyHigh}: {
		action:    "Rebalance resources from lower-priority flights",
		rationale: "Moving resources early avoids knock-on cancellations",
		immediateSteps: []string{
			"Rank flights by passenger and network impact",
			"Move resources from the lowest-impact flight",
			"Update the operations plan",
		},
	},
	{models.ScenarioResourceAllocation, models.UrgencyMedium}: {
		action:    "Plan resource allocation for the coming operating window",
		rationale: "Demand can be met by adjusting the plan without disruption",
		immediateSteps: []string{
			"Review forecast demand against available resources",
			"Run a full analysis of allocation options",
		},
	},
}

var genericPlan = plan{
	action:    "Gather data, analyze options, implement decision",
	rationale: "No predefined plan exists for this situation",
	immediateSteps: []string{
		"Gather current operational data",
		"Analyze the available options",
		"Implement the decision and monitor the outcome",
	},
}

// callerContext holds the context fields that personalise a plan.
type callerContext struct {
	FlightNumber   string `mapstructure:"flightNumber"`
	NearestAirport string `mapstructure:"nearestAirport"`
}

// Lookup returns the canned plan for a scenario type and urgency. Unknown
// or unparseable combinations get the generic plan; Lookup never fails.
func Lookup(scenarioType, urgency string, context map[string]any) models.CannedPlan {
	st, stErr := models.ParseScenarioType(scenarioType)
	u, uErr := models.ParseUrgency(urgency)

	p, ok := plans[key{st, u}]
	if stErr != nil || uErr != nil || !ok {
		p = genericPlan
	}

	confidence := DefaultConfidence
	if u == models.UrgencyCritical {
		confidence = CriticalConfidence
	}

	ttd, ok := timeToDecision[u]
	if !ok {
		ttd = "As soon as practical"
	}

	result := models.CannedPlan{
		ScenarioType:   models.ScenarioType(scenarioType),
		Urgency:        models.Urgency(urgency),
		Action:         p.action,
		Rationale:      p.rationale,
		ImmediateSteps: append([]string(nil), p.immediateSteps...),
		Confidence:     confidence,
		TimeToDecision: ttd,
	}
	if stErr == nil {
		result.ScenarioType = st
	}
	if uErr == nil {
		result.Urgency = u
	}

	personalise(&result, context)
	return result
}

func personalise(plan *models.CannedPlan, context map[string]any) {
	if len(context) == 0 {
		return
	}

	var c callerContext
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err == nil {
		err = dec.Decode(context)
	}
	if err != nil {
		slog.Debug("Ignoring quick-recommendation context", "error", err)
		return
	}

	if airport := strings.TrimSpace(c.NearestAirport); airport != "" && plan.ScenarioType == models.ScenarioDiversion {
		plan.Action = fmt.Sprintf("%s (%s)", plan.Action, airport)
	}
	if flight := strings.TrimSpace(c.FlightNumber); flight != "" {
		plan.Action = fmt.Sprintf("%s: %s", flight, plan.Action)
	}
}
