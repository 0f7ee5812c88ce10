package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultAlternatives is the number of runner-up options surfaced as
// ALTERNATIVE recommendations.
const DefaultAlternatives = 2

// Builder turns ranked, scored options into recommendation records.
// Output is fully templated so it can be audited.
type Builder struct {
	// Alternatives is how many options after the primary are surfaced.
	Alternatives int

	printer *message.Printer
}

// NewBuilder creates a recommendation builder with the default cutoff.
func NewBuilder() *Builder {
	return NewBuilderWithAlternatives(DefaultAlternatives)
}

// NewBuilderWithAlternatives creates a builder that surfaces up to n
// alternatives. Negative values are treated as zero.
func NewBuilderWithAlternatives(n int) *Builder {
	if n < 0 {
		n = 0
	}
	return &Builder{
		Alternatives: n,
		printer:      message.NewPrinter(language.English),
	}
}

// Build maps scored options onto PRIMARY, RISK_MITIGATION and ALTERNATIVE
// recommendations, in that order. Options that are not part of the scenario
// are skipped.
func (b *Builder) Build(scenario *models.DecisionScenario, scored []models.ScoredOption) []models.Recommendation {
	recs := []models.Recommendation{}
	if scenario == nil || len(scored) == 0 {
		return recs
	}

	ranked := make([]models.ScoredOption, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(a, c int) bool {
		return ranked[a].RecommendationRank < ranked[c].RecommendationRank
	})

	primary := ranked[0]
	primaryOpt, ok := scenario.OptionByID(primary.OptionID)
	if !ok {
		return recs
	}

	recs = append(recs, models.Recommendation{
		Type:            models.RecommendationPrimary,
		OptionID:        primary.OptionID,
		Confidence:      models.Clamp01(primary.Confidence),
		Rationale:       b.primaryReason(primary, ranked),
		Action:          actionFor(scenario.Type, primaryOpt),
		ExpectedOutcome: b.expectedOutcome(primaryOpt),
	})

	if primary.RiskLevel.NeedsMitigation() {
		recs = append(recs, models.Recommendation{
			Type:       models.RecommendationRiskMitigation,
			OptionID:   primary.OptionID,
			Confidence: models.Clamp01(primary.Confidence),
			Rationale: fmt.Sprintf("Primary option carries %s risk (score %.3f)",
				primary.RiskLevel, primary.TotalScore),
			Action: fmt.Sprintf("Before committing to %s, confirm contingency fuel and alternates, brief the crew and alert operations control",
				primaryOpt.DisplayName()),
			ExpectedOutcome: fmt.Sprintf("Exposure reduced to an acceptable level before %s is executed", primaryOpt.DisplayName()),
		})
	}

	limit := 1 + b.Alternatives
	for _, alt := range ranked[1:] {
		if alt.RecommendationRank > limit {
			break
		}
		opt, ok := scenario.OptionByID(alt.OptionID)
		if !ok {
			continue
		}
		recs = append(recs, models.Recommendation{
			Type:       models.RecommendationAlternative,
			OptionID:   alt.OptionID,
			Confidence: models.Clamp01(alt.Confidence),
			Rationale: fmt.Sprintf("Ranked #%d (score %.3f) with %s risk, %.3f below the primary",
				alt.RecommendationRank, alt.TotalScore, alt.RiskLevel, math.Max(0, primary.TotalScore-alt.TotalScore)),
			Action:          fmt.Sprintf("Keep %s available as a fallback", opt.DisplayName()),
			ExpectedOutcome: b.expectedOutcome(opt),
		})
	}

	return recs
}

func (b *Builder) primaryReason(primary models.ScoredOption, ranked []models.ScoredOption) string {
	reason := fmt.Sprintf("Highest score (%.3f) with %s risk", primary.TotalScore, primary.RiskLevel)
	if len(ranked) > 1 && ranked[1].TotalScore == primary.TotalScore {
		return reason + fmt.Sprintf("; tied with %s, first in submission order selected", ranked[1].OptionID)
	}
	if factor := primary.DominantFactor(); factor != "" {
		reason += "; strongest factor: " + factor
	}
	return reason
}

var actionVerbs = map[models.ScenarioType]string{
	models.ScenarioDiversion:          "Divert to %s",
	models.ScenarioDelayManagement:    "Implement %s",
	models.ScenarioRouteOptimization:  "File and fly %s",
	models.ScenarioResourceAllocation: "Allocate resources to %s",
}

func actionFor(t models.ScenarioType, opt models.DecisionOption) string {
	format, ok := actionVerbs[t]
	if !ok {
		format = "Proceed with %s"
	}
	action := fmt.Sprintf(format, opt.DisplayName())
	if desc := strings.TrimSpace(opt.Description); desc != "" {
		action += " (" + desc + ")"
	}
	return action
}

// expectedOutcome describes the supplied factor values of an option.
func (b *Builder) expectedOutcome(opt models.DecisionOption) string {
	var parts []string
	p := b.printer

	if opt.EstimatedDelayMinutes != nil {
		parts = append(parts, p.Sprintf("delay of %d min", round(*opt.EstimatedDelayMinutes)))
	}
	if opt.EstimatedCostUSD != nil {
		parts = append(parts, p.Sprintf("cost of $%d", round(*opt.EstimatedCostUSD)))
	}
	if opt.FuelRequiredKg != nil {
		parts = append(parts, p.Sprintf("%d kg fuel required", round(*opt.FuelRequiredKg)))
	}
	if opt.MissedConnections != nil {
		parts = append(parts, p.Sprintf("%d missed connections", *opt.MissedConnections))
	}
	if opt.Weather != nil && opt.Weather.VisibilityKm != nil {
		parts = append(parts, p.Sprintf("visibility %d km", round(*opt.Weather.VisibilityKm)))
	}
	if opt.RunwayLengthFt != nil {
		parts = append(parts, p.Sprintf("runway %d ft", round(*opt.RunwayLengthFt)))
	}
	if opt.FireCategory != nil {
		parts = append(parts, p.Sprintf("fire category %d", *opt.FireCategory))
	}
	if opt.MaintenanceAvailable != nil {
		if *opt.MaintenanceAvailable {
			parts = append(parts, "maintenance available")
		} else {
			parts = append(parts, "no maintenance on site")
		}
	}

	if len(parts) == 0 {
		return "No quantified factors supplied; outcome depends on operational judgement"
	}
	return "Expected " + strings.Join(parts, ", ")
}

func round(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}
