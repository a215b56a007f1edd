package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculatePrice runs the ordered rule pipeline over one order's attributes.
// It is pure and stateless: same input and rule set always yields the same
// total and the same breakdown sequence. Rules with missing or malformed
// parameters contribute zero rather than failing; pricing never hard-fails
// on incomplete configuration.
//
// Step order is fixed by type, not by stored priority: base fee, distance,
// package-type markup (on the running total, applied once), urgency fee,
// zone fee, minimum-order floor. Within a type, the active rule with the
// lowest priority wins. The total is rounded half-up to two decimals only
// after the last step.
func CalculatePrice(input PriceInput, rules []PricingRule) PriceQuote {
	byType := firstActiveByType(rules)

	total := decimal.Zero
	var breakdown []BreakdownLine

	if rule, ok := byType[RuleBaseFee]; ok {
		if p, ok := rule.amountParams(); ok && p.Amount.IsPositive() {
			total = total.Add(p.Amount)
			breakdown = append(breakdown, BreakdownLine{
				Type:   RuleBaseFee,
				Amount: p.Amount,
				Detail: rule.Name,
			})
		}
	}

	if rule, ok := byType[RuleDistance]; ok && input.Distance.IsPositive() {
		if p, ok := rule.distanceParams(); ok && p.PricePerKm.IsPositive() {
			fee := input.Distance.Mul(p.PricePerKm)
			total = total.Add(fee)
			breakdown = append(breakdown, BreakdownLine{
				Type:   RuleDistance,
				Amount: fee,
				Detail: fmt.Sprintf("%s km x %s", input.Distance, p.PricePerKm),
			})
		}
	}

	if rule, ok := byType[RulePackageType]; ok && input.PackageType != "" {
		if p, ok := rule.lookupParams(); ok {
			if multiplier, ok := p[input.PackageType]; ok && multiplier.GreaterThan(decimal.NewFromInt(1)) {
				// Markup on the running total so far, applied exactly once.
				markup := total.Mul(multiplier.Sub(decimal.NewFromInt(1)))
				total = total.Add(markup)
				breakdown = append(breakdown, BreakdownLine{
					Type:   RulePackageType,
					Amount: markup,
					Detail: fmt.Sprintf("%s x%s", input.PackageType, multiplier),
				})
			}
		}
	}

	if rule, ok := byType[RuleUrgency]; ok && input.Urgency != "" {
		if p, ok := rule.lookupParams(); ok {
			if fee, ok := p[input.Urgency]; ok && fee.IsPositive() {
				total = total.Add(fee)
				breakdown = append(breakdown, BreakdownLine{
					Type:   RuleUrgency,
					Amount: fee,
					Detail: input.Urgency,
				})
			}
		}
	}

	if rule, ok := byType[RuleZone]; ok && input.Zone != "" {
		if p, ok := rule.lookupParams(); ok {
			if fee, ok := p[input.Zone]; ok && fee.IsPositive() {
				total = total.Add(fee)
				breakdown = append(breakdown, BreakdownLine{
					Type:   RuleZone,
					Amount: fee,
					Detail: input.Zone,
				})
			}
		}
	}

	if rule, ok := byType[RuleMinimumOrder]; ok {
		if p, ok := rule.amountParams(); ok && total.LessThan(p.Amount) {
			deficit := p.Amount.Sub(total)
			total = p.Amount
			breakdown = append(breakdown, BreakdownLine{
				Type:   RuleMinimumOrder,
				Amount: deficit,
				Detail: fmt.Sprintf("raised to minimum %s", p.Amount),
			})
		}
	}

	return PriceQuote{
		TotalPrice: total.Round(2),
		Breakdown:  breakdown,
	}
}

// firstActiveByType picks, per rule type, the active rule with the lowest
// priority. Inactive rules and types the pipeline does not price (e.g. a
// type added by a newer admin UI) are skipped without error.
func firstActiveByType(rules []PricingRule) map[RuleType]PricingRule {
	byType := make(map[RuleType]PricingRule, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if cur, ok := byType[r.Type]; !ok || r.Priority < cur.Priority {
			byType[r.Type] = r
		}
	}
	return byType
}
