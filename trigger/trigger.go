// Package trigger decides when a session should be asked for feedback.
package trigger

import "abfeedback/api/models"

type Condition string

const (
	TimeOnPage  Condition = "time_on_page"
	ScrollDepth Condition = "scroll_depth"
	ClickCount  Condition = "click_count"
	ExitIntent  Condition = "exit_intent"
	Conversion  Condition = "conversion"
)

// Rule fires when its condition reaches Threshold. A rule with Variant set
// only applies to sessions of that variant. Threshold is ignored by the
// event-presence conditions.
type Rule struct {
	Condition Condition
	Threshold float64
	Variant   models.Variant
}

// DefaultRules: 30s on page, 50% scroll, 5 clicks, any exit intent, any
// conversion.
func DefaultRules() []Rule {
	return []Rule{
		{Condition: TimeOnPage, Threshold: 30000},
		{Condition: ScrollDepth, Threshold: 50},
		{Condition: ClickCount, Threshold: 5},
		{Condition: ExitIntent},
		{Condition: Conversion},
	}
}

type Evaluator struct {
	rules []Rule
}

func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{rules: append([]Rule(nil), rules...)}
}

func Default() *Evaluator {
	return NewEvaluator(DefaultRules())
}

// Evaluate reports whether any applicable rule holds.
func (e *Evaluator) Evaluate(summary models.SessionSummary, events []models.BehaviorEvent, variant models.Variant) bool {
	_, ok := e.Match(summary, events, variant)
	return ok
}

// Match returns the first applicable rule that holds.
func (e *Evaluator) Match(summary models.SessionSummary, events []models.BehaviorEvent, variant models.Variant) (Rule, bool) {
	for _, r := range e.rules {
		if r.Variant != "" && r.Variant != variant {
			continue
		}
		if r.holds(summary, events) {
			return r, true
		}
	}
	return Rule{}, false
}

func (r Rule) holds(summary models.SessionSummary, events []models.BehaviorEvent) bool {
	switch r.Condition {
	case TimeOnPage:
		return float64(summary.TimeOnPage) >= r.Threshold
	case ScrollDepth:
		return summary.ScrollDepth >= r.Threshold
	case ClickCount:
		return float64(summary.ClickCount) >= r.Threshold
	case ExitIntent:
		return models.ContainsKind(events, models.EventExit)
	case Conversion:
		return models.ContainsKind(events, models.EventConversion)
	default:
		return false
	}
}
