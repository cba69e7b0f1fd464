package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"abfeedback/api/models"
)

func TestTimeOnPageBoundary(t *testing.T) {
	e := Default()

	below := models.SessionSummary{TimeOnPage: 29999}
	assert.False(t, e.Evaluate(below, nil, models.VariantA))

	at := models.SessionSummary{TimeOnPage: 30000}
	assert.True(t, e.Evaluate(at, nil, models.VariantA))
}

func TestThresholdRules(t *testing.T) {
	e := Default()

	tests := []struct {
		name    string
		summary models.SessionSummary
		want    bool
		rule    Condition
	}{
		{name: "nothing", summary: models.SessionSummary{}, want: false},
		{name: "scroll below", summary: models.SessionSummary{ScrollDepth: 49.9}, want: false},
		{name: "scroll at", summary: models.SessionSummary{ScrollDepth: 50}, want: true, rule: ScrollDepth},
		{name: "clicks below", summary: models.SessionSummary{ClickCount: 4}, want: false},
		{name: "clicks at", summary: models.SessionSummary{ClickCount: 5}, want: true, rule: ClickCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := e.Match(tt.summary, nil, models.VariantB)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.rule, rule.Condition)
			}
		})
	}
}

func TestEventPresenceRules(t *testing.T) {
	e := Default()

	exit := []models.BehaviorEvent{{Type: models.EventExit, OffsetMs: 0, PagePath: "/"}}
	rule, ok := e.Match(models.SessionSummary{}, exit, models.VariantA)
	assert.True(t, ok)
	assert.Equal(t, ExitIntent, rule.Condition)

	conv := []models.BehaviorEvent{{Type: models.EventView}, {Type: models.EventConversion, Value: "signup"}}
	rule, ok = e.Match(models.SessionSummary{}, conv, models.VariantA)
	assert.True(t, ok)
	assert.Equal(t, Conversion, rule.Condition)

	other := []models.BehaviorEvent{{Type: models.EventView}, {Type: models.EventHover}, {Type: models.EventScroll, Value: 10.0}}
	assert.False(t, e.Evaluate(models.SessionSummary{}, other, models.VariantA))
}

func TestVariantScopedRule(t *testing.T) {
	e := NewEvaluator([]Rule{{Condition: ClickCount, Threshold: 2, Variant: models.VariantB}})
	summary := models.SessionSummary{ClickCount: 3}

	assert.False(t, e.Evaluate(summary, nil, models.VariantA))
	assert.True(t, e.Evaluate(summary, nil, models.VariantB))
}

func TestUnknownConditionNeverHolds(t *testing.T) {
	e := NewEvaluator([]Rule{{Condition: "bounce", Threshold: 0}})
	assert.False(t, e.Evaluate(models.SessionSummary{TimeOnPage: 1e9}, nil, models.VariantA))
}
