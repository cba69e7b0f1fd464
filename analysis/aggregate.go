// Package analysis computes per-variant summary metrics from stored records.
package analysis

import (
	"math"

	"abfeedback/api/models"
	"abfeedback/api/utils"
)

// Aggregate computes the analysis for v over the records whose variant is
// exactly v. It is pure: equal inputs give identical results, and no field is
// ever NaN.
func Aggregate(v models.Variant, behaviors []models.BehaviorRecord, feedbacks []models.FeedbackRecord) models.VariantAnalysis {
	var (
		ratingSum   float64
		ratingCount int
		feedbackN   int
	)
	for _, f := range feedbacks {
		if f.Variant != v {
			continue
		}
		feedbackN++
		if r := f.Feedback.Rating; r != nil && !math.IsNaN(*r) && !math.IsInf(*r, 0) {
			ratingSum += *r
			ratingCount++
		}
	}

	var (
		sessions    int
		timeSum     float64
		conversions int
		engagement  float64
	)
	for i := range behaviors {
		b := &behaviors[i]
		if b.Variant != v {
			continue
		}
		sessions++
		timeSum += utils.Finite(float64(b.Summary.TimeOnPage))
		if b.HasEvent(models.EventConversion) {
			conversions++
		}
		engagement += float64(b.Summary.ClickCount)*10 + utils.Finite(b.Summary.ScrollDepth)
	}

	return models.VariantAnalysis{
		Variant:   v,
		AvgRating: mean(ratingSum, ratingCount),
		BehaviorMetrics: models.BehaviorMetrics{
			AvgTimeOnPage:   mean(timeSum, sessions),
			ConversionRate:  mean(float64(conversions)*100, sessions),
			EngagementScore: mean(engagement, sessions),
			TotalSessions:   sessions,
		},
		FeedbackCount: feedbackN,
	}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return utils.Finite(sum / float64(n))
}

// Compare lines up the dashboard metrics of two analyses. The higher value
// wins; equal values are a tie.
func Compare(a, b models.VariantAnalysis) models.VariantComparison {
	metric := func(name string, va, vb float64) models.MetricComparison {
		winner := models.WinnerTie
		switch {
		case va > vb:
			winner = string(models.VariantA)
		case vb > va:
			winner = string(models.VariantB)
		}
		return models.MetricComparison{
			Name:       name,
			ValueA:     va,
			ValueB:     vb,
			Winner:     winner,
			Difference: math.Abs(va - vb),
		}
	}

	return models.VariantComparison{
		A: a,
		B: b,
		Metrics: []models.MetricComparison{
			metric("avgRating", a.AvgRating, b.AvgRating),
			metric("avgTimeOnPage", a.BehaviorMetrics.AvgTimeOnPage, b.BehaviorMetrics.AvgTimeOnPage),
			metric("conversionRate", a.BehaviorMetrics.ConversionRate, b.BehaviorMetrics.ConversionRate),
			metric("engagementScore", a.BehaviorMetrics.EngagementScore, b.BehaviorMetrics.EngagementScore),
		},
	}
}
