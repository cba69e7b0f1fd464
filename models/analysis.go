package models

type BehaviorMetrics struct {
	AvgTimeOnPage   float64 `json:"avgTimeOnPage"`
	ConversionRate  float64 `json:"conversionRate"`
	EngagementScore float64 `json:"engagementScore"`
	TotalSessions   int     `json:"totalSessions"`
}

// VariantAnalysis is recomputed on every query and never persisted.
type VariantAnalysis struct {
	Variant         Variant         `json:"variant"`
	AvgRating       float64         `json:"avgRating"`
	BehaviorMetrics BehaviorMetrics `json:"behaviorMetrics"`
	FeedbackCount   int             `json:"feedbackCount"`
}

const WinnerTie = "tie"

type MetricComparison struct {
	Name       string  `json:"name"`
	ValueA     float64 `json:"valueA"`
	ValueB     float64 `json:"valueB"`
	Winner     string  `json:"winner"`
	Difference float64 `json:"difference"`
}

type VariantComparison struct {
	A       VariantAnalysis    `json:"a"`
	B       VariantAnalysis    `json:"b"`
	Metrics []MetricComparison `json:"metrics"`
}
