package analysis

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"abfeedback/api/models"
	"abfeedback/api/store"
)

// Sources picks one collaborator per call: the authoritative primary when its
// query succeeds, even with zero rows, or the local fallback when the primary
// query fails. Results from the two are never merged.
type Sources struct {
	Primary  store.Source
	Fallback store.Source
}

// Records is one consistent read from a single collaborator.
type Records struct {
	Behaviors []models.BehaviorRecord
	Feedbacks []models.FeedbackRecord
	Source    string
}

// Both reads behaviors and feedbacks from the same collaborator. The primary
// is used only if both of its queries succeed.
func (s Sources) Both(ctx context.Context, f store.Filter) Records {
	if s.Primary != nil {
		var recs Records
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			b, err := s.Primary.ListBehaviors(gctx, f)
			if err != nil {
				return fmt.Errorf("behaviors: %w", err)
			}
			recs.Behaviors = b
			return nil
		})
		g.Go(func() error {
			fb, err := s.Primary.ListFeedbacks(gctx, f)
			if err != nil {
				return fmt.Errorf("feedbacks: %w", err)
			}
			recs.Feedbacks = fb
			return nil
		})
		err := g.Wait()
		if err == nil {
			recs.Source = s.Primary.Name()
			return recs
		}
		log.Printf("[Analysis] %s query failed, falling back: %v", s.Primary.Name(), err)
	}

	recs := Records{Source: sourceName(s.Fallback)}
	if s.Fallback == nil {
		return recs
	}
	var err error
	if recs.Behaviors, err = s.Fallback.ListBehaviors(ctx, f); err != nil {
		log.Printf("[Analysis] fallback %s behaviors query failed: %v", s.Fallback.Name(), err)
		recs.Behaviors = nil
	}
	if recs.Feedbacks, err = s.Fallback.ListFeedbacks(ctx, f); err != nil {
		log.Printf("[Analysis] fallback %s feedbacks query failed: %v", s.Fallback.Name(), err)
		recs.Feedbacks = nil
	}
	return recs
}

func (s Sources) Behaviors(ctx context.Context, f store.Filter) ([]models.BehaviorRecord, string) {
	return pick(s, "behaviors", func(src store.Source) ([]models.BehaviorRecord, error) {
		return src.ListBehaviors(ctx, f)
	})
}

func (s Sources) Feedbacks(ctx context.Context, f store.Filter) ([]models.FeedbackRecord, string) {
	return pick(s, "feedbacks", func(src store.Source) ([]models.FeedbackRecord, error) {
		return src.ListFeedbacks(ctx, f)
	})
}

func pick[T any](s Sources, what string, list func(store.Source) ([]T, error)) ([]T, string) {
	if s.Primary != nil {
		out, err := list(s.Primary)
		if err == nil {
			return out, s.Primary.Name()
		}
		log.Printf("[Analysis] %s %s query failed, falling back: %v", s.Primary.Name(), what, err)
	}
	if s.Fallback == nil {
		return nil, ""
	}
	out, err := list(s.Fallback)
	if err != nil {
		log.Printf("[Analysis] fallback %s %s query failed: %v", s.Fallback.Name(), what, err)
		return nil, s.Fallback.Name()
	}
	return out, s.Fallback.Name()
}

func sourceName(s store.Source) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

// Aggregator answers analysis queries from whichever collaborator Sources
// selects.
type Aggregator struct {
	sources Sources
}

func NewAggregator(primary, fallback store.Source) *Aggregator {
	return &Aggregator{sources: Sources{Primary: primary, Fallback: fallback}}
}

func (a *Aggregator) Sources() Sources { return a.sources }

// Analyze returns the analysis for v and the name of the collaborator read.
func (a *Aggregator) Analyze(ctx context.Context, v models.Variant) (models.VariantAnalysis, string, error) {
	if !v.Valid() {
		return models.VariantAnalysis{}, "", models.ErrInvalidVariant
	}
	recs := a.sources.Both(ctx, store.Filter{Variant: v})
	return Aggregate(v, recs.Behaviors, recs.Feedbacks), recs.Source, nil
}

// CompareVariants analyses A and B and lines up their metrics.
func (a *Aggregator) CompareVariants(ctx context.Context) models.VariantComparison {
	va, _, _ := a.Analyze(ctx, models.VariantA)
	vb, _, _ := a.Analyze(ctx, models.VariantB)
	return Compare(va, vb)
}
