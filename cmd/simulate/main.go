// Command simulate drives synthetic visitors through the behavior tracker and
// prints the resulting A/B comparison from the local cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"abfeedback/api/analysis"
	"abfeedback/api/config"
	"abfeedback/api/dispatch"
	"abfeedback/api/models"
	"abfeedback/api/store"
	"abfeedback/api/tracker"
	"abfeedback/api/trigger"
	"abfeedback/api/utils"
	"abfeedback/api/variant"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var (
		sessions    = flag.Int("sessions", 20, "number of visitors to simulate")
		concurrency = flag.Int("concurrency", 4, "visitors simulated at once")
		apiURL      = flag.String("api", "http://localhost:"+cfg.Port, "ingest API base URL, empty to skip")
		cacheDir    = flag.String("cache", defaultCacheDir(cfg), "local cache directory")
		testName    = flag.String("test", variant.DefaultTestName, "A/B test name")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		reset       = flag.Bool("reset", false, "clear the local cache before simulating")
	)
	flag.Parse()

	cache, err := store.NewFileCache(*cacheDir)
	if err != nil {
		log.Fatalf("Failed to open local cache: %v", err)
	}
	if *reset {
		if err := cache.Clear(); err != nil {
			log.Fatalf("Failed to clear local cache: %v", err)
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	var remotes []store.Sink
	if *apiURL != "" {
		remotes = append(remotes, store.NewIngestSink(*apiURL, client))
	}
	if cfg.Sinks().MockAPI {
		remotes = append(remotes, store.NewMockAPISink(cfg.MockAPIURL, client))
	}
	dispatcher := dispatch.New(cache, remotes...)
	log.Printf("[Simulate] %d sessions, sinks %v, cache %s", *sessions, dispatcher.Sinks(), *cacheDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &simulator{
		dispatcher: dispatcher,
		testName:   *testName,
		flushEvery: cfg.FlushInterval,
		pollEvery:  cfg.PollInterval,
		seed:       *seed,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	start := time.Now()
	for i := 0; i < *sessions; i++ {
		g.Go(func() error {
			return sim.visit(gctx, i, start.Add(time.Duration(i)*time.Minute))
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[Simulate] stopped early: %v", err)
	}

	cmp := analysis.NewAggregator(nil, cache).CompareVariants(context.Background())
	printComparison(os.Stdout, cmp)
}

func defaultCacheDir(cfg *config.Config) string {
	if cfg.LocalCacheDir != "" {
		return cfg.LocalCacheDir
	}
	return ".abcache"
}

type simulator struct {
	dispatcher *dispatch.Dispatcher
	testName   string
	flushEvery time.Duration
	pollEvery  time.Duration
	seed       uint64
}

// profile biases visitor behavior per variant.
type profile struct {
	conversion float64
	clickRate  float64
	ratingBias int
}

var profiles = map[models.Variant]profile{
	models.VariantA: {conversion: 0.02, clickRate: 0.25, ratingBias: 0},
	models.VariantB: {conversion: 0.04, clickRate: 0.35, ratingBias: 1},
}

var elements = []string{"#hero-cta", "#pricing", "nav a.features", "#signup", "footer a"}

var pages = []string{"/", "/features", "/pricing", "/signup"}

// visit plays one visitor on a synthetic clock. Timers fire from the clock
// rather than wall time.
func (s *simulator) visit(ctx context.Context, n int, at time.Time) error {
	rng := rand.New(rand.NewPCG(s.seed, uint64(n)))
	now := at
	clock := func() time.Time { return now }

	assigner := variant.NewAssigner(variant.MapStore{}, func() bool { return rng.IntN(2) == 0 })
	session := assigner.NewSession(s.testName, "", now)
	p := profiles[session.Variant]

	width := []int{390, 820, 1440}[rng.IntN(3)]
	rec := tracker.NewRecorder(session, "/",
		tracker.WithClock(clock),
		tracker.WithDevice(utils.DeviceTypeForWidth(width)),
		tracker.WithReferrer("https://search.example/"),
		tracker.WithUserAgent("abfeedback-simulator/1.0"),
	)

	prompted := false
	t := tracker.New(rec, s.dispatcher, tracker.Options{
		FlushInterval: s.flushEvery,
		PollInterval:  s.pollEvery,
		OnPrompt:      func(models.SessionSummary, trigger.Rule) { prompted = true },
	})

	var (
		scroll    float64
		lastFlush = now
		lastPoll  = now
		steps     = 5 + rng.IntN(25)
	)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now = now.Add(time.Duration(500+rng.IntN(4500)) * time.Millisecond)

		switch r := rng.Float64(); {
		case r < p.clickRate:
			rec.RecordClick(elements[rng.IntN(len(elements))], &models.ClickPosition{X: rng.IntN(width), Y: rng.IntN(2000)})
		case r < p.clickRate+0.15:
			rec.RecordHover(elements[rng.IntN(len(elements))])
		case r < p.clickRate+0.2:
			rec.RecordPageView(pages[rng.IntN(len(pages))])
			scroll = 0
		default:
			scroll = min(100, scroll+rng.Float64()*20)
			rec.RecordScroll(scroll)
		}
		if rng.Float64() < p.conversion {
			rec.RecordConversion("signup")
		}

		if now.Sub(lastPoll) >= s.pollEvery {
			lastPoll = now
			t.CheckTrigger()
		}
		if now.Sub(lastFlush) >= s.flushEvery {
			lastFlush = now
			t.Flush(ctx)
		}
	}

	if rng.Float64() < 0.5 {
		rec.RecordExitIntent()
		t.CheckTrigger()
	}

	if prompted {
		if rng.Float64() < 0.2 {
			t.DismissPrompt()
		} else {
			rating := min(5, 2+rng.IntN(3)+p.ratingBias)
			if err := t.SubmitFeedback(ctx, models.Rate(rating), "", "How was your experience?"); err != nil {
				log.Printf("[Simulate] feedback for %s: %v", session.ID, err)
			}
		}
	}

	t.Flush(ctx)
	return nil
}

func printComparison(w io.Writer, cmp models.VariantComparison) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "sessions\tA=%d\tB=%d\n", cmp.A.BehaviorMetrics.TotalSessions, cmp.B.BehaviorMetrics.TotalSessions)
	fmt.Fprintf(tw, "feedback\tA=%d\tB=%d\n", cmp.A.FeedbackCount, cmp.B.FeedbackCount)
	fmt.Fprintln(tw, "metric\tA\tB\twinner\tdiff")
	for _, m := range cmp.Metrics {
		a, b, d := m.ValueA, m.ValueB, m.Difference
		if m.Name == "avgTimeOnPage" {
			a, b, d = a/1000, b/1000, d/1000
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\t%.2f\n", m.Name, a, b, m.Winner, d)
	}
}
