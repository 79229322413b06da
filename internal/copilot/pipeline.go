package copilot

import (
	"context"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/dedup"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/overlay"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/parser"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/settings"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// Outcome of a single pass through the pipeline.
type Outcome string

const (
	OutcomeNoOffer   Outcome = "no_offer"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeAssessed  Outcome = "assessed"
)

// Input is one piece of screen text.
type Input struct {
	Text    string `json:"text"`
	Source  string `json:"source,omitempty"`
	Package string `json:"package,omitempty"`
}

// Result carries everything the pipeline produced for an Input.
// Offer is set for duplicates and assessed offers; Assessment and Score only when assessed.
type Result struct {
	Outcome      Outcome                   `json:"outcome"`
	Format       parser.Format             `json:"format,omitempty"`
	PlatformHint offer.Platform            `json:"platform_hint,omitempty"`
	RecordID     string                    `json:"record_id,omitempty"`
	Offer        *offer.RideOffer          `json:"offer,omitempty"`
	Assessment   *economics.Assessment     `json:"assessment,omitempty"`
	Score        *economics.ScoreBreakdown `json:"score,omitempty"`
	Instruction  overlay.Instruction       `json:"instruction"`
}

// Pipeline runs normalize, parse, dedup, evaluate and render. It never fails:
// text without an offer is an Outcome, not an error.
type Pipeline struct {
	parser   *parser.Parser
	gate     *dedup.Gate
	settings settings.Provider
}

// NewPipeline creates a pipeline. A nil provider uses the built-in defaults.
func NewPipeline(p *parser.Parser, g *dedup.Gate, s settings.Provider) *Pipeline {
	if s == nil {
		s = settings.Static{Settings: settings.Defaults()}
	}
	return &Pipeline{parser: p, gate: g, settings: s}
}

// PlatformHint maps a driver app package name to its platform.
func PlatformHint(pkg string) offer.Platform {
	switch pkg {
	case PackageUberDriver:
		return offer.PlatformUber
	case PackageLyftDriver:
		return offer.PlatformLyft
	}
	return offer.PlatformUnknown
}

// Process runs one Input through the pipeline.
func (p *Pipeline) Process(ctx context.Context, in Input) Result {
	ctx, span := trace.StartSpan(ctx, "pipeline_process")
	defer span.End()

	start := time.Now()
	defer func() { metrics.PipelineSeconds.Observe(time.Since(start).Seconds()) }()

	source := in.Source
	if source == "" {
		source = SourceAPI
	}
	span.SetAttr("source", source)
	metrics.TextsTotal.WithLabelValues(source).Inc()

	log := trace.Logger(ctx)
	res := Result{PlatformHint: PlatformHint(in.Package)}

	o, format := p.parser.ParseFormat(in.Text)
	res.Format = format
	label := formatLabel(format)
	span.SetAttr("format", label)

	if o == nil {
		metrics.ParseTotal.WithLabelValues(label, string(OutcomeNoOffer)).Inc()
		log.Debug("no offer in text", "source", source, "format", label, "length", len(in.Text))
		res.Outcome = OutcomeNoOffer
		res.Instruction = overlay.Hidden()
		return res
	}

	if res.PlatformHint != offer.PlatformUnknown && res.PlatformHint != o.Platform {
		log.Debug("platform hint disagrees with format", "hint", res.PlatformHint, "platform", o.Platform)
	}

	res.Offer = o
	if !p.gate.ShouldProcess(o) {
		metrics.ParseTotal.WithLabelValues(label, string(OutcomeDuplicate)).Inc()
		metrics.DuplicatesTotal.Inc()
		log.Debug("duplicate offer suppressed", "fingerprint", o.Fingerprint())
		res.Outcome = OutcomeDuplicate
		return res
	}

	s, err := p.settings.Current(ctx)
	if err != nil {
		log.Warn("settings unavailable, using fallback", "error", err)
		if s == (settings.Settings{}) {
			s = settings.Defaults()
		}
	}

	a := economics.Evaluate(*o, s.Thresholds)
	score := economics.Score(a.PricePerMile, a.PricePerHour, a.AdjustedFare, s.Score)

	res.Outcome = OutcomeAssessed
	res.Assessment = &a
	res.Score = &score
	res.Instruction = overlay.Render(o, a, &score)

	metrics.ParseTotal.WithLabelValues(label, string(OutcomeAssessed)).Inc()
	metrics.RecommendationsTotal.WithLabelValues(a.Overall.String()).Inc()
	span.SetAttr("overall", a.Overall.String())

	log.Info("offer assessed",
		"platform", o.Platform,
		"format", label,
		"fare", a.AdjustedFare,
		"per_mile", a.PricePerMile,
		"per_hour", a.PricePerHour,
		"overall", a.Overall.String(),
		"score", score.Composite,
	)
	return res
}

// Reset clears the parser memo and the dedup gate.
func (p *Pipeline) Reset() {
	p.parser.Reset()
	p.gate.Reset()
}

func formatLabel(f parser.Format) string {
	if f == parser.FormatUnknown {
		return "unknown"
	}
	return string(f)
}
