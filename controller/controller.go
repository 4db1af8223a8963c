package controller

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/use-agent/prospect/classify"
	"github.com/use-agent/prospect/extract"
	"github.com/use-agent/prospect/metrics"
	"github.com/use-agent/prospect/models"
)

// Fetcher renders pages through the current egress identity. UseEgress
// replaces the underlying session wholesale.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchResult, error)
	UseEgress(id models.EgressIdentity) error
}

// Provider supplies candidate egress identities on demand.
type Provider interface {
	Acquire(ctx context.Context) (models.EgressIdentity, error)
}

// Validator reports whether a candidate identity is currently usable.
type Validator interface {
	Validate(ctx context.Context, id models.EgressIdentity) bool
}

// Sink persists one result row per processed target.
type Sink interface {
	WriteResult(t *models.Target) error
}

// Policy tunes the retry/rotation loop.
type Policy struct {
	// MaxAttempts caps fetch attempts per target.
	MaxAttempts int

	// RotationThreshold is the consecutive-failure count that triggers a
	// proactive rotation before the next target's first fetch.
	RotationThreshold int

	// RotateOnFailure rotates the egress identity on every classified
	// content failure. On by default, matching the source behavior; note
	// that it burns a fresh identity per retry. Transport errors always
	// retry on the same identity.
	RotateOnFailure bool

	// DelayMin and DelayMax bound the jittered pause between targets.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Controller drives the fetch-retry/proxy-rotation loop: per target it
// decides whether to retry on the same egress identity, rotate to a new one,
// or abandon, and it tracks consecutive failures across targets.
type Controller struct {
	fetcher    Fetcher
	provider   Provider
	validator  Validator
	classifier *classify.Classifier
	sink       Sink
	policy     Policy

	// consecutiveFailures only grows on failure classifications and only
	// resets on success (or a proactive rotation).
	consecutiveFailures int

	// egress is the active identity; nil means direct. At most one is
	// active at a time, replaced wholesale on rotation.
	egress *models.EgressIdentity
}

// New wires a Controller.
func New(fetcher Fetcher, provider Provider, validator Validator, classifier *classify.Classifier, sink Sink, policy Policy) *Controller {
	return &Controller{
		fetcher:    fetcher,
		provider:   provider,
		validator:  validator,
		classifier: classifier,
		sink:       sink,
		policy:     policy,
	}
}

// ConsecutiveFailures returns the current cross-target failure count.
func (c *Controller) ConsecutiveFailures() int { return c.consecutiveFailures }

// Run processes targets in order, one fetch in flight at a time. A target's
// exhaustion never aborts the run; only context cancellation does.
func (c *Controller) Run(ctx context.Context, targets []*models.Target) error {
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		if t.ProofLink == "" {
			slog.Warn("target has no profile URL, skipping", "index", i)
			continue
		}

		slog.Info("processing target", "index", i, "url", t.ProofLink)
		outcome := c.processTarget(ctx, t)
		metrics.Targets.WithLabelValues(outcome.String()).Inc()

		if err := c.sink.WriteResult(t); err != nil {
			slog.Error("failed to write result row", "url", t.ProofLink, "error", err)
		}

		if i < len(targets)-1 {
			c.sleepJitter(ctx)
		}
	}
	return ctx.Err()
}

// processTarget runs the per-target state machine to a terminal state.
func (c *Controller) processTarget(ctx context.Context, t *models.Target) State {
	c.maybeProactiveRotate(ctx, t)

	attempts := 0
	state := StateFetching

	var attempt models.FetchAttempt
	var category models.Category
	var fields extract.Fields

	for {
		switch state {
		case StateFetching:
			attempt = models.FetchAttempt{
				Target: t,
				Egress: c.egressEndpoint(),
				Number: attempts + 1,
			}
			slog.Info("fetching",
				"url", t.ProofLink,
				"attempt", attempt.Number,
				"egress", attempt.Egress,
			)
			attempt.Result, attempt.Err = c.fetcher.Fetch(ctx, t.ProofLink)
			metrics.FetchAttempts.Inc()
			state = c.transition(t, state, StateClassifying)

		case StateClassifying:
			if attempt.Err != nil {
				category = models.CategoryTransportError
				fields = extract.Fields{}
				slog.Error("fetch failed", "url", t.ProofLink, "error", attempt.Err)
			} else {
				fields, _ = extract.Profile(attempt.Result.HTML)
				category = c.classifier.Classify(
					attempt.Result.FinalURL,
					attempt.Result.Title,
					attempt.Result.HTML,
					fields,
				)
			}
			metrics.Classifications.WithLabelValues(category.String()).Inc()
			slog.Info("classified",
				"url", t.ProofLink,
				"category", category.String(),
				"attempt", attempt.Number,
			)

			if !category.IsFailure() {
				c.consecutiveFailures = 0
				first, last := extract.SplitName(fields.Name)
				t.FirstName, t.LastName = first, last
				t.Geo = fields.Location
				state = c.transition(t, state, StateSuccess)
				break
			}

			c.consecutiveFailures++
			attempts++
			if category != models.CategoryTransportError && c.policy.RotateOnFailure {
				state = c.transition(t, state, StateRotateEgress)
			} else {
				state = c.transition(t, state, StateRetrySameEgress)
			}

		case StateRetrySameEgress:
			if attempts < c.policy.MaxAttempts {
				state = c.transition(t, state, StateFetching)
			} else {
				state = c.transition(t, state, StateAbandoned)
			}

		case StateRotateEgress:
			if attempts >= c.policy.MaxAttempts {
				state = c.transition(t, state, StateAbandoned)
				break
			}
			if err := c.rotate(ctx, "failure"); err != nil {
				slog.Error("egress rotation failed, abandoning target",
					"url", t.ProofLink, "error", err)
				state = c.transition(t, state, StateAbandoned)
				break
			}
			state = c.transition(t, state, StateFetching)

		case StateSuccess:
			slog.Info("target processed",
				"url", t.ProofLink,
				"firstName", t.FirstName,
				"lastName", t.LastName,
				"geo", t.Geo,
			)
			return StateSuccess

		case StateAbandoned:
			slog.Error("abandoning target",
				"url", t.ProofLink,
				"attempts", attempts,
				"consecutiveFailures", c.consecutiveFailures,
			)
			return StateAbandoned
		}
	}
}

// maybeProactiveRotate rotates before the first fetch of a new target once
// the cross-target failure count hits the threshold. The rotation result is
// deliberately not escalated: the per-target rotation path still guards the
// run, and the original behavior proceeds to fetch regardless.
func (c *Controller) maybeProactiveRotate(ctx context.Context, t *models.Target) {
	if c.policy.RotationThreshold <= 0 || c.consecutiveFailures < c.policy.RotationThreshold {
		return
	}
	slog.Warn("consecutive failure threshold reached, rotating egress before fetch",
		"failures", c.consecutiveFailures,
		"threshold", c.policy.RotationThreshold,
	)
	if err := c.rotate(ctx, "threshold"); err != nil {
		slog.Error("proactive rotation failed", "error", err)
	}
	t.EgressChange = "rotation"
	c.consecutiveFailures = 0
}

// rotate acquires, validates, and installs a new egress identity. The active
// identity is replaced only after the candidate passes validation.
func (c *Controller) rotate(ctx context.Context, reason string) error {
	id, err := c.provider.Acquire(ctx)
	if err != nil {
		return err
	}

	if !c.validator.Validate(ctx, id) {
		return models.NewScrapeError(
			models.ErrCodeEgressValidation,
			"candidate egress identity failed validation probe: "+id.Endpoint,
			nil,
		)
	}

	if err := c.fetcher.UseEgress(id); err != nil {
		return err
	}

	c.egress = &id
	metrics.Rotations.WithLabelValues(reason).Inc()
	slog.Info("egress identity rotated", "endpoint", id.Endpoint, "reason", reason)
	return nil
}

func (c *Controller) egressEndpoint() string {
	if c.egress == nil {
		return ""
	}
	return c.egress.Endpoint
}

// transition logs and returns the next state.
func (c *Controller) transition(t *models.Target, from, to State) State {
	slog.Debug("state transition",
		"url", t.ProofLink,
		"from", from.String(),
		"to", to.String(),
	)
	return to
}

// sleepJitter pauses between targets for a random delay in
// [DelayMin, DelayMax], preemptible only by process shutdown.
func (c *Controller) sleepJitter(ctx context.Context) {
	d := c.policy.DelayMin
	if span := c.policy.DelayMax - c.policy.DelayMin; span > 0 {
		d += rand.N(span)
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
