package controller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/prospect/classify"
	"github.com/use-agent/prospect/models"
)

const profileHTML = `<html><head><title>Jane Doe | LinkedIn</title></head><body>` +
	`<h1 class="text-heading-xlarge">Jane Doe</h1>` +
	`<span class="text-body-small">Remote</span>` +
	`</body></html>`

func successResult() *models.FetchResult {
	return &models.FetchResult{
		HTML:     profileHTML,
		Title:    "Jane Doe | LinkedIn",
		FinalURL: "https://www.linkedin.com/in/janedoe/",
	}
}

func blockedResult() *models.FetchResult {
	return &models.FetchResult{
		HTML:     `<html><head><title>Error — Page Not Found</title></head><body>nothing here</body></html>`,
		Title:    "Error — Page Not Found",
		FinalURL: "https://www.linkedin.com/in/janedoe/",
	}
}

type step struct {
	result *models.FetchResult
	err    error
}

// fakeFetcher replays scripted fetch outcomes and records the order of
// fetches and egress changes. Once the script runs out the last step repeats.
type fakeFetcher struct {
	steps   []step
	fetches int
	egress  []string
	events  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*models.FetchResult, error) {
	i := f.fetches
	f.fetches++
	f.events = append(f.events, "fetch")
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].result, f.steps[i].err
}

func (f *fakeFetcher) UseEgress(id models.EgressIdentity) error {
	f.egress = append(f.egress, id.Endpoint)
	f.events = append(f.events, "rotate")
	return nil
}

type fakeProvider struct {
	calls int
	err   error
}

func (p *fakeProvider) Acquire(context.Context) (models.EgressIdentity, error) {
	p.calls++
	if p.err != nil {
		return models.EgressIdentity{}, p.err
	}
	return models.EgressIdentity{
		Endpoint:   fmt.Sprintf("10.0.0.%d:8080", p.calls),
		AcquiredAt: time.Now(),
	}, nil
}

type fakeValidator struct{ ok bool }

func (v *fakeValidator) Validate(context.Context, models.EgressIdentity) bool { return v.ok }

type fakeSink struct{ rows []models.Target }

func (s *fakeSink) WriteResult(t *models.Target) error {
	s.rows = append(s.rows, *t)
	return nil
}

func defaultPolicy() Policy {
	return Policy{MaxAttempts: 5, RotationThreshold: 5, RotateOnFailure: true}
}

func newTestController(f *fakeFetcher, p *fakeProvider, v *fakeValidator, s *fakeSink, pol Policy) *Controller {
	return New(f, p, v, classify.New("linkedin.com"), s, pol)
}

func TestProcessTarget_Success(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: successResult()}}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, defaultPolicy())

	target := &models.Target{ProofLink: "https://www.linkedin.com/in/janedoe/"}
	outcome := c.processTarget(context.Background(), target)

	if outcome != StateSuccess {
		t.Fatalf("outcome = %v, want SUCCESS", outcome)
	}
	if target.FirstName != "Jane" || target.LastName != "Doe" || target.Geo != "Remote" {
		t.Errorf("target fields = %q %q %q, want Jane Doe Remote",
			target.FirstName, target.LastName, target.Geo)
	}
	if c.ConsecutiveFailures() != 0 {
		t.Errorf("consecutiveFailures = %d, want 0", c.ConsecutiveFailures())
	}
	if f.fetches != 1 {
		t.Errorf("fetches = %d, want 1", f.fetches)
	}
}

func TestProcessTarget_MaxAttemptsThenAbandoned(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: blockedResult()}}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, defaultPolicy())

	target := &models.Target{ProofLink: "https://www.linkedin.com/in/janedoe/"}
	outcome := c.processTarget(context.Background(), target)

	if outcome != StateAbandoned {
		t.Fatalf("outcome = %v, want ABANDONED", outcome)
	}
	if f.fetches != 5 {
		t.Errorf("fetches = %d, want exactly 5 (max attempts)", f.fetches)
	}
	// Every classified failure rotates, except the fifth: attempts are
	// exhausted before a new identity would be burned.
	if len(f.egress) != 4 {
		t.Errorf("rotations = %d, want 4", len(f.egress))
	}
	if c.ConsecutiveFailures() != 5 {
		t.Errorf("consecutiveFailures = %d, want 5", c.ConsecutiveFailures())
	}
}

func TestProcessTarget_TransportErrorRetriesSameEgress(t *testing.T) {
	fetchErr := models.NewScrapeError(models.ErrCodeTransport, "fetch timed out", context.DeadlineExceeded)
	f := &fakeFetcher{steps: []step{{err: fetchErr}}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, defaultPolicy())

	outcome := c.processTarget(context.Background(), &models.Target{ProofLink: "https://www.linkedin.com/in/x/"})

	if outcome != StateAbandoned {
		t.Fatalf("outcome = %v, want ABANDONED", outcome)
	}
	if f.fetches != 5 {
		t.Errorf("fetches = %d, want 5", f.fetches)
	}
	if len(f.egress) != 0 {
		t.Errorf("rotations = %d, want 0 (transport errors retry on the same egress)", len(f.egress))
	}
}

func TestProcessTarget_RotateOnFailureDisabled(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: blockedResult()}}}
	pol := defaultPolicy()
	pol.RotateOnFailure = false
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, pol)

	outcome := c.processTarget(context.Background(), &models.Target{ProofLink: "https://www.linkedin.com/in/x/"})

	if outcome != StateAbandoned {
		t.Fatalf("outcome = %v, want ABANDONED", outcome)
	}
	if len(f.egress) != 0 {
		t.Errorf("rotations = %d, want 0 when rotate-on-failure is off", len(f.egress))
	}
	if f.fetches != 5 {
		t.Errorf("fetches = %d, want 5", f.fetches)
	}
}

func TestProcessTarget_FailureThenSuccessResetsCounter(t *testing.T) {
	f := &fakeFetcher{steps: []step{
		{result: blockedResult()},
		{result: successResult()},
	}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, defaultPolicy())

	target := &models.Target{ProofLink: "https://www.linkedin.com/in/janedoe/"}
	outcome := c.processTarget(context.Background(), target)

	if outcome != StateSuccess {
		t.Fatalf("outcome = %v, want SUCCESS", outcome)
	}
	if c.ConsecutiveFailures() != 0 {
		t.Errorf("consecutiveFailures = %d, want exactly 0 after success", c.ConsecutiveFailures())
	}
	if len(f.egress) != 1 {
		t.Errorf("rotations = %d, want 1 (the failed first attempt)", len(f.egress))
	}
	if target.FirstName != "Jane" {
		t.Errorf("FirstName = %q, want Jane", target.FirstName)
	}
}

func TestProcessTarget_ValidationFailureAbandons(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: blockedResult()}}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: false}, &fakeSink{}, defaultPolicy())

	outcome := c.processTarget(context.Background(), &models.Target{ProofLink: "https://www.linkedin.com/in/x/"})

	if outcome != StateAbandoned {
		t.Fatalf("outcome = %v, want ABANDONED", outcome)
	}
	if f.fetches != 1 {
		t.Errorf("fetches = %d, want 1 (no retry after a failed validation)", f.fetches)
	}
	// An invalid candidate never becomes the active identity.
	if len(f.egress) != 0 {
		t.Errorf("egress changes = %d, want 0", len(f.egress))
	}
}

func TestProcessTarget_ProactiveRotationAtThreshold(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: successResult()}}}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, defaultPolicy())
	c.consecutiveFailures = 5

	target := &models.Target{ProofLink: "https://www.linkedin.com/in/janedoe/"}
	outcome := c.processTarget(context.Background(), target)

	if outcome != StateSuccess {
		t.Fatalf("outcome = %v, want SUCCESS", outcome)
	}
	if target.EgressChange != "rotation" {
		t.Errorf("EgressChange = %q, want %q", target.EgressChange, "rotation")
	}
	// The rotation happens before the first fetch of the target.
	want := []string{"rotate", "fetch"}
	if len(f.events) != len(want) {
		t.Fatalf("events = %v, want %v", f.events, want)
	}
	for i := range want {
		if f.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", f.events, want)
		}
	}
}

func TestProcessTarget_NoProactiveRotationMidTarget(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: blockedResult()}}}
	pol := defaultPolicy()
	pol.RotateOnFailure = false
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, &fakeSink{}, pol)
	c.consecutiveFailures = 4 // crosses the threshold during this target

	outcome := c.processTarget(context.Background(), &models.Target{ProofLink: "https://www.linkedin.com/in/x/"})

	if outcome != StateAbandoned {
		t.Fatalf("outcome = %v, want ABANDONED", outcome)
	}
	if len(f.egress) != 0 {
		t.Errorf("rotations = %d, want 0 (threshold rotation never fires mid-target)", len(f.egress))
	}
}

func TestRun_AcquisitionFailureAbandonsButRunContinues(t *testing.T) {
	f := &fakeFetcher{steps: []step{
		{result: blockedResult()},
		{result: successResult()},
	}}
	p := &fakeProvider{err: models.NewScrapeError(models.ErrCodeEgressAcquisition, "provider returned HTTP 503", nil)}
	sink := &fakeSink{}
	c := newTestController(f, p, &fakeValidator{ok: true}, sink, defaultPolicy())

	targets := []*models.Target{
		{ProofLink: "https://www.linkedin.com/in/first/"},
		{ProofLink: "https://www.linkedin.com/in/second/"},
	}
	if err := c.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sink.rows) != 2 {
		t.Fatalf("rows written = %d, want 2 (one per processed target)", len(sink.rows))
	}
	if sink.rows[0].FirstName != "" || sink.rows[0].Geo != "" {
		t.Errorf("abandoned target fields = %+v, want blank", sink.rows[0])
	}
	if sink.rows[1].FirstName != "Jane" || sink.rows[1].Geo != "Remote" {
		t.Errorf("second target fields = %+v, want Jane/Remote", sink.rows[1])
	}
}

func TestRun_SkipsTargetsWithoutURL(t *testing.T) {
	f := &fakeFetcher{steps: []step{{result: successResult()}}}
	sink := &fakeSink{}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, sink, defaultPolicy())

	targets := []*models.Target{
		{ProofLink: ""},
		{ProofLink: "https://www.linkedin.com/in/janedoe/"},
	}
	if err := c.Run(context.Background(), targets); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if f.fetches != 1 {
		t.Errorf("fetches = %d, want 1", f.fetches)
	}
	if len(sink.rows) != 1 {
		t.Errorf("rows written = %d, want 1", len(sink.rows))
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{steps: []step{{result: successResult()}}}
	sink := &fakeSink{}
	c := newTestController(f, &fakeProvider{}, &fakeValidator{ok: true}, sink, defaultPolicy())

	err := c.Run(ctx, []*models.Target{{ProofLink: "https://www.linkedin.com/in/x/"}})
	if err == nil {
		t.Fatal("Run() on a cancelled context should return its error")
	}
	if f.fetches != 0 {
		t.Errorf("fetches = %d, want 0", f.fetches)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateFetching, "FETCHING"},
		{StateClassifying, "CLASSIFYING"},
		{StateRetrySameEgress, "RETRY_SAME_EGRESS"},
		{StateRotateEgress, "ROTATE_EGRESS"},
		{StateSuccess, "SUCCESS"},
		{StateAbandoned, "ABANDONED"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
	if !StateSuccess.Terminal() || !StateAbandoned.Terminal() {
		t.Error("SUCCESS and ABANDONED must be terminal")
	}
	if StateFetching.Terminal() {
		t.Error("FETCHING must not be terminal")
	}
}
