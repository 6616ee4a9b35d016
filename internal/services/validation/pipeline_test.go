package validation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// fakeQueue is an in-memory Queue capturing published bodies.
type fakeQueue struct {
	mu       sync.Mutex
	messages [][]byte
	delayed  [][]byte
	failNext error
}

func (q *fakeQueue) Enqueue(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext != nil {
		err := q.failNext
		q.failNext = nil
		return err
	}
	q.messages = append(q.messages, body)
	return nil
}

func (q *fakeQueue) EnqueueWithDelay(ctx context.Context, body []byte, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, body)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) ([]byte, func() error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil, interfaces.ErrNoMessage
	}
	body := q.messages[0]
	q.messages = q.messages[1:]
	return body, func() error { return nil }, nil
}

func (q *fakeQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages) + len(q.delayed), nil
}

// fakeJobStore is an in-memory JobStore with the terminal-absorbing rule.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ValidationJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.ValidationJob)}
}

func (s *fakeJobStore) Put(ctx context.Context, job *models.ValidationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*models.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) CompareAndSetStatus(ctx context.Context, id string, status models.URLSafety) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, interfaces.ErrNotFound
	}
	if job.Status == status {
		return false, nil
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	job.Status = status
	now := time.Now().UTC()
	job.UpdatedAt = &now
	return true, nil
}

type fakeReachProber struct {
	verdict *models.ReachabilityVerdict
	err     error
}

func (p *fakeReachProber) Probe(ctx context.Context, url string) (*models.ReachabilityVerdict, error) {
	return p.verdict, p.err
}

type fakeSafetyProber struct {
	safe  bool
	err   error
	calls int
}

func (p *fakeSafetyProber) Check(ctx context.Context, url string) (bool, error) {
	p.calls++
	return p.safe, p.err
}

type fakeLimiter struct {
	allow bool
}

func (l *fakeLimiter) TryConsume() bool { return l.allow }

func (l *fakeLimiter) Status() interfaces.RateLimiterStatus {
	return interfaces.RateLimiterStatus{}
}

var testRetry = common.RetryConfig{MaxAttempts: 2, WaitDuration: "1ms"}

func newTestWorker(work, result *fakeQueue, reach *fakeReachProber, safety *fakeSafetyProber, limiter *fakeLimiter) *Worker {
	return NewWorker(work, result, reach, safety, limiter, testRetry, common.GetLogger())
}

func decodeResult(t *testing.T, body []byte) models.ValidationResult {
	t.Helper()
	var result models.ValidationResult
	require.NoError(t, json.Unmarshal(body, &result))
	return result
}

func TestOrchestratorEnqueue(t *testing.T) {
	jobs := newFakeJobStore()
	work := &fakeQueue{}
	orch := NewOrchestrator(jobs, work, common.GetLogger())

	jobID, err := orch.Enqueue(context.Background(), "HTTPS://Example.COM/path#frag")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := orch.Find(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyPending, job.Status)
	assert.Equal(t, "https://example.com/path", job.URL)

	require.Len(t, work.messages, 1)
	var msg models.ValidationMessage
	require.NoError(t, json.Unmarshal(work.messages[0], &msg))
	assert.Equal(t, jobID, msg.ID)
	assert.Equal(t, "https://example.com/path", msg.URL)
	assert.Equal(t, models.StepReachability, msg.Step)
}

func TestOrchestratorEnqueueInvalidInput(t *testing.T) {
	orch := NewOrchestrator(newFakeJobStore(), &fakeQueue{}, common.GetLogger())

	_, err := orch.Enqueue(context.Background(), "   ")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = orch.Enqueue(context.Background(), "ftp://example.com/file")
	assert.ErrorIs(t, err, interfaces.ErrInvalidURL)
}

func TestOrchestratorEnqueuePublishFailure(t *testing.T) {
	work := &fakeQueue{failNext: errors.New("disk full")}
	orch := NewOrchestrator(newFakeJobStore(), work, common.GetLogger())

	_, err := orch.Enqueue(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, interfaces.ErrQueuePublish)
}

func TestOrchestratorFindUnknown(t *testing.T) {
	orch := NewOrchestrator(newFakeJobStore(), &fakeQueue{}, common.GetLogger())
	_, err := orch.Find(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestWorkerReachableAdvancesToSafety(t *testing.T) {
	work := &fakeQueue{}
	result := &fakeQueue{}
	worker := newTestWorker(work, result,
		&fakeReachProber{verdict: &models.ReachabilityVerdict{Reachable: true, StatusCode: 200}},
		&fakeSafetyProber{}, &fakeLimiter{allow: true})

	msg := models.NewValidationMessage("job-1", "https://example.com/")
	body, _ := json.Marshal(msg)

	require.NoError(t, worker.Handle(context.Background(), body))
	require.Len(t, work.messages, 1, "expected safety step republished")
	assert.Empty(t, result.messages)

	var next models.ValidationMessage
	require.NoError(t, json.Unmarshal(work.messages[0], &next))
	assert.Equal(t, "job-1", next.ID)
	assert.Equal(t, models.StepSafety, next.Step)
	assert.Equal(t, msg.CreatedAt.Unix(), next.CreatedAt.Unix())
}

func TestWorkerUnreachablePublishesVerdict(t *testing.T) {
	work := &fakeQueue{}
	result := &fakeQueue{}
	worker := newTestWorker(work, result,
		&fakeReachProber{verdict: &models.ReachabilityVerdict{Reachable: false, ErrorType: models.ProbeErrorDNS}},
		&fakeSafetyProber{}, &fakeLimiter{allow: true})

	msg := models.NewValidationMessage("job-2", "https://nxdomain.example/")
	body, _ := json.Marshal(msg)

	require.NoError(t, worker.Handle(context.Background(), body))
	assert.Empty(t, work.messages)
	require.Len(t, result.messages, 1)

	verdict := decodeResult(t, result.messages[0])
	assert.Equal(t, "job-2", verdict.JobID)
	assert.Equal(t, models.SafetyUnreachable, verdict.Status)
}

func TestWorkerSafetyVerdicts(t *testing.T) {
	cases := []struct {
		name string
		safe bool
		want models.URLSafety
	}{
		{"safe", true, models.SafetySafe},
		{"unsafe", false, models.SafetyUnsafe},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := &fakeQueue{}
			worker := newTestWorker(&fakeQueue{}, result,
				&fakeReachProber{}, &fakeSafetyProber{safe: tc.safe}, &fakeLimiter{allow: true})

			msg := models.NewValidationMessage("job-3", "https://example.com/").WithStep(models.StepSafety)
			body, _ := json.Marshal(msg)

			require.NoError(t, worker.Handle(context.Background(), body))
			require.Len(t, result.messages, 1)
			assert.Equal(t, tc.want, decodeResult(t, result.messages[0]).Status)
		})
	}
}

func TestWorkerRateLimitedRequeues(t *testing.T) {
	work := &fakeQueue{}
	result := &fakeQueue{}
	safety := &fakeSafetyProber{safe: true}
	worker := newTestWorker(work, result, &fakeReachProber{}, safety, &fakeLimiter{allow: false})

	msg := models.NewValidationMessage("job-4", "https://example.com/").WithStep(models.StepSafety)
	body, _ := json.Marshal(msg)

	require.NoError(t, worker.Handle(context.Background(), body))
	assert.Zero(t, safety.calls, "prober must not be called when rate limited")
	assert.Empty(t, result.messages)
	require.Len(t, work.delayed, 1, "expected delayed re-enqueue")
	assert.JSONEq(t, string(body), string(work.delayed[0]), "re-enqueued body must be unchanged")
}

func TestWorkerSafetyRetriesThenDrops(t *testing.T) {
	result := &fakeQueue{}
	safety := &fakeSafetyProber{err: errors.New("api unavailable")}
	worker := newTestWorker(&fakeQueue{}, result, &fakeReachProber{}, safety, &fakeLimiter{allow: true})

	msg := models.NewValidationMessage("job-5", "https://example.com/").WithStep(models.StepSafety)
	body, _ := json.Marshal(msg)

	require.NoError(t, worker.Handle(context.Background(), body), "exhausted retries must ack, not redeliver")
	assert.Equal(t, testRetry.MaxAttempts, safety.calls)
	assert.Empty(t, result.messages, "no verdict without a deterministic answer")
}

func TestWorkerDropsMalformedMessage(t *testing.T) {
	worker := newTestWorker(&fakeQueue{}, &fakeQueue{}, &fakeReachProber{}, &fakeSafetyProber{}, &fakeLimiter{allow: true})
	require.NoError(t, worker.Handle(context.Background(), []byte("not json")))
}

func TestWorkerResultPublishFailureRedelivers(t *testing.T) {
	result := &fakeQueue{failNext: errors.New("publish failed")}
	worker := newTestWorker(&fakeQueue{}, result,
		&fakeReachProber{verdict: &models.ReachabilityVerdict{Reachable: false, ErrorType: models.ProbeErrorTimeout}},
		&fakeSafetyProber{}, &fakeLimiter{allow: true})

	msg := models.NewValidationMessage("job-6", "https://example.com/")
	body, _ := json.Marshal(msg)

	err := worker.Handle(context.Background(), body)
	assert.ErrorIs(t, err, interfaces.ErrQueuePublish)
}

func TestSinkAppliesVerdict(t *testing.T) {
	jobs := newFakeJobStore()
	require.NoError(t, jobs.Put(context.Background(), &models.ValidationJob{
		ID:     "job-7",
		URL:    "https://example.com/",
		Status: models.SafetyPending,
	}))

	sink := NewSink(jobs, nil, common.GetLogger())
	body, _ := json.Marshal(models.ValidationResult{JobID: "job-7", Status: models.SafetySafe})
	require.NoError(t, sink.Handle(context.Background(), body))

	job, err := jobs.Get(context.Background(), "job-7")
	require.NoError(t, err)
	assert.Equal(t, models.SafetySafe, job.Status)
	assert.NotNil(t, job.UpdatedAt)
}

func TestSinkFirstTerminalWins(t *testing.T) {
	jobs := newFakeJobStore()
	require.NoError(t, jobs.Put(context.Background(), &models.ValidationJob{
		ID:     "job-8",
		Status: models.SafetyPending,
	}))

	sink := NewSink(jobs, nil, common.GetLogger())

	first, _ := json.Marshal(models.ValidationResult{JobID: "job-8", Status: models.SafetyUnreachable})
	second, _ := json.Marshal(models.ValidationResult{JobID: "job-8", Status: models.SafetySafe})

	require.NoError(t, sink.Handle(context.Background(), first))
	require.NoError(t, sink.Handle(context.Background(), second))

	job, err := jobs.Get(context.Background(), "job-8")
	require.NoError(t, err)
	assert.Equal(t, models.SafetyUnreachable, job.Status, "first terminal verdict must stick")
}

func TestSinkDropsUnknownJob(t *testing.T) {
	sink := NewSink(newFakeJobStore(), nil, common.GetLogger())
	body, _ := json.Marshal(models.ValidationResult{JobID: "ghost", Status: models.SafetySafe})
	require.NoError(t, sink.Handle(context.Background(), body), "unknown job must not trigger redelivery")
}

func TestSinkDropsUnknownStatusVariant(t *testing.T) {
	jobs := newFakeJobStore()
	require.NoError(t, jobs.Put(context.Background(), &models.ValidationJob{
		ID:     "job-9",
		Status: models.SafetyPending,
	}))

	sink := NewSink(jobs, nil, common.GetLogger())
	body := []byte(`{"jobId":"job-9","status":{"type":"Bogus"}}`)
	require.NoError(t, sink.Handle(context.Background(), body))

	job, err := jobs.Get(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, models.SafetyPending, job.Status, "malformed verdict must not change status")
}

func TestSinkDropsNonTerminalVerdict(t *testing.T) {
	jobs := newFakeJobStore()
	require.NoError(t, jobs.Put(context.Background(), &models.ValidationJob{
		ID:     "job-11",
		Status: models.SafetyPending,
	}))

	events := &captureEvents{}
	sink := NewSink(jobs, events, common.GetLogger())

	// Unknown decodes fine but is not a terminal verdict; the job store
	// has no transition for it.
	for _, status := range []models.URLSafety{models.SafetyUnknown, models.SafetyPending} {
		body, _ := json.Marshal(models.ValidationResult{JobID: "job-11", Status: status})
		require.NoError(t, sink.Handle(context.Background(), body), "non-terminal verdict must be acked, not redelivered")
	}

	job, err := jobs.Get(context.Background(), "job-11")
	require.NoError(t, err)
	assert.Equal(t, models.SafetyPending, job.Status, "non-terminal verdict must not change status")
	assert.Empty(t, events.published)
}

func TestSinkPublishesTerminalEvent(t *testing.T) {
	jobs := newFakeJobStore()
	require.NoError(t, jobs.Put(context.Background(), &models.ValidationJob{
		ID:     "job-10",
		URL:    "https://example.com/",
		Status: models.SafetyPending,
	}))

	events := &captureEvents{}
	sink := NewSink(jobs, events, common.GetLogger())

	body, _ := json.Marshal(models.ValidationResult{JobID: "job-10", Status: models.SafetySafe})
	require.NoError(t, sink.Handle(context.Background(), body))

	require.Len(t, events.published, 1)
	assert.Equal(t, interfaces.EventJobTerminal, events.published[0].Type)
	job, ok := events.published[0].Payload.(*models.ValidationJob)
	require.True(t, ok)
	assert.Equal(t, "job-10", job.ID)
}

type captureEvents struct {
	mu        sync.Mutex
	published []interfaces.Event
}

func (c *captureEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (c *captureEvents) Publish(ctx context.Context, event interfaces.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, event)
	return nil
}

func (c *captureEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return c.Publish(ctx, event)
}
