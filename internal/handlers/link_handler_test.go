package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/services/shortener"
	"github.com/ternarybob/curtail/internal/services/validation"
)

// In-memory fakes shared by the handler tests.

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
	if job.Status == status || job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = status
	job.UpdatedAt = &now
	return true, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	messages [][]byte
	failNext bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext {
		q.failNext = false
		return errors.New("disk full")
	}
	q.messages = append(q.messages, body)
	return nil
}

func (q *fakeQueue) EnqueueWithDelay(ctx context.Context, body []byte, delay time.Duration) error {
	return q.Enqueue(ctx, body)
}

func (q *fakeQueue) Receive(ctx context.Context) ([]byte, func() error, error) {
	return nil, nil, interfaces.ErrNoMessage
}

func (q *fakeQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages), nil
}

type fakeShortURLs struct {
	mu    sync.Mutex
	links map[string]*models.ShortURL
}

func newFakeShortURLs() *fakeShortURLs {
	return &fakeShortURLs{links: make(map[string]*models.ShortURL)}
}

func (s *fakeShortURLs) Save(ctx context.Context, shortURL *models.ShortURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *shortURL
	s.links[shortURL.Hash] = &copied
	return nil
}

func (s *fakeShortURLs) GetByHash(ctx context.Context, hash string) (*models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[hash]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (e *fakeEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (e *fakeEvents) Publish(ctx context.Context, event interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return e.Publish(ctx, event)
}

func (e *fakeEvents) published() []interfaces.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]interfaces.Event(nil), e.events...)
}

type linkFixture struct {
	handler *LinkHandler
	jobs    *fakeJobStore
	queue   *fakeQueue
	links   *fakeShortURLs
	events  *fakeEvents
}

func newLinkFixture() *linkFixture {
	logger := common.GetLogger()
	jobs := newFakeJobStore()
	queue := &fakeQueue{}
	links := newFakeShortURLs()
	events := &fakeEvents{}

	orchestrator := validation.NewOrchestrator(jobs, queue, logger)
	shortenerService := shortener.NewService(links, logger)
	return &linkFixture{
		handler: NewLinkHandler(orchestrator, shortenerService, events, logger),
		jobs:    jobs,
		queue:   queue,
		links:   links,
		events:  events,
	}
}

func TestSubmitLinkAccepted(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://Example.COM/path"}`))
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.JobID == "" || resp.Status != "Pending" {
		t.Errorf("unexpected response %+v", resp)
	}

	job, err := f.jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job was not stored: %v", err)
	}
	if job.URL != "https://example.com/path" {
		t.Errorf("expected canonical url, got %s", job.URL)
	}
	if n, _ := f.queue.Len(context.Background()); n != 1 {
		t.Errorf("expected 1 queued message, got %d", n)
	}
}

func TestSubmitLinkBadBody(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitLinkEmptyURL(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":""}`))
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty url, got %d", rec.Code)
	}
}

func TestSubmitLinkUnsupportedScheme(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"ftp://example.com/file"}`))
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for non-http scheme, got %d", rec.Code)
	}
}

func TestSubmitLinkQueueUnavailable(t *testing.T) {
	f := newLinkFixture()
	f.queue.failNext = true

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://example.com/"}`))
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on queue failure, got %d", rec.Code)
	}
}

func TestSubmitLinkMethodNotAllowed(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	rec := httptest.NewRecorder()
	f.handler.SubmitLinkHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/ghost", nil)
	rec := httptest.NewRecorder()
	f.handler.GetJobHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetJobPending(t *testing.T) {
	f := newLinkFixture()
	f.jobs.Put(context.Background(), &models.ValidationJob{
		ID: "job-1", URL: "https://example.com/", Status: models.SafetyPending, CreatedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	f.handler.GetJobHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		ShortURL string `json:"shortUrl"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "Pending" {
		t.Errorf("expected Pending, got %s", resp.Status)
	}
	if resp.ShortURL != "" {
		t.Errorf("pending job must not expose a short url, got %s", resp.ShortURL)
	}
}

func TestGetJobSafeCommitsShortURL(t *testing.T) {
	f := newLinkFixture()
	f.jobs.Put(context.Background(), &models.ValidationJob{
		ID: "job-2", URL: "https://example.com/", Status: models.SafetySafe, CreatedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-2", nil)
	rec := httptest.NewRecorder()
	f.handler.GetJobHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		ShortURL string `json:"shortUrl"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	hash := models.HashURL("https://example.com/")
	if resp.ShortURL != "/"+hash {
		t.Errorf("expected short url /%s, got %s", hash, resp.ShortURL)
	}
	if _, err := f.links.GetByHash(context.Background(), hash); err != nil {
		t.Errorf("short link was not committed: %v", err)
	}
}

func TestRedirectKnownKey(t *testing.T) {
	f := newLinkFixture()
	hash := models.HashURL("https://example.com/landing")
	f.links.Save(context.Background(), &models.ShortURL{
		Hash: hash, URL: "https://example.com/landing", JobID: "job-1", CreatedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodGet, "/"+hash, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("Referer", "https://referrer.example/")
	rec := httptest.NewRecorder()
	f.handler.RedirectHandler(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/landing" {
		t.Errorf("unexpected Location %s", loc)
	}

	events := f.events.published()
	if len(events) != 1 || events[0].Type != interfaces.EventClick {
		t.Fatalf("expected one click event, got %+v", events)
	}
	click, ok := events[0].Payload.(models.ClickEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Payload)
	}
	if click.ShortURLID != hash || click.IP != "203.0.113.9" {
		t.Errorf("unexpected click %+v", click)
	}
	if click.Browser != "Chrome" || click.Platform != "Windows" {
		t.Errorf("unexpected user agent parse %+v", click)
	}
}

func TestRedirectUnknownKey(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodGet, "/nope1234", nil)
	rec := httptest.NewRecorder()
	f.handler.RedirectHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if len(f.events.published()) != 0 {
		t.Error("no click event should be published for a missed redirect")
	}
}

func TestRedirectRejectsNestedPath(t *testing.T) {
	f := newLinkFixture()

	req := httptest.NewRequest(http.MethodGet, "/a/b", nil)
	rec := httptest.NewRecorder()
	f.handler.RedirectHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for nested path, got %d", rec.Code)
	}
}
