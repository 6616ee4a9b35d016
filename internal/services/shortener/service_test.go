package shortener

import (
	"context"
	"sync"
	"testing"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

type memShortURLs struct {
	mu   sync.Mutex
	byID map[string]*models.ShortURL
}

func newMemShortURLs() *memShortURLs {
	return &memShortURLs{byID: make(map[string]*models.ShortURL)}
}

func (m *memShortURLs) Save(ctx context.Context, shortURL *models.ShortURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *shortURL
	m.byID[shortURL.Hash] = &copied
	return nil
}

func (m *memShortURLs) GetByHash(ctx context.Context, hash string) (*models.ShortURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[hash]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func TestCommitFromSafeJob(t *testing.T) {
	store := newMemShortURLs()
	svc := NewService(store, common.GetLogger())

	job := &models.ValidationJob{
		ID:     "job-1",
		URL:    "https://example.com/",
		Status: models.SafetySafe,
	}
	shortURL, err := svc.CommitFromJob(context.Background(), job)
	if err != nil {
		t.Fatalf("CommitFromJob failed: %v", err)
	}
	if shortURL == nil {
		t.Fatal("expected committed short url")
	}
	if shortURL.Hash != models.HashURL("https://example.com/") {
		t.Errorf("hash must derive from canonical url, got %q", shortURL.Hash)
	}

	resolved, err := svc.Resolve(context.Background(), shortURL.Hash)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.URL != "https://example.com/" {
		t.Errorf("unexpected target %q", resolved.URL)
	}
}

func TestCommitIgnoresNonSafeJobs(t *testing.T) {
	store := newMemShortURLs()
	svc := NewService(store, common.GetLogger())

	for _, status := range []models.URLSafety{
		models.SafetyPending, models.SafetyUnsafe, models.SafetyUnreachable, models.SafetyError,
	} {
		shortURL, err := svc.CommitFromJob(context.Background(), &models.ValidationJob{
			ID:     "job-2",
			URL:    "https://example.com/",
			Status: status,
		})
		if err != nil {
			t.Fatalf("CommitFromJob(%s) failed: %v", status, err)
		}
		if shortURL != nil {
			t.Errorf("status %s must not commit a short url", status)
		}
	}
}

func TestCommitIdempotent(t *testing.T) {
	store := newMemShortURLs()
	svc := NewService(store, common.GetLogger())

	job := &models.ValidationJob{ID: "job-3", URL: "https://example.com/", Status: models.SafetySafe}
	first, err := svc.CommitFromJob(context.Background(), job)
	if err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	second, err := svc.CommitFromJob(context.Background(), job)
	if err != nil {
		t.Fatalf("second commit failed: %v", err)
	}
	if first.Hash != second.Hash {
		t.Errorf("commits must be idempotent, got %q then %q", first.Hash, second.Hash)
	}
}

func TestResolveUnknownHash(t *testing.T) {
	svc := NewService(newMemShortURLs(), common.GetLogger())
	if _, err := svc.Resolve(context.Background(), "deadbeef"); err != interfaces.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTerminalJobHandlerCommitsSafe(t *testing.T) {
	store := newMemShortURLs()
	svc := NewService(store, common.GetLogger())

	handler := svc.TerminalJobHandler()
	job := &models.ValidationJob{ID: "job-4", URL: "https://example.com/", Status: models.SafetySafe}
	if err := handler(context.Background(), interfaces.Event{Type: interfaces.EventJobTerminal, Payload: job}); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if _, err := svc.Resolve(context.Background(), models.HashURL(job.URL)); err != nil {
		t.Errorf("expected committed short url, got %v", err)
	}
}
