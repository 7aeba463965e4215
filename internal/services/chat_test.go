package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/observability"
	"gemchat-backend/internal/repository"
)

type stubCompleter struct {
	reply   Reply
	err     error
	prompts []string
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (Reply, error) {
	c.prompts = append(c.prompts, prompt)
	return c.reply, c.err
}

type stubLocker struct {
	err      error
	locked   []string
	released int
}

func (l *stubLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, key)
	return func() { l.released++ }, nil
}

// mismatchStore returns a record whose id differs from the one asked for.
type mismatchStore struct{}

func (mismatchStore) GetByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return &models.User{ID: uuid.New(), Chats: []models.ChatMessage{}}, nil
}

func (mismatchStore) SaveChats(context.Context, *models.User) error { return nil }

func newTestChat(t *testing.T, model Completer, opts ChatOptions) (*ChatService, *repository.MemoryUserRepo, *stubLocker, *observability.Metrics) {
	t.Helper()
	repo := repository.NewMemoryUserRepo()
	locker := &stubLocker{}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return NewChatService(repo, model, locker, metrics, opts), repo, locker, metrics
}

func seedUser(t *testing.T, repo *repository.MemoryUserRepo, chats []models.ChatMessage) *models.User {
	t.Helper()
	u := &models.User{Name: "Ada Lovelace", Email: "ada@example.com", Chats: chats}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestChatComplete_AppendsAssistantTurn(t *testing.T) {
	model := &stubCompleter{reply: Reply{Text: "I'm fine"}}
	svc, repo, locker, metrics := newTestChat(t, model, ChatOptions{})
	user := seedUser(t, repo, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	got, err := svc.Complete(context.Background(), user.ID, "how are you")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "I'm fine" {
		t.Fatalf("expected reply %q, got %q", "I'm fine", got)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "I'm fine"},
	}
	if !reflect.DeepEqual(stored.Chats, want) {
		t.Fatalf("expected history %+v, got %+v", want, stored.Chats)
	}

	if model.prompts[0] != "user: hi\nUser: how are you" {
		t.Fatalf("unexpected prompt %q", model.prompts[0])
	}
	if len(locker.locked) != 1 || locker.locked[0] != chatLockKey(user.ID) || locker.released != 1 {
		t.Fatalf("expected one lock/unlock on the user's key, got %+v released=%d", locker.locked, locker.released)
	}
	if v := testutil.ToFloat64(metrics.Completions.WithLabelValues("ok")); v != 1 {
		t.Fatalf("expected one ok completion, got %v", v)
	}
}

func TestChatComplete_GrowsByOnePerCall(t *testing.T) {
	svc, repo, _, _ := newTestChat(t, &stubCompleter{reply: Reply{Text: "ok"}}, ChatOptions{})
	user := seedUser(t, repo, nil)

	for n := 0; n < 3; n++ {
		if _, err := svc.Complete(context.Background(), user.ID, "again"); err != nil {
			t.Fatalf("call %d: %v", n, err)
		}
		stored, _ := repo.GetByID(context.Background(), user.ID)
		if len(stored.Chats) != n+1 {
			t.Fatalf("after call %d expected %d turns, got %d", n, n+1, len(stored.Chats))
		}
	}
}

func TestChatComplete_FallbackIsStoredAndSucceeds(t *testing.T) {
	svc, repo, _, metrics := newTestChat(t, &stubCompleter{reply: fallback()}, ChatOptions{})
	user := seedUser(t, repo, nil)

	got, err := svc.Complete(context.Background(), user.ID, "hello")
	if err != nil {
		t.Fatalf("fallback must succeed: %v", err)
	}
	if got != FallbackReply {
		t.Fatalf("expected %q, got %q", FallbackReply, got)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	if len(stored.Chats) != 1 || stored.Chats[0].Content != FallbackReply {
		t.Fatalf("expected fallback turn stored, got %+v", stored.Chats)
	}
	if v := testutil.ToFloat64(metrics.Completions.WithLabelValues("fallback")); v != 1 {
		t.Fatalf("expected one fallback completion, got %v", v)
	}
}

func TestChatComplete_ModelErrorSavesNothing(t *testing.T) {
	apiErr := errors.New("upstream down")
	svc, repo, _, _ := newTestChat(t, &stubCompleter{err: apiErr}, ChatOptions{})
	user := seedUser(t, repo, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	_, err := svc.Complete(context.Background(), user.ID, "hello")
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	if len(stored.Chats) != 1 || stored.Version != 0 {
		t.Fatalf("expected history untouched, got %+v (version %d)", stored.Chats, stored.Version)
	}
}

func TestChatComplete_PersistUserTurns(t *testing.T) {
	svc, repo, _, _ := newTestChat(t, &stubCompleter{reply: Reply{Text: "I'm fine"}}, ChatOptions{PersistUserTurns: true})
	user := seedUser(t, repo, nil)

	if _, err := svc.Complete(context.Background(), user.ID, "how are you"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "how are you"},
		{Role: models.RoleAssistant, Content: "I'm fine"},
	}
	if !reflect.DeepEqual(stored.Chats, want) {
		t.Fatalf("expected %+v, got %+v", want, stored.Chats)
	}
}

func TestChatComplete_Errors(t *testing.T) {
	t.Run("blank message", func(t *testing.T) {
		svc, repo, _, _ := newTestChat(t, &stubCompleter{}, ChatOptions{})
		user := seedUser(t, repo, nil)

		_, err := svc.Complete(context.Background(), user.ID, "   ")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _, _ := newTestChat(t, &stubCompleter{}, ChatOptions{})

		_, err := svc.Complete(context.Background(), uuid.New(), "hello")
		var ue *UnauthenticatedError
		if !errors.As(err, &ue) || ue.Message != msgUserNotRegistered {
			t.Fatalf("expected UnauthenticatedError, got %v", err)
		}
	})

	t.Run("lock busy", func(t *testing.T) {
		model := &stubCompleter{}
		repo := repository.NewMemoryUserRepo()
		locker := &stubLocker{err: &ConflictError{Message: "busy"}}
		metrics := observability.NewMetrics("test", prometheus.NewRegistry())
		svc := NewChatService(repo, model, locker, metrics, ChatOptions{})
		user := seedUser(t, repo, nil)

		_, err := svc.Complete(context.Background(), user.ID, "hello")
		var ce *ConflictError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if len(model.prompts) != 0 {
			t.Fatalf("model must not be called without the lock")
		}
	})
}

// staleStore hands out a record whose version lags the stored one.
type staleStore struct {
	*repository.MemoryUserRepo
}

func (s staleStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.MemoryUserRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Version--
	return u, nil
}

func TestChatComplete_VersionConflict(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	svc := NewChatService(staleStore{repo}, &stubCompleter{reply: Reply{Text: "ok"}}, &stubLocker{}, metrics, ChatOptions{})
	user := seedUser(t, repo, nil)

	_, err := svc.Complete(context.Background(), user.ID, "hello")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestChatHistory(t *testing.T) {
	svc, repo, _, _ := newTestChat(t, &stubCompleter{}, ChatOptions{})
	chats := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	user := seedUser(t, repo, chats)

	got, err := svc.History(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, chats) {
		t.Fatalf("expected %+v, got %+v", chats, got)
	}
}

func TestChatHistory_IdentityMismatch(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	svc := NewChatService(mismatchStore{}, &stubCompleter{}, &stubLocker{}, metrics, ChatOptions{})

	_, err := svc.History(context.Background(), uuid.New())
	var ue *UnauthorizedError
	if !errors.As(err, &ue) || ue.Message != msgPermissionMismatch {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}

	err = svc.ClearHistory(context.Background(), uuid.New())
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthorizedError from clear, got %v", err)
	}
}

func TestChatHistory_UnknownUser(t *testing.T) {
	svc, _, _, _ := newTestChat(t, &stubCompleter{}, ChatOptions{})

	_, err := svc.History(context.Background(), uuid.New())
	var ue *UnauthenticatedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthenticatedError, got %v", err)
	}
}

func TestClearHistory_Idempotent(t *testing.T) {
	svc, repo, _, metrics := newTestChat(t, &stubCompleter{}, ChatOptions{})
	user := seedUser(t, repo, []models.ChatMessage{{Role: models.RoleAssistant, Content: "old"}})

	for i := 0; i < 2; i++ {
		if err := svc.ClearHistory(context.Background(), user.ID); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
		stored, _ := repo.GetByID(context.Background(), user.ID)
		if stored.Chats == nil || len(stored.Chats) != 0 {
			t.Fatalf("expected empty non-nil history, got %#v", stored.Chats)
		}
	}

	if v := testutil.ToFloat64(metrics.HistoryResets); v != 2 {
		t.Fatalf("expected two resets counted, got %v", v)
	}
}
