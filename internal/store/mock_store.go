package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/earnings"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/models"
)

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errMockFail = errors.New("mock store failure")

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(ctx context.Context, zenID identity.ZenID) (*models.User, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) EnsureWalletUser(ctx context.Context, wallet identity.Wallet) (*models.User, bool, error) {
	return nil, false, errMockFail
}

func (m *MockStoreFail) ResolveAccount(ctx context.Context, id identity.AccountIdentifier) (*models.User, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) error {
	return errMockFail
}

func (m *MockStoreFail) CreateSession(ctx context.Context, zenID string, ttl time.Duration) (*models.Session, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) GetSession(ctx context.Context, token string) (*models.Session, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) DeleteSession(ctx context.Context, token string) error {
	return errMockFail
}

func (m *MockStoreFail) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, errMockFail
}

func (m *MockStoreFail) CreatePost(ctx context.Context, userID int64, content, media string) (*models.Post, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) ListRecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) ToggleLike(ctx context.Context, postID, userID int64) (models.ToggleState, error) {
	return "", errMockFail
}

func (m *MockStoreFail) ToggleRepost(ctx context.Context, postID, userID int64) (models.ToggleState, error) {
	return "", errMockFail
}

func (m *MockStoreFail) AddComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) EngagementTotals(ctx context.Context, userID int64) (earnings.Totals, error) {
	return earnings.Totals{}, errMockFail
}

func (m *MockStoreFail) SnapshotEarnings(ctx context.Context, userID int64) ([]models.EarningsRecord, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) AddNotification(ctx context.Context, n models.Notification) error {
	return errMockFail
}

func (m *MockStoreFail) ListNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return nil, errMockFail
}

func (m *MockStoreFail) MarkNotificationsRead(ctx context.Context, userID int64) error {
	return errMockFail
}

// ---------------------------------------------
// NotificationRecorder embeds a failing store and records notifications.
// The worker only writes notifications, so this is all its tests need.
type NotificationRecorder struct {
	MockStoreFail

	mu            sync.Mutex
	Notifications []models.Notification
	ShouldFail    bool // flag to simulate failures
}

func (m *NotificationRecorder) AddNotification(ctx context.Context, n models.Notification) error {
	if m.ShouldFail {
		return errMockFail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, n)
	return nil
}

// Recorded returns a copy of the recorded notifications.
func (m *NotificationRecorder) Recorded() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Notification(nil), m.Notifications...)
}
