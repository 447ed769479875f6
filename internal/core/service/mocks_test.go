package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/egnyte/cloudimized/internal/core/domain"
)

type MockGitRepository struct {
	mock.Mock
}

func (m *MockGitRepository) Setup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockGitRepository) Clean(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockGitRepository) Changes(ctx context.Context) ([]*domain.Change, error) {
	args := m.Called(ctx)
	var changes []*domain.Change
	if args.Get(0) != nil {
		changes = args.Get(0).([]*domain.Change)
	}
	return changes, args.Error(1)
}

func (m *MockGitRepository) Stage(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockGitRepository) HasPendingDiff(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockGitRepository) Commit(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *MockGitRepository) DiffLastCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitRepository) CommitsAhead(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockGitRepository) TotalCommits(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockGitRepository) Push(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockAuditLogSource struct {
	mock.Mock
}

func (m *MockAuditLogSource) Provider() string {
	return m.Called().String(0)
}

func (m *MockAuditLogSource) Query(ctx context.Context, resourceType, targetID string, since time.Time) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, resourceType, targetID, since)
	var entries []domain.AuditLogEntry
	if args.Get(0) != nil {
		entries = args.Get(0).([]domain.AuditLogEntry)
	}
	return entries, args.Error(1)
}

type MockRunSource struct {
	mock.Mock
}

func (m *MockRunSource) BaseURL() string {
	return m.Called().String(0)
}

func (m *MockRunSource) RunsFor(ctx context.Context, login string, changeTime time.Time) ([]domain.AutomationRun, error) {
	args := m.Called(ctx, login, changeTime)
	var runs []domain.AutomationRun
	if args.Get(0) != nil {
		runs = args.Get(0).([]domain.AutomationRun)
	}
	return runs, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Name() string {
	return m.Called().String(0)
}

func (m *MockNotifier) Post(ctx context.Context, change *domain.Change) error {
	return m.Called(ctx, change).Error(0)
}
