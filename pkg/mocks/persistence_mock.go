package mocks

import (
	"context"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockTicketRepository is a mock implementation of persistence.TicketRepository interface.
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *models.Ticket, activity *models.Activity) error {
	args := m.Called(ctx, ticket, activity)

	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Update(
	ctx context.Context,
	ticket *models.Ticket,
	expected persistence.Position,
	activity *models.Activity,
) error {
	args := m.Called(ctx, ticket, expected, activity)

	return args.Error(0)
}

func (m *MockTicketRepository) Activities(ctx context.Context, ticketID string) ([]*models.Activity, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Activity), args.Error(1)
}

// MockLocker is a mock implementation of scheduler.Locker interface.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, ruleID string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, ruleID, ttl)

	return args.String(0), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, ruleID, token string) error {
	args := m.Called(ctx, ruleID, token)

	return args.Error(0)
}
