package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/mapper"
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/testutil"
	"github.com/qs3c/subscription_server/internal/validator"
)

func setupSubscriptionService(t *testing.T) (*SubscriptionService, *repository.SubscriptionRepository, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	repo := repository.NewSubscriptionRepository(db)
	c := clock.Fixed(testutil.Now)

	svc := NewSubscriptionService(
		repo,
		validator.NewCreateSubscriptionValidator(c),
		mapper.NewCreateSubscriptionMapper(),
		c,
		nil,
		nil,
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return svc, repo, db, cleanup
}

func TestSubscriptionServiceDB_Upsert(t *testing.T) {
	svc, repo, _, cleanup := setupSubscriptionService(t)
	defer cleanup()

	req := testutil.CreateRequest()

	sub, err := svc.Upsert(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.NotZero(t, sub.ID)
	assert.Equal(t, req.Name, sub.Name)
	assert.Equal(t, *req.Provider, string(sub.Provider))
	assert.Equal(t, model.StatusActive, sub.Status)

	stored, err := repo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.UserID)
	assert.True(t, req.ExpirationDate.Equal(stored.ExpirationDate))
}

func TestSubscriptionServiceDB_UpsertTwiceUpdatesSameRow(t *testing.T) {
	svc, repo, _, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.Upsert(ctx, testutil.CreateRequest())
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, testutil.CreateRequest(testutil.WithRequestName("premium")))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	subs, err := repo.FindByUserID(ctx, 100)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "premium", subs[0].Name)
}

func TestSubscriptionServiceDB_CancelActive(t *testing.T) {
	svc, repo, db, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db)

	require.NoError(t, svc.Cancel(ctx, sub.ID))

	canceled, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	err = svc.Cancel(ctx, sub.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	still, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, still.Status)
}

func TestSubscriptionServiceDB_CancelNotActive(t *testing.T) {
	svc, _, db, cleanup := setupSubscriptionService(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, db, testutil.WithStatus(model.StatusCanceled))

	err := svc.Cancel(context.Background(), sub.ID)
	var serr *SubscriptionError
	assert.True(t, errors.As(err, &serr))
}

func TestSubscriptionServiceDB_ExpireActive(t *testing.T) {
	svc, repo, db, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	sub := testutil.TestSubscription(t, db)

	require.NoError(t, svc.Expire(ctx, sub.ID))

	expired, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, expired.Status)
	assert.True(t, testutil.Now.Equal(expired.ExpirationDate))
}

func TestSubscriptionServiceDB_ExpireNotFound(t *testing.T) {
	svc, _, _, cleanup := setupSubscriptionService(t)
	defer cleanup()

	err := svc.Expire(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestSubscriptionServiceDB_ExpireOverdue(t *testing.T) {
	svc, repo, db, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	overdue := testutil.TestSubscription(t, db, testutil.WithExpirationDate(testutil.Now.Add(-time.Minute)))
	future := testutil.TestSubscription(t, db, testutil.WithExpirationDate(testutil.Now.Add(time.Hour)))

	count, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.FindByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)

	got, err = repo.FindByID(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
}

// cancelOnReadStore 在读出订阅后立即取消它，模拟读写之间的并发取消
type cancelOnReadStore struct {
	*repository.SubscriptionRepository
}

func (s cancelOnReadStore) FindByUserID(ctx context.Context, userID int64) ([]*model.Subscription, error) {
	subs, err := s.SubscriptionRepository.FindByUserID(ctx, userID)
	if err != nil || len(subs) == 0 {
		return subs, err
	}
	other, err := s.SubscriptionRepository.FindByID(ctx, subs[0].ID)
	if err != nil {
		return nil, err
	}
	other.Status = model.StatusCanceled
	if err := s.SubscriptionRepository.UpdateStatus(ctx, other, model.StatusActive); err != nil {
		return nil, err
	}
	return subs, nil
}

func TestSubscriptionServiceDB_UpsertKeepsConcurrentCancel(t *testing.T) {
	_, repo, db, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	existing := testutil.TestSubscription(t, db, testutil.WithUserID(100))

	c := clock.Fixed(testutil.Now)
	svc := NewSubscriptionService(
		cancelOnReadStore{repo},
		validator.NewCreateSubscriptionValidator(c),
		mapper.NewCreateSubscriptionMapper(),
		c,
		nil,
		nil,
	)

	req := testutil.CreateRequest(testutil.WithRequestName("renamed"))
	sub, err := svc.Upsert(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sub.ID)
	assert.Equal(t, model.StatusCanceled, sub.Status)

	stored, err := repo.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
	assert.Equal(t, model.StatusCanceled, stored.Status)
}

func TestSubscriptionServiceDB_ExpireOverdue_ClockInOtherZone(t *testing.T) {
	_, repo, db, cleanup := setupSubscriptionService(t)
	defer cleanup()
	ctx := context.Background()

	live := testutil.TestSubscription(t, db, testutil.WithExpirationDate(testutil.Now.Add(time.Hour)))

	for _, zone := range []*time.Location{time.FixedZone("UTC+8", 8*3600), time.FixedZone("UTC-5", -5*3600)} {
		c := clock.Fixed(testutil.Now.In(zone))
		svc := NewSubscriptionService(
			repo,
			validator.NewCreateSubscriptionValidator(c),
			mapper.NewCreateSubscriptionMapper(),
			c,
			nil,
			nil,
		)

		pending, err := svc.CountOverdue(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending, zone.String())

		count, err := svc.ExpireAllOverdue(ctx)
		require.NoError(t, err)
		assert.Zero(t, count, zone.String())
	}

	stored, err := repo.FindByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)
}
