package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/cache"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return m.Called(ctx, db, user).Error(0)
}

func (m *mockUserRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	args := m.Called(ctx, db, id)
	user, _ := args.Get(0).(*userdomain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) FindByExternalCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*userdomain.User, error) {
	args := m.Called(ctx, db, customerID)
	user, _ := args.Get(0).(*userdomain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) SetCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) error {
	return m.Called(ctx, db, userID, subscriptionID).Error(0)
}

func (m *mockUserRepo) ClearCurrentSubscription(ctx context.Context, db *gorm.DB, userID, subscriptionID snowflake.ID) (bool, error) {
	args := m.Called(ctx, db, userID, subscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, db *gorm.DB) ([]userdomain.User, error) {
	args := m.Called(ctx, db)
	users, _ := args.Get(0).([]userdomain.User)
	return users, args.Error(1)
}

func newResolver(t *testing.T, repo userdomain.Repository, c cache.UserCache) *Resolver {
	return New(Params{Log: zaptest.NewLogger(t), Users: repo, Cache: c})
}

func TestResolveUserFound(t *testing.T) {
	repo := &mockUserRepo{}
	user := &userdomain.User{ID: 7, ExternalCustomerID: "cus_1"}
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_1").Return(user, nil).Once()

	got, err := newResolver(t, repo, nil).ResolveUser(context.Background(), " cus_1 ")
	require.NoError(t, err)
	assert.Equal(t, user, got)
	repo.AssertExpectations(t)
}

func TestResolveUserErrors(t *testing.T) {
	repo := &mockUserRepo{}
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_missing").Return(nil, nil)
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_broken").Return(nil, errors.New("conn reset"))
	r := newResolver(t, repo, nil)

	_, err := r.ResolveUser(context.Background(), "")
	assert.ErrorIs(t, err, paymentdomain.ErrMissingReference)

	_, err = r.ResolveUser(context.Background(), "cus_missing")
	assert.ErrorIs(t, err, paymentdomain.ErrUserNotFound)

	_, err = r.ResolveUser(context.Background(), "cus_broken")
	var storeErr *paymentdomain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "find_user_by_customer", storeErr.Op)
}

func TestResolveUserCachesHitsOnly(t *testing.T) {
	repo := &mockUserRepo{}
	user := &userdomain.User{ID: 9, ExternalCustomerID: "cus_9"}
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_9").Return(user, nil).Once()
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_late").Return(nil, nil).Once()
	r := newResolver(t, repo, cache.NewMemoryUserCache(4, time.Minute))

	for i := 0; i < 3; i++ {
		got, err := r.ResolveUser(context.Background(), "cus_9")
		require.NoError(t, err)
		assert.EqualValues(t, 9, got.ID)
	}

	_, err := r.ResolveUser(context.Background(), "cus_late")
	require.ErrorIs(t, err, paymentdomain.ErrUserNotFound)

	// The user is provisioned after the first miss.
	repo.On("FindByExternalCustomerID", mock.Anything, mock.Anything, "cus_late").Return(&userdomain.User{ID: 10}, nil).Once()
	got, err := r.ResolveUser(context.Background(), "cus_late")
	require.NoError(t, err)
	assert.EqualValues(t, 10, got.ID)

	repo.AssertExpectations(t)
}
