package repos_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/repos"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func placeOrder(t *testing.T, db *sqlx.DB, id string) {
	t.Helper()
	o := &domain.Order{
		ID: id, CustomerID: "u-alice", RestaurantID: "r-chicken",
		Subtotal: 19000, DeliveryFee: 3000, Total: 22000, DeliveryAddress: "서울 마포구 1",
		Items: []domain.OrderItem{{MenuItemID: "m-fried", Name: "Fried Chicken", Price: 19000, Qty: 1}},
	}
	require.NoError(t, repos.InTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return repos.NewOrderRepo(tx).Create(context.Background(), o)
	}))
}

func TestOpenDBSeedsOnce(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	u, err := repos.NewUserRepo(db).ByEmail(ctx, "ADMIN@quickbite.test")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	menu, err := repos.NewMenuRepo(db).List(ctx, "r-bunsik", true)
	require.NoError(t, err)
	assert.Len(t, menu, 2, "unavailable items are hidden")

	cats, err := repos.NewRestaurantRepo(db).Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken", "korean"}, cats)
}

func TestDuplicateEmailIsConflict(t *testing.T) {
	db := openDB(t)
	err := repos.NewUserRepo(db).Create(context.Background(), &domain.User{
		ID: "u-x", Email: "Alice@Quickbite.test", Name: "x", Hash: "h", Role: domain.RoleCustomer,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestOrderRoundTripAndStatusCAS(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	placeOrder(t, db, "o-1")
	orders := repos.NewOrderRepo(db)

	o, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "Crispy Chicken House", o.RestaurantName)
	assert.Equal(t, "u-owner", o.OwnerID)
	assert.Empty(t, o.RiderID)
	require.Len(t, o.Items, 1)

	require.NoError(t, orders.UpdateStatus(ctx, "o-1", domain.StatusPending, domain.StatusConfirmed))
	err = orders.UpdateStatus(ctx, "o-1", domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrConflict, "stale from-status must not overwrite")

	_, err = orders.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssignRiderOnlyOnce(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	placeOrder(t, db, "o-2")
	orders := repos.NewOrderRepo(db)
	ok := []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady}

	assert.ErrorIs(t, orders.AssignRider(ctx, "o-2", "u-rider", ok), apperr.ErrConflict, "still pending")

	require.NoError(t, orders.UpdateStatus(ctx, "o-2", domain.StatusPending, domain.StatusConfirmed))
	avail, err := orders.List(ctx, repos.OrderFilter{Unassigned: true, Statuses: ok})
	require.NoError(t, err)
	require.Len(t, avail, 1)

	require.NoError(t, orders.AssignRider(ctx, "o-2", "u-rider", ok))
	assert.ErrorIs(t, orders.AssignRider(ctx, "o-2", "u-rider", ok), apperr.ErrConflict)

	mine, err := orders.List(ctx, repos.OrderFilter{RiderID: "u-rider"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u-rider", mine[0].RiderID)
}

func TestRefundCompleteOnce(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	placeOrder(t, db, "o-3")
	refunds := repos.NewRefundRepo(db)

	f := &domain.Refund{OrderID: "o-3", Amount: 21000}
	require.NoError(t, refunds.Create(ctx, f))
	assert.ErrorIs(t, refunds.Create(ctx, &domain.Refund{OrderID: "o-3", Amount: 1}), apperr.ErrConflict)

	pending, err := refunds.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Alice", pending[0].CustomerName)

	require.NoError(t, refunds.Complete(ctx, f.ID))
	assert.ErrorIs(t, refunds.Complete(ctx, f.ID), apperr.ErrConflict)
	assert.ErrorIs(t, refunds.Complete(ctx, "nope"), apperr.ErrNotFound)

	n, err := refunds.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCouponRedeemRespectsLimit(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	coupons := repos.NewCouponRepo(db)
	require.NoError(t, coupons.Create(ctx, &domain.Coupon{
		Code: "ONCE", Kind: domain.CouponFlat, Value: 1000, UsageLimit: 1, ExpiresAt: "2099-01-01T00:00:00Z", Active: true,
	}))

	require.NoError(t, coupons.Redeem(ctx, "ONCE"))
	assert.ErrorIs(t, coupons.Redeem(ctx, "ONCE"), apperr.ErrConflict)

	require.NoError(t, coupons.Release(ctx, "ONCE"))
	require.NoError(t, coupons.Redeem(ctx, "ONCE"))
}

func TestNotificationsAndPushTokens(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	notes := repos.NewNotificationRepo(db)

	for _, title := range []string{"a", "b"} {
		require.NoError(t, notes.Create(ctx, &domain.Notification{UserID: "u-alice", Kind: "order", Title: title, Body: title}))
	}
	list, err := notes.List(ctx, "u-alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Title, "newest first")

	assert.ErrorIs(t, notes.MarkRead(ctx, list[0].ID, "u-bob"), apperr.ErrNotFound)
	require.NoError(t, notes.MarkRead(ctx, list[0].ID, "u-alice"))
	n, err := notes.UnreadCount(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, notes.UpsertPushToken(ctx, &domain.PushToken{Token: "tok", UserID: "u-alice", Platform: "ios"}))
	require.NoError(t, notes.UpsertPushToken(ctx, &domain.PushToken{Token: "tok", UserID: "u-bob", Platform: "ios"}))
	mine, err := notes.PushTokens(ctx, "u-alice")
	require.NoError(t, err)
	assert.Empty(t, mine, "token moved to the new user")
	assert.ErrorIs(t, notes.DeletePushToken(ctx, "tok", "u-alice"), apperr.ErrNotFound)
	require.NoError(t, notes.DeletePushToken(ctx, "tok", "u-bob"))
}

func TestPointsBalance(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	points := repos.NewPointsRepo(db)

	bal, err := points.Balance(ctx, "u-alice")
	require.NoError(t, err)
	assert.Zero(t, bal)

	require.NoError(t, points.Add(ctx, &domain.PointsEntry{UserID: "u-alice", Delta: 500, Reason: "earn"}))
	require.NoError(t, points.Add(ctx, &domain.PointsEntry{UserID: "u-alice", Delta: -200, Reason: "spend"}))
	bal, err = points.Balance(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)
}

func TestLiveAdsWindow(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	ads := repos.NewAdRepo(db)
	require.NoError(t, ads.Create(ctx, &domain.Advertisement{
		Title: "old", ImageURL: "/x.png", StartsAt: "2020-01-01T00:00:00Z", EndsAt: "2021-01-01T00:00:00Z", Active: true,
	}))

	live, err := ads.Live(ctx, "2026-06-01T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "ad-welcome", live[0].ID)

	require.NoError(t, ads.SetActive(ctx, "ad-welcome", false))
	live, err = ads.Live(ctx, "2026-06-01T00:00:00Z")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestChatMessagesAscending(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	placeOrder(t, db, "o-4")
	chat := repos.NewChatRepo(db)

	room, err := chat.CreateRoom(ctx, "o-4")
	require.NoError(t, err)
	for _, body := range []string{"hi", "on my way", "thanks"} {
		require.NoError(t, chat.AddMessage(ctx, &domain.ChatMessage{RoomID: room.ID, SenderID: "u-alice", Body: body}))
	}
	msgs, err := chat.Messages(ctx, room.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "on my way", msgs[0].Body)
	assert.Equal(t, "thanks", msgs[1].Body)

	_, err = chat.RoomByOrder(ctx, "o-missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
