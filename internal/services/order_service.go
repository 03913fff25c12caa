package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/orderflow"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
	"quickbite/internal/validate"
)

const maxLineQty = 50

type OrderService struct {
	DB          *sqlx.DB
	Orders      *repos.OrderRepo
	Restaurants *repos.RestaurantRepo
	Menu        *repos.MenuRepo
	Coupons     *CouponService
	Notify      *NotificationService
	Pub         realtime.Publisher

	Policy     orderflow.Policy
	PointsRate int64
}

type LineInput struct {
	MenuItemID string `json:"menu_item_id" validate:"required,max=64"`
	Qty        int    `json:"qty" validate:"min=1,max=50"`
}

type PlaceOrder struct {
	RestaurantID    string      `json:"restaurant_id" validate:"required,max=64"`
	Items           []LineInput `json:"items" validate:"required,min=1,max=50,dive"`
	CouponCode      string      `json:"coupon_code" validate:"omitempty,max=20"`
	PointsToUse     int64       `json:"points_to_use" validate:"gte=0"`
	DeliveryAddress string      `json:"delivery_address" validate:"required,max=200"`
	DeliveryLat     float64     `json:"delivery_lat"`
	DeliveryLng     float64     `json:"delivery_lng"`
	RequestNote     string      `json:"request_note" validate:"max=300"`
}

// flowErr maps state-machine errors onto API error kinds.
func flowErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orderflow.ErrUnknownStatus):
		return apperr.Wrap(apperr.Invalid, "unknown status", err)
	case errors.Is(err, orderflow.ErrNotAllowed):
		return apperr.Wrap(apperr.Forbidden, "not allowed", err)
	case errors.Is(err, orderflow.ErrTerminal),
		errors.Is(err, orderflow.ErrInvalidTransition),
		errors.Is(err, orderflow.ErrNotCancellable):
		return apperr.Wrap(apperr.Conflict, "order cannot move there", err)
	}
	return err
}

func publish(ctx context.Context, pub realtime.Publisher, e realtime.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		applog.L().Warn("realtime publish failed", zap.String("type", e.Type), zap.String("order_id", e.OrderID), zap.Error(err))
	}
}

// Participant reports whether u takes part in o: its customer, the
// restaurant owner, the assigned rider or an admin.
func Participant(u *domain.User, o *domain.Order) bool {
	switch {
	case u == nil:
		return false
	case u.IsAdmin():
		return true
	case u.ID == o.CustomerID, u.ID == o.OwnerID:
		return true
	case o.RiderID != "" && u.ID == o.RiderID:
		return true
	}
	return false
}

// canView also lets riders look at orders they could still accept.
func canView(u *domain.User, o *domain.Order) bool {
	if Participant(u, o) {
		return true
	}
	return u != nil && u.Role == domain.RoleRider && o.RiderID == "" && orderflow.Acceptable(o.Status)
}

func (s *OrderService) load(ctx context.Context, viewer *domain.User, id string) (*domain.Order, error) {
	if _, ok := validate.ID(id); !ok {
		return nil, apperr.ErrNotFound
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, o) {
		// Do not reveal that the order exists.
		return nil, apperr.NotFoundf("order not found")
	}
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, viewer *domain.User, id string) (*domain.Order, error) {
	return s.load(ctx, viewer, id)
}

// OrderDetail is an order as its viewers see it; a cancelled order carries
// the cancellation and, when money is due back, the refund.
type OrderDetail struct {
	*domain.Order
	Cancellation *domain.Cancellation `json:"cancellation,omitempty"`
	Refund       *domain.Refund       `json:"refund,omitempty"`
}

func (s *OrderService) Detail(ctx context.Context, viewer *domain.User, id string) (*OrderDetail, error) {
	o, err := s.load(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	d := &OrderDetail{Order: o}
	if o.Status != domain.StatusCancelled {
		return d, nil
	}
	if d.Cancellation, err = s.Orders.Cancellation(ctx, o.ID); err != nil {
		return nil, err
	}
	f, err := repos.NewRefundRepo(s.DB).ByOrder(ctx, o.ID)
	switch {
	case err == nil:
		d.Refund = f
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}
	return d, nil
}

func (s *OrderService) History(ctx context.Context, viewer *domain.User, id string) ([]domain.StatusChange, error) {
	if _, err := s.load(ctx, viewer, id); err != nil {
		return nil, err
	}
	return s.Orders.History(ctx, id)
}

func (s *OrderService) ListForCustomer(ctx context.Context, customer *domain.User, limit int) ([]domain.Order, error) {
	return s.Orders.List(ctx, repos.OrderFilter{CustomerID: customer.ID, Limit: limit})
}

func (s *OrderService) ListForRestaurant(ctx context.Context, owner *domain.User, restaurantID string, status domain.OrderStatus) ([]domain.Order, error) {
	r, err := s.Restaurants.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if !owner.IsAdmin() && r.OwnerID != owner.ID {
		return nil, apperr.ErrForbidden
	}
	if status != "" && !orderflow.Known(status) {
		return nil, apperr.Invalidf("unknown status %q", status)
	}
	return s.Orders.List(ctx, repos.OrderFilter{RestaurantID: restaurantID, Status: status})
}

func acceptableStatuses() []domain.OrderStatus {
	var out []domain.OrderStatus
	for _, st := range orderflow.Sequence {
		if orderflow.Acceptable(st) {
			out = append(out, st)
		}
	}
	return out
}

// ListAvailableForRiders lists unassigned orders a rider can still take.
func (s *OrderService) ListAvailableForRiders(ctx context.Context) ([]domain.Order, error) {
	return s.Orders.List(ctx, repos.OrderFilter{Unassigned: true, Statuses: acceptableStatuses()})
}

func (s *OrderService) ListForRider(ctx context.Context, rider *domain.User) ([]domain.Order, error) {
	return s.Orders.List(ctx, repos.OrderFilter{RiderID: rider.ID})
}

func (s *OrderService) ListLatest(ctx context.Context, limit int, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !orderflow.Known(status) {
		return nil, apperr.Invalidf("unknown status %q", status)
	}
	return s.Orders.List(ctx, repos.OrderFilter{Status: status, Limit: limit})
}

func (s *OrderService) StatusCounts(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := s.Orders.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.OrderStatus]int, len(orderflow.Sequence))
	for _, st := range orderflow.Sequence {
		out[st] = 0
	}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// mergeLines folds repeated menu items into one line.
func mergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, apperr.Invalidf("order has no items")
	}
	idx := map[string]int{}
	var out []LineInput
	for _, l := range lines {
		id, ok := validate.ID(l.MenuItemID)
		if !ok {
			return nil, apperr.Invalidf("invalid menu item id")
		}
		if l.Qty < 1 || l.Qty > maxLineQty {
			return nil, apperr.Invalidf("quantity must be 1..%d", maxLineQty)
		}
		if i, seen := idx[id]; seen {
			out[i].Qty += l.Qty
			if out[i].Qty > maxLineQty {
				return nil, apperr.Invalidf("quantity must be 1..%d", maxLineQty)
			}
			continue
		}
		idx[id] = len(out)
		out = append(out, LineInput{MenuItemID: id, Qty: l.Qty})
	}
	return out, nil
}

// Place creates an order for customer. Coupon use, points spending, the
// order rows, the chat room and the owner's notification are written in one
// transaction.
func (s *OrderService) Place(ctx context.Context, customer *domain.User, in PlaceOrder) (*domain.Order, error) {
	if customer.Role != domain.RoleCustomer {
		return nil, apperr.New(apperr.Forbidden, "only customers place orders")
	}
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}
	addr := strings.TrimSpace(in.DeliveryAddress)
	if addr == "" {
		return nil, apperr.Invalidf("delivery address is required")
	}
	if !validate.Coord(in.DeliveryLat, in.DeliveryLng) {
		return nil, apperr.Invalidf("invalid coordinates")
	}
	if in.PointsToUse < 0 {
		return nil, apperr.Invalidf("points must not be negative")
	}

	r, err := s.Restaurants.Get(ctx, in.RestaurantID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalidf("unknown restaurant")
		}
		return nil, err
	}
	if !r.IsOpen {
		return nil, apperr.Invalidf("restaurant is closed")
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.MenuItemID
	}
	menu, err := s.Menu.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customer.ID,
		RestaurantID:    r.ID,
		Status:          domain.StatusPending,
		DeliveryAddress: addr,
		DeliveryLat:     in.DeliveryLat,
		DeliveryLng:     in.DeliveryLng,
		RequestNote:     strings.TrimSpace(in.RequestNote),
		RestaurantName:  r.Name,
		OwnerID:         r.OwnerID,
	}
	for _, l := range lines {
		m, ok := menu[l.MenuItemID]
		if !ok || m.RestaurantID != r.ID {
			return nil, apperr.Invalidf("menu item %s is not on this restaurant's menu", l.MenuItemID)
		}
		if !m.Available {
			return nil, apperr.Invalidf("%s is sold out", m.Name)
		}
		it := domain.OrderItem{MenuItemID: m.ID, Name: m.Name, Price: m.Price, Qty: l.Qty}
		o.Items = append(o.Items, it)
		o.Subtotal += it.Subtotal()
	}
	if o.Subtotal < r.MinOrder {
		return nil, apperr.Invalidf("minimum order is %d", r.MinOrder)
	}
	o.DeliveryFee = r.DeliveryFee
	if r.FreeDeliveryOver > 0 && o.Subtotal >= r.FreeDeliveryOver {
		o.DeliveryFee = 0
	}

	var notes []domain.Notification
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		if code := strings.TrimSpace(in.CouponCode); code != "" {
			chk, err := s.Coupons.redeem(ctx, repos.NewCouponRepo(tx), code, o.Subtotal)
			if err != nil {
				return err
			}
			o.CouponCode = chk.Code
			o.Discount = chk.Discount
		}

		if in.PointsToUse > 0 {
			points := repos.NewPointsRepo(tx)
			bal, err := points.Balance(ctx, customer.ID)
			if err != nil {
				return err
			}
			if in.PointsToUse > bal {
				return apperr.Invalidf("not enough points (balance %d)", bal)
			}
			if in.PointsToUse > o.Subtotal+o.DeliveryFee-o.Discount {
				return apperr.Invalidf("points exceed the amount due")
			}
			o.PointsUsed = in.PointsToUse
			if err := points.Add(ctx, &domain.PointsEntry{
				UserID: customer.ID, Delta: -o.PointsUsed, Reason: "spend", OrderID: o.ID,
			}); err != nil {
				return err
			}
		}
		o.Total = o.Subtotal + o.DeliveryFee - o.Discount - o.PointsUsed

		orders := repos.NewOrderRepo(tx)
		if err := orders.Create(ctx, o); err != nil {
			return err
		}
		if err := orders.AddHistory(ctx, &domain.StatusChange{
			OrderID: o.ID, ToStatus: domain.StatusPending, ActorID: customer.ID, ActorRole: customer.Role,
		}); err != nil {
			return err
		}
		if _, err := repos.NewChatRepo(tx).CreateRoom(ctx, o.ID); err != nil {
			return err
		}
		n := domain.Notification{
			UserID:  r.OwnerID,
			Kind:    "order.created",
			Title:   "새 주문",
			Body:    fmt.Sprintf("%s: %d원 주문이 접수되었습니다", r.Name, o.Total),
			OrderID: o.ID,
		}
		if err := repos.NewNotificationRepo(tx).Create(ctx, &n); err != nil {
			return err
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Deliver(ctx, notes)
	publish(ctx, s.Pub, realtime.Event{
		Type: realtime.EventOrderCreated, OrderID: o.ID, Users: []string{o.CustomerID, o.OwnerID}, Data: o,
	})
	return o, nil
}

// guardActor checks the actor's relation to the order beyond its role.
func guardActor(actor *domain.User, o *domain.Order) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleOwner:
		if o.OwnerID != actor.ID {
			return apperr.ErrForbidden
		}
	case domain.RoleRider:
		if o.RiderID != actor.ID {
			return apperr.New(apperr.Forbidden, "accept the delivery first")
		}
	case domain.RoleCustomer:
		if o.CustomerID != actor.ID {
			return apperr.ErrForbidden
		}
	}
	return nil
}

func statusNote(o *domain.Order, to domain.OrderStatus) domain.Notification {
	return domain.Notification{
		UserID:  o.CustomerID,
		Kind:    "order.status",
		Title:   orderflow.Label(to, "ko"),
		Body:    fmt.Sprintf("%s 주문이 '%s' 상태입니다", o.RestaurantName, orderflow.Label(to, "ko")),
		OrderID: o.ID,
	}
}

// Transition moves an order to status to on behalf of actor. Cancelling goes
// through Cancel so the refund policy applies.
func (s *OrderService) Transition(ctx context.Context, actor *domain.User, id string, to domain.OrderStatus, note string) (*domain.Order, error) {
	if to == domain.StatusCancelled {
		if _, err := s.Cancel(ctx, actor, id, note); err != nil {
			return nil, err
		}
		return s.Orders.Get(ctx, id)
	}
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := flowErr(orderflow.Check(o.Status, to, actor.Role)); err != nil {
		return nil, err
	}
	if err := guardActor(actor, o); err != nil {
		return nil, err
	}

	from := o.Status
	var notes []domain.Notification
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		orders := repos.NewOrderRepo(tx)
		if err := orders.UpdateStatus(ctx, o.ID, from, to); err != nil {
			return err
		}
		if err := orders.AddHistory(ctx, &domain.StatusChange{
			OrderID: o.ID, FromStatus: from, ToStatus: to, ActorID: actor.ID, ActorRole: actor.Role,
			Note: strings.TrimSpace(note),
		}); err != nil {
			return err
		}
		n := statusNote(o, to)
		if err := repos.NewNotificationRepo(tx).Create(ctx, &n); err != nil {
			return err
		}
		notes = append(notes, n)

		if to == domain.StatusDelivered {
			if earned := orderflow.Points(o.Total, s.PointsRate); earned > 0 {
				if err := repos.NewPointsRepo(tx).Add(ctx, &domain.PointsEntry{
					UserID: o.CustomerID, Delta: earned, Reason: "earn", OrderID: o.ID,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = to
	s.Notify.Deliver(ctx, notes)
	publish(ctx, s.Pub, realtime.Event{
		Type: realtime.EventOrderStatus, OrderID: o.ID, Users: []string{o.CustomerID, o.OwnerID},
		Data: map[string]any{"from": from, "to": to},
	})
	return s.Orders.Get(ctx, id)
}

// AcceptDelivery assigns rider to an unassigned order that is not yet picked up.
func (s *OrderService) AcceptDelivery(ctx context.Context, rider *domain.User, id string) (*domain.Order, error) {
	if rider.Role != domain.RoleRider {
		return nil, apperr.New(apperr.Forbidden, "only riders accept deliveries")
	}
	o, err := s.load(ctx, rider, id)
	if err != nil {
		return nil, err
	}
	if o.RiderID == rider.ID {
		return o, nil
	}
	if o.RiderID != "" || !orderflow.Acceptable(o.Status) {
		return nil, apperr.Conflictf("order is not available")
	}

	n := domain.Notification{
		UserID:  o.CustomerID,
		Kind:    "order.rider_assigned",
		Title:   "배달원 배정",
		Body:    fmt.Sprintf("%s 님이 배달을 맡았습니다", rider.Name),
		OrderID: o.ID,
	}
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		if err := repos.NewOrderRepo(tx).AssignRider(ctx, o.ID, rider.ID, acceptableStatuses()); err != nil {
			return err
		}
		return repos.NewNotificationRepo(tx).Create(ctx, &n)
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Deliver(ctx, []domain.Notification{n})
	publish(ctx, s.Pub, realtime.Event{
		Type: realtime.EventRiderAssigned, OrderID: o.ID, Users: []string{o.CustomerID, o.OwnerID},
		Data: map[string]string{"rider_id": rider.ID, "rider_name": rider.Name},
	})
	return s.Orders.Get(ctx, id)
}

// CancelQuote previews what cancelling now would refund, without writing.
func (s *OrderService) CancelQuote(ctx context.Context, actor *domain.User, id string) (*orderflow.CancelQuote, error) {
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := guardActor(actor, o); err != nil {
		return nil, err
	}
	q, err := s.Policy.Quote(o.Status, o.Total, actor.Role)
	if err != nil {
		return nil, flowErr(err)
	}
	return &q, nil
}

// Cancel cancels an order under the refund policy: it records the
// cancellation, queues a refund when money is owed, returns spent points and
// the coupon use, and tells everyone involved.
func (s *OrderService) Cancel(ctx context.Context, actor *domain.User, id, reason string) (*domain.Cancellation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalidf("a reason is required")
	}
	if utf8.RuneCountInString(reason) > 300 {
		return nil, apperr.Invalidf("reason is too long")
	}
	o, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleRider {
		return nil, apperr.New(apperr.Forbidden, "riders cannot cancel orders")
	}
	if err := guardActor(actor, o); err != nil {
		return nil, err
	}
	q, err := s.Policy.Quote(o.Status, o.Total, actor.Role)
	if err != nil {
		return nil, flowErr(err)
	}

	c := &domain.Cancellation{
		OrderID:        o.ID,
		Reason:         reason,
		InitiatedBy:    actor.ID,
		ActorRole:      actor.Role,
		StatusAtCancel: o.Status,
		RefundRate:     q.RefundRate,
		Fee:            q.Fee,
		RefundAmount:   q.RefundAmount,
	}
	recipients := []string{o.CustomerID, o.OwnerID}
	if o.RiderID != "" {
		recipients = append(recipients, o.RiderID)
	}

	var notes []domain.Notification
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		orders := repos.NewOrderRepo(tx)
		if err := orders.UpdateStatus(ctx, o.ID, o.Status, domain.StatusCancelled); err != nil {
			return err
		}
		if err := orders.InsertCancellation(ctx, c); err != nil {
			return err
		}
		if err := orders.AddHistory(ctx, &domain.StatusChange{
			OrderID: o.ID, FromStatus: o.Status, ToStatus: domain.StatusCancelled,
			ActorID: actor.ID, ActorRole: actor.Role, Note: reason,
		}); err != nil {
			return err
		}
		if q.RefundAmount > 0 {
			if err := repos.NewRefundRepo(tx).Create(ctx, &domain.Refund{OrderID: o.ID, Amount: q.RefundAmount}); err != nil {
				return err
			}
		}
		if o.PointsUsed > 0 {
			if err := repos.NewPointsRepo(tx).Add(ctx, &domain.PointsEntry{
				UserID: o.CustomerID, Delta: o.PointsUsed, Reason: "refund", OrderID: o.ID,
			}); err != nil {
				return err
			}
		}
		if o.CouponCode != "" {
			if err := repos.NewCouponRepo(tx).Release(ctx, o.CouponCode); err != nil {
				return err
			}
		}
		notesRepo := repos.NewNotificationRepo(tx)
		for _, uid := range recipients {
			if uid == actor.ID {
				continue
			}
			n := domain.Notification{
				UserID:  uid,
				Kind:    "order.cancelled",
				Title:   orderflow.Label(domain.StatusCancelled, "ko"),
				Body:    fmt.Sprintf("%s 주문이 취소되었습니다: %s", o.RestaurantName, reason),
				OrderID: o.ID,
			}
			if err := notesRepo.Create(ctx, &n); err != nil {
				return err
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Deliver(ctx, notes)
	publish(ctx, s.Pub, realtime.Event{
		Type: realtime.EventOrderCancelled, OrderID: o.ID, Users: recipients, Data: c,
	})
	return c, nil
}
