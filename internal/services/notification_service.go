package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	applog "quickbite/internal/log"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
)

type NotificationService struct {
	Notes *repos.NotificationRepo
	Pub   realtime.Publisher
}

type PushTokenInput struct {
	Token    string `json:"token" validate:"required,min=8,max=512"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

func (s *NotificationService) List(ctx context.Context, u *domain.User, limit int) ([]domain.Notification, error) {
	return s.Notes.List(ctx, u.ID, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, u *domain.User) (int, error) {
	return s.Notes.UnreadCount(ctx, u.ID)
}

func (s *NotificationService) MarkRead(ctx context.Context, u *domain.User, id string) error {
	return s.Notes.MarkRead(ctx, id, u.ID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, u *domain.User) (int64, error) {
	return s.Notes.MarkAllRead(ctx, u.ID)
}

func (s *NotificationService) RegisterPushToken(ctx context.Context, u *domain.User, in PushTokenInput) (*domain.PushToken, error) {
	tok := strings.TrimSpace(in.Token)
	if len(tok) < 8 || len(tok) > 512 {
		return nil, apperr.Invalidf("invalid push token")
	}
	switch in.Platform {
	case "ios", "android", "web":
	default:
		return nil, apperr.Invalidf("unknown platform %q", in.Platform)
	}
	t := &domain.PushToken{Token: tok, UserID: u.ID, Platform: in.Platform}
	if err := s.Notes.UpsertPushToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *NotificationService) UnregisterPushToken(ctx context.Context, u *domain.User, token string) error {
	return s.Notes.DeletePushToken(ctx, token, u.ID)
}

// Deliver announces already-stored notifications: a realtime event on each
// recipient's user topic, and a push fan-out to their registered devices.
// Push delivery itself is only logged.
func (s *NotificationService) Deliver(ctx context.Context, notes []domain.Notification) {
	for _, n := range notes {
		if s.Pub != nil {
			if err := s.Pub.Publish(ctx, realtime.Event{
				Type:  realtime.EventNotification,
				Users: []string{n.UserID},
				Data:  n,
			}); err != nil {
				applog.L().Warn("notification publish failed", zap.String("user_id", n.UserID), zap.Error(err))
			}
		}
		toks, err := s.Notes.PushTokens(ctx, n.UserID)
		if err != nil {
			applog.L().Warn("push token lookup failed", zap.String("user_id", n.UserID), zap.Error(err))
			continue
		}
		if len(toks) == 0 {
			continue
		}
		platforms := make([]string, 0, len(toks))
		for _, t := range toks {
			platforms = append(platforms, t.Platform)
		}
		applog.L().Info("push fan-out",
			zap.String("user_id", n.UserID),
			zap.String("kind", n.Kind),
			zap.String("order_id", n.OrderID),
			zap.Strings("platforms", platforms),
		)
	}
}
