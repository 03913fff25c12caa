package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quickbite/internal/domain"
)

type ChatRepo struct{ db sqlx.ExtContext }

func NewChatRepo(db sqlx.ExtContext) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) CreateRoom(ctx context.Context, orderID string) (*domain.ChatRoom, error) {
	room := &domain.ChatRoom{ID: uuid.NewString(), OrderID: orderID, CreatedAt: now()}
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_rooms(id, order_id, created_at) VALUES(?, ?, ?)`,
		room.ID, room.OrderID, room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *ChatRepo) RoomByOrder(ctx context.Context, orderID string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	if err := sqlx.GetContext(ctx, r.db, &room, `SELECT id, order_id, created_at FROM chat_rooms WHERE order_id = ?`, orderID); err != nil {
		return nil, notFound(err, "chat room")
	}
	return &room, nil
}

func (r *ChatRepo) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = now()
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, `
		INSERT INTO chat_messages(id, room_id, sender_id, body, created_at)
		VALUES(:id, :room_id, :sender_id, :body, :created_at)
	`, m)
	return err
}

// Messages returns the most recent limit messages, oldest first.
func (r *ChatRepo) Messages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var out []domain.ChatMessage
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT id, room_id, sender_id, body, created_at FROM (
		  SELECT id, room_id, sender_id, body, created_at, rowid AS seq
		  FROM chat_messages
		  WHERE room_id = ?
		  ORDER BY created_at DESC, rowid DESC
		  LIMIT ?
		) ORDER BY created_at, seq
	`, roomID, limit)
	return out, err
}
