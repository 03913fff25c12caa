package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"quickbite/internal/apperr"
	applog "quickbite/internal/log"
)

// TimeFormat is how every timestamp column is written, so text comparison
// orders them correctly.
const TimeFormat = "2006-01-02T15:04:05Z"

var errNoRows = sql.ErrNoRows

var nowFunc = func() time.Time { return time.Now().UTC() }

func now() string { return nowFunc().Format(TimeFormat) }

func OpenDB(dsn string) (*sqlx.DB, error) {
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway; one connection also keeps a
	// :memory: database alive and shared.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	return db, nil
}

// InTx runs fn inside a transaction. fn must only use tx: the pool holds a
// single connection.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// notFound turns sql.ErrNoRows into an apperr not-found error.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.NotFound, what+" not found", err)
	}
	return err
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('customer','owner','rider','admin')),
  created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT NOT NULL,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Restaurants & menu
CREATE TABLE IF NOT EXISTS restaurants(
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  address TEXT NOT NULL,
  lat REAL NOT NULL DEFAULT 0,
  lng REAL NOT NULL DEFAULT 0,
  phone TEXT NOT NULL DEFAULT '',
  min_order INTEGER NOT NULL DEFAULT 0 CHECK (min_order >= 0),
  delivery_fee INTEGER NOT NULL DEFAULT 0 CHECK (delivery_fee >= 0),
  free_delivery_over INTEGER NOT NULL DEFAULT 0 CHECK (free_delivery_over >= 0),
  is_open INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_restaurants_owner    ON restaurants(owner_id);
CREATE INDEX IF NOT EXISTS idx_restaurants_category ON restaurants(category);

CREATE TABLE IF NOT EXISTS menu_items(
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL REFERENCES restaurants(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL CHECK (price >= 0),
  available INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant ON menu_items(restaurant_id);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL REFERENCES users(id),
  restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
  rider_id TEXT NULL REFERENCES users(id),
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal INTEGER NOT NULL,
  delivery_fee INTEGER NOT NULL DEFAULT 0,
  discount INTEGER NOT NULL DEFAULT 0,
  points_used INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL CHECK (total >= 0),
  coupon_code TEXT NOT NULL DEFAULT '',
  delivery_address TEXT NOT NULL,
  delivery_lat REAL NOT NULL DEFAULT 0,
  delivery_lng REAL NOT NULL DEFAULT 0,
  request_note TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_customer   ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_restaurant ON orders(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_orders_rider      ON orders(rider_id);
CREATE INDEX IF NOT EXISTS idx_orders_status     ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  menu_item_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price INTEGER NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  PRIMARY KEY (order_id, menu_item_id)
);

CREATE TABLE IF NOT EXISTS order_status_history(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  note TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id);

CREATE TABLE IF NOT EXISTS cancellations(
  order_id TEXT PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
  reason TEXT NOT NULL,
  initiated_by TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  status_at_cancel TEXT NOT NULL,
  refund_rate INTEGER NOT NULL,
  fee INTEGER NOT NULL,
  refund_amount INTEGER NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refunds(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
  amount INTEGER NOT NULL CHECK (amount > 0),
  status TEXT NOT NULL CHECK (status IN ('pending','completed')),
  created_at TEXT NOT NULL,
  completed_at TEXT
);

-- Notifications & push tokens
CREATE TABLE IF NOT EXISTS notifications(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  order_id TEXT NOT NULL DEFAULT '',
  read_at TEXT,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);

CREATE TABLE IF NOT EXISTS push_tokens(
  token TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  platform TEXT NOT NULL CHECK (platform IN ('ios','android','web')),
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_push_tokens_user ON push_tokens(user_id);

-- Promotions
CREATE TABLE IF NOT EXISTS coupons(
  code TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('percentage','flat')),
  value INTEGER NOT NULL CHECK (value >= 0),
  min_order INTEGER NOT NULL DEFAULT 0,
  max_discount INTEGER NOT NULL DEFAULT 0,
  usage_limit INTEGER NOT NULL DEFAULT 0,
  used_count INTEGER NOT NULL DEFAULT 0,
  expires_at TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS points_ledger(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  delta INTEGER NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_user ON points_ledger(user_id);

CREATE TABLE IF NOT EXISTS advertisements(
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  image_url TEXT NOT NULL,
  link_url TEXT NOT NULL DEFAULT '',
  starts_at TEXT NOT NULL,
  ends_at TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0
);

-- Chat
CREATE TABLE IF NOT EXISTS chat_rooms(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages(
  id TEXT PRIMARY KEY,
  room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
  sender_id TEXT NOT NULL REFERENCES users(id),
  body TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, created_at);
`
	_, err := db.Exec(schema)
	return err
}

// seedUsers ensures one account per role exists (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-alice", "alice@quickbite.test", "Alice", "customer", "Passw0rd!"),
		mk("u-bob", "bob@quickbite.test", "Bob", "customer", "Passw0rd!"),
		mk("u-owner", "owner@quickbite.test", "Kim Owner", "owner", "Passw0rd!"),
		mk("u-rider", "rider@quickbite.test", "Park Rider", "rider", "Passw0rd!"),
		mk("u-admin", "admin@quickbite.test", "Admin", "admin", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	ts := now()
	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role,created_at)
			VALUES(?,?,?,?,?,?)
			ON CONFLICT DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM restaurants`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.L().Info("seed", zap.String("what", "demo restaurants, menu, coupons, ads"))

	ts := now()
	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO restaurants(id,owner_id,name,category,address,lat,lng,phone,min_order,delivery_fee,free_delivery_over,is_open,created_at) VALUES
	  ('r-chicken','u-owner','Crispy Chicken House','chicken','서울 마포구 월드컵북로 12',37.5563,126.9220,'02-300-1234',15000,3000,30000,1,?),
	  ('r-bunsik','u-owner','Bunsik Corner','korean','서울 마포구 양화로 45',37.5547,126.9190,'02-300-5678',8000,2000,0,1,?)`, ts, ts)

	tx.MustExec(`INSERT INTO menu_items(id,restaurant_id,name,description,price,available,sort_order) VALUES
	  ('m-fried','r-chicken','Fried Chicken','Whole chicken, original recipe',19000,1,1),
	  ('m-yangnyeom','r-chicken','Yangnyeom Chicken','Sweet and spicy glaze',20000,1,2),
	  ('m-cola','r-chicken','Cola 1.25L','',2500,1,3),
	  ('m-tteok','r-bunsik','Tteokbokki','Spicy rice cakes',5000,1,1),
	  ('m-gimbap','r-bunsik','Gimbap','',3500,1,2),
	  ('m-sundae','r-bunsik','Sundae','',6000,0,3)`)

	tx.MustExec(`INSERT INTO coupons(code,kind,value,min_order,max_discount,usage_limit,used_count,expires_at,active) VALUES
	  ('WELCOME10','percentage',10,10000,5000,0,0,'2099-12-31T23:59:59Z',1),
	  ('FLAT3000','flat',3000,20000,0,100,0,'2099-12-31T23:59:59Z',1)`)

	tx.MustExec(`INSERT INTO advertisements(id,title,image_url,link_url,starts_at,ends_at,active,sort_order) VALUES
	  ('ad-welcome','First order 10% off','/static/ads/welcome.png','/coupons/WELCOME10','2020-01-01T00:00:00Z','2099-12-31T23:59:59Z',1,1)`)

	return tx.Commit()
}
