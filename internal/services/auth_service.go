package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
	"quickbite/internal/repos"
	"quickbite/internal/tokens"
	"quickbite/internal/validate"
)

var ErrBadCreds = apperr.New(apperr.Unauthorized, "invalid email or password")

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *tokens.Issuer
}

type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email,max=100"`
	Name     string      `json:"name" validate:"required,max=40"`
	Phone    string      `json:"phone" validate:"omitempty,phone"`
	Password string      `json:"password" validate:"required,password"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=customer owner rider"`
}

type Session struct {
	SID       string       `json:"-"`
	User      *domain.User `json:"user"`
	Token     string       `json:"access_token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, apperr.Invalidf("invalid email")
	}
	name, ok := validate.Name(in.Name)
	if !ok {
		return nil, apperr.Invalidf("invalid name")
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		return nil, apperr.Invalidf("invalid phone")
	}
	if !validate.Password(in.Password) {
		return nil, apperr.Invalidf("password does not meet policy")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if role == domain.RoleAdmin || !role.Valid() {
		return nil, apperr.Invalidf("role %q cannot self-register", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:    uuid.NewString(),
		Email: strings.ToLower(email),
		Name:  name,
		Phone: phone,
		Hash:  string(hash),
		Role:  role,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and starts a fresh session: a new sid is bound to
// the user and prevSID, whatever it was, no longer authenticates.
func (s *AuthService) Login(ctx context.Context, prevSID, email, password string) (*Session, error) {
	u, err := s.Users.ByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	sid := uuid.NewString()
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	if prevSID != "" {
		if err := s.Users.UnbindSession(ctx, prevSID); err != nil {
			return nil, err
		}
	}
	tok, exp, err := s.Tokens.Sign(u)
	if err != nil {
		return nil, err
	}
	return &Session{SID: sid, User: u, Token: tok, ExpiresAt: exp}, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

// UserFromToken resolves a bearer token to a live user; a token whose user
// was removed or whose role changed is rejected.
func (s *AuthService) UserFromToken(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := s.Tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "bad token", err)
	}
	u, err := s.Users.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, "token subject no longer exists")
		}
		return nil, err
	}
	if u.Role != claims.Role {
		return nil, apperr.New(apperr.Unauthorized, "token role is stale")
	}
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperr.Invalidf("unknown role %q", role)
	}
	return s.Users.List(ctx, role)
}
