package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/phillip/isaithondar-go/auth"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/store"
)

const minPasswordLength = 6

// AuthService registers users and exchanges credentials for tokens.
type AuthService struct {
	users  store.UserStore
	tokens *auth.TokenManager
	log    *zap.Logger
	now    Clock
}

func NewAuthService(users store.UserStore, tokens *auth.TokenManager, log *zap.Logger, now Clock) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log, now: orNow(now)}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

func (in RegisterInput) validate() error {
	var errs fieldErrors
	if n := length(in.Name); n < 2 || n > 100 {
		errs.add("name", "Name must be between 2 and 100 characters")
	}
	if !validEmail(in.Email) {
		errs.add("email", "Please provide a valid email")
	}
	if len(in.Password) < minPasswordLength {
		errs.add("password", "Password must be at least %d characters long", minPasswordLength)
	}
	return errs.err()
}

// Session is what login and registration hand back to the client.
type Session struct {
	User   *models.User
	Tokens *auth.TokenPair
}

// Register creates a member account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.now()
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.RoleMember,
		Phone:        in.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return &Session{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

// Refresh issues a new pair from a refresh token, picking up role changes.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.Validate(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}
	actor, err := claims.Actor()
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	user, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return user, nil
}
