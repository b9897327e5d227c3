package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/repository"
	"github.com/vedran77/dreamnest/internal/session"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email/username or password")
)

// dummyHash is compared against when the identifier matches nobody, so a miss
// costs about as much as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("dreamnest-dummy-password"), bcrypt.DefaultCost)
	return h
})

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
	cost     int
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenManager) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthResponse flattens the user next to the session token.
type AuthResponse struct {
	*domain.User
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	existing, err = s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return s.respond(user)
}

// Login accepts either the username or the email as identifier. An unknown
// identifier returns ErrUserNotFound and a wrong password ErrInvalidCredentials;
// callers must not expose the difference.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	identifier := strings.TrimSpace(input.Identifier)
	// Usernames can't contain '@', so anything that does is an email.
	if strings.Contains(identifier, "@") {
		identifier = normalizeEmail(identifier)
	}

	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		bcrypt.CompareHashAndPassword(dummyHash(), []byte(input.Password))
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.respond(user)
}

// Authenticate resolves a bearer token into a session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	return s.tokens.Validate(ctx, token)
}

// Refresh revokes the current token and issues a new one for the same user.
func (s *AuthService) Refresh(ctx context.Context, sess *session.Session) (*TokenResponse, error) {
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.tokens.Revoke(ctx, sess); err != nil {
		return nil, fmt.Errorf("revoking token: %w", err)
	}

	token, next, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, ExpiresAt: next.ExpiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	if err := s.tokens.Revoke(ctx, sess); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// normalizeEmail lower-cases emails so lookups and the unique index ignore case.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) respond(user *domain.User) (*AuthResponse, error) {
	token, sess, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	return &AuthResponse{User: user, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}
