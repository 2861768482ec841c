package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

// SignUpInput is the registration payload.
type SignUpInput struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Number   string `json:"number"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserService handles registration and sign-in.
type UserService struct {
	users         repository.UserRepository
	authenticator *auth.Authenticator
}

func NewUserService(users repository.UserRepository, authenticator *auth.Authenticator) *UserService {
	return &UserService{users: users, authenticator: authenticator}
}

// SignUp registers a new account. Role defaults to buyer.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*entity.User, error) {
	if in.FullName == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validationf("full name, username, email and password are required")
	}

	role := entity.Role(in.Role)
	switch role {
	case "":
		role = entity.RoleBuyer
	case entity.RoleBuyer, entity.RoleSeller:
	default:
		return nil, apperr.Validationf("invalid role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	user := &entity.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		Number:       in.Number,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("User registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// SignIn validates credentials and issues a bearer token.
func (s *UserService) SignIn(ctx context.Context, email, password string) (string, *entity.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}

	token, err := s.authenticator.IssueToken(user.ID, user.Role)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindInternal, "failed to issue token", err)
	}
	return token, user, nil
}
