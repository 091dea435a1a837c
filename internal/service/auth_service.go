package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-identity-service/internal/model"
	"go-identity-service/internal/token"
	"go-identity-service/pkg/apierror"
)

const (
	RoleStudent  = "student"
	RoleEmployer = "employer"
	RoleAdmin    = "admin"
)

// Refresh tokens live for a fixed seven days; the access-token lifetime is
// the configurable one.
const refreshTokenTTL = 7 * 24 * time.Hour

const bcryptCost = 12

var seedRoles = []string{RoleStudent, RoleEmployer, RoleAdmin}

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	StoreRefreshToken(ctx context.Context, userID string, value string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID string, consumed string, next string, expiresAt time.Time) (bool, error)
	List(ctx context.Context) ([]model.Profile, error)
}

type RoleStore interface {
	EnsureExists(ctx context.Context, names []string) error
}

// AuthService owns the credential session lifecycle: issuing the initial
// token pair at login and rotating it on refresh. Refresh-token state lives
// on the user record, one slot per user.
type AuthService struct {
	codec *token.Codec
	users UserStore
	roles RoleStore
}

func NewAuthService(codec *token.Codec, users UserStore, roles RoleStore) *AuthService {
	return &AuthService{codec: codec, users: users, roles: roles}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.Profile, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)

	if req.FirstName == "" || req.LastName == "" {
		return model.Profile{}, apierror.New("BAD_REQUEST", "first and last name are required", "", http.StatusBadRequest)
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return model.Profile{}, apierror.New("BAD_REQUEST", "a valid email is required", "email", http.StatusBadRequest)
	}
	if len(req.Password) < 8 {
		return model.Profile{}, apierror.New("BAD_REQUEST", "password must be at least 8 characters", "password", http.StatusBadRequest)
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return model.Profile{}, err
	}
	if exists {
		return model.Profile{}, apierror.New("ALREADY_EXISTS", "email is already registered", req.Email, http.StatusBadRequest)
	}

	if err := s.roles.EnsureExists(ctx, seedRoles); err != nil {
		return model.Profile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return model.Profile{}, err
	}

	role := RoleEmployer
	if req.IsStudent {
		role = RoleStudent
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.Profile{}, err
	}

	return model.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}, nil
}

// Login verifies the credentials and issues the initial token pair. A missing
// account and a wrong password report the same error so callers cannot probe
// which emails are registered.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	accessToken, err := s.codec.EncodeAccess(user.ID, user.Email)
	if err != nil {
		return model.TokenPair{}, err
	}
	refreshToken, err := token.NewRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	expiresAt := time.Now().UTC().Add(refreshTokenTTL)
	if err := s.users.StoreRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{Token: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges an access/refresh pair for a freshly issued one. The
// presented access token may be expired but must pass every other check; the
// presented refresh token must match the stored slot exactly and be within
// its own lifetime. Rotation is conditional on the consumed value, so of two
// racing calls with the same pair at most one succeeds.
func (s *AuthService) Refresh(ctx context.Context, accessToken string, refreshToken string) (model.TokenPair, error) {
	claims, err := s.codec.DecodeExpired(accessToken)
	if err != nil {
		return model.TokenPair{}, model.ErrMalformedToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return model.TokenPair{}, model.ErrMalformedToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrSessionInvalid
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	// An empty slot means the user never logged in (or was force-logged-out);
	// it fails exactly like a mismatched token.
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return model.TokenPair{}, model.ErrSessionInvalid
	}
	if user.RefreshTokenExpiresAt == nil || time.Now().After(*user.RefreshTokenExpiresAt) {
		return model.TokenPair{}, model.ErrSessionInvalid
	}

	newAccessToken, err := s.codec.EncodeAccess(user.ID, user.Email)
	if err != nil {
		return model.TokenPair{}, err
	}
	newRefreshToken, err := token.NewRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	expiresAt := time.Now().UTC().Add(refreshTokenTTL)
	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, newRefreshToken, expiresAt)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !rotated {
		// A concurrent refresh consumed the token first.
		return model.TokenPair{}, model.ErrSessionInvalid
	}

	return model.TokenPair{Token: newAccessToken, RefreshToken: newRefreshToken}, nil
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AccessClaims, error) {
	return s.codec.Decode(tokenString)
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}, nil
}

// ResolveRole looks up the caller's role for endpoint gating. Role is not a
// token claim, so gating always reads the current store state.
func (s *AuthService) ResolveRole(ctx context.Context, userID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.Profile, error) {
	return s.users.List(ctx)
}
