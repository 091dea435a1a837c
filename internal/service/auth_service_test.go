package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-identity-service/internal/model"
	"go-identity-service/internal/token"
)

const (
	testIssuer   = "identity-service"
	testAudience = "api-platform"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type fakeUserStore struct {
	mu          sync.Mutex
	users       map[string]model.User
	tokenWrites int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}}
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) StoreRefreshToken(_ context.Context, userID string, value string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}

	user.RefreshToken = value
	user.RefreshTokenExpiresAt = &expiresAt
	f.users[userID] = user
	f.tokenWrites++
	return nil
}

func (f *fakeUserStore) RotateRefreshToken(_ context.Context, userID string, consumed string, next string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok || user.RefreshToken != consumed {
		return false, nil
	}

	user.RefreshToken = next
	user.RefreshTokenExpiresAt = &expiresAt
	f.users[userID] = user
	f.tokenWrites++
	return true, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profiles := make([]model.Profile, 0, len(f.users))
	for _, user := range f.users {
		profiles = append(profiles, model.Profile{ID: user.ID, Email: user.Email, Role: user.Role})
	}
	return profiles, nil
}

type fakeRoleStore struct {
	mu      sync.Mutex
	ensured []string
}

func (f *fakeRoleStore) EnsureExists(_ context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ensured = append(f.ensured, names...)
	return nil
}

func newTestService(t *testing.T) (*AuthService, *fakeUserStore, *fakeRoleStore) {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		Issuer:         testIssuer,
		Audience:       testAudience,
		Secret:         testSecret,
		AccessTokenTTL: 60 * time.Minute,
	})
	require.NoError(t, err)

	users := newFakeUserStore()
	roles := &fakeRoleStore{}
	return NewAuthService(codec, users, roles), users, roles
}

func seedUser(t *testing.T, store *fakeUserStore, email string, password string) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: string(hash),
		Role:         RoleStudent,
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("issues a token pair and writes the refresh slot once", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user := seedUser(t, store, "ada@example.com", "correct horse")

		pair, err := service.Login(context.Background(), "ada@example.com", "correct horse")
		require.NoError(t, err)
		require.NotEmpty(t, pair.Token)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, 1, store.tokenWrites)

		stored, err := store.FindByID(context.Background(), user.ID)
		require.NoError(t, err)
		require.Equal(t, pair.RefreshToken, stored.RefreshToken)
		require.NotNil(t, stored.RefreshTokenExpiresAt)

		claims, err := service.ValidateAccessToken(pair.Token)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, user.Email, claims.Email)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		service, store, _ := newTestService(t)
		seedUser(t, store, "ada@example.com", "correct horse")

		_, wrongPassword := service.Login(context.Background(), "ada@example.com", "battery staple")
		require.ErrorIs(t, wrongPassword, model.ErrInvalidCredentials)

		_, unknownEmail := service.Login(context.Background(), "nobody@example.com", "battery staple")
		require.ErrorIs(t, unknownEmail, model.ErrInvalidCredentials)

		require.Equal(t, wrongPassword, unknownEmail)
		require.Zero(t, store.tokenWrites)
	})

	t.Run("second login replaces the refresh slot", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user := seedUser(t, store, "ada@example.com", "correct horse")

		first, err := service.Login(context.Background(), "ada@example.com", "correct horse")
		require.NoError(t, err)
		second, err := service.Login(context.Background(), "ada@example.com", "correct horse")
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		stored, err := store.FindByID(context.Background(), user.ID)
		require.NoError(t, err)
		require.Equal(t, second.RefreshToken, stored.RefreshToken)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	login := func(t *testing.T, service *AuthService, store *fakeUserStore) (model.User, model.TokenPair) {
		t.Helper()
		user := seedUser(t, store, "ada@example.com", "correct horse")
		pair, err := service.Login(context.Background(), "ada@example.com", "correct horse")
		require.NoError(t, err)
		return user, pair
	}

	t.Run("rotates the pair and invalidates the consumed token", func(t *testing.T) {
		service, store, _ := newTestService(t)
		_, pair := login(t, service, store)

		rotated, err := service.Refresh(context.Background(), pair.Token, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
		require.NotEqual(t, pair.Token, rotated.Token)

		// The consumed refresh token must be dead.
		_, err = service.Refresh(context.Background(), pair.Token, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrSessionInvalid)

		// The rotated one keeps working.
		again, err := service.Refresh(context.Background(), rotated.Token, rotated.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, again.RefreshToken)
	})

	t.Run("accepts an expired access token", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user, pair := login(t, service, store)

		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   user.ID,
			"email": user.Email,
			"jti":   uuid.NewString(),
			"iss":   testIssuer,
			"aud":   testAudience,
			"iat":   time.Now().Add(-2 * time.Hour).Unix(),
			"exp":   time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(expired)
		require.ErrorIs(t, err, model.ErrInvalidToken)

		rotated, err := service.Refresh(context.Background(), expired, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, rotated.Token)
	})

	t.Run("rejects tampered access tokens regardless of refresh token", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user, pair := login(t, service, store)

		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   user.ID,
			"email": user.Email,
			"jti":   uuid.NewString(),
			"iss":   testIssuer,
			"aud":   testAudience,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), foreign, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrMalformedToken)

		_, err = service.Refresh(context.Background(), "", pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrMalformedToken)
	})

	t.Run("rejects a subject that is not a user identifier", func(t *testing.T) {
		service, store, _ := newTestService(t)
		_, pair := login(t, service, store)

		bogus, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   "not-a-uuid",
			"email": "ada@example.com",
			"jti":   uuid.NewString(),
			"iss":   testIssuer,
			"aud":   testAudience,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), bogus, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrMalformedToken)
	})

	t.Run("unknown subject fails as session invalid", func(t *testing.T) {
		service, store, _ := newTestService(t)
		_, pair := login(t, service, store)

		ghost, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   uuid.NewString(),
			"email": "ghost@example.com",
			"jti":   uuid.NewString(),
			"iss":   testIssuer,
			"aud":   testAudience,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), ghost, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrSessionInvalid)
	})

	t.Run("mismatched refresh token fails", func(t *testing.T) {
		service, store, _ := newTestService(t)
		_, pair := login(t, service, store)

		other, err := token.NewRefreshToken()
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), pair.Token, other)
		require.ErrorIs(t, err, model.ErrSessionInvalid)
	})

	t.Run("empty stored slot fails like a mismatch", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user := seedUser(t, store, "ada@example.com", "correct horse")

		accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   user.ID,
			"email": user.Email,
			"jti":   uuid.NewString(),
			"iss":   testIssuer,
			"aud":   testAudience,
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		presented, err := token.NewRefreshToken()
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), accessToken, presented)
		require.ErrorIs(t, err, model.ErrSessionInvalid)
	})

	t.Run("expired stored refresh token fails despite matching value", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user, pair := login(t, service, store)

		stale := time.Now().Add(-10 * time.Second)
		stored := store.users[user.ID]
		stored.RefreshTokenExpiresAt = &stale
		store.users[user.ID] = stored

		_, err := service.Refresh(context.Background(), pair.Token, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrSessionInvalid)
	})

	t.Run("losing a rotation race fails as session invalid", func(t *testing.T) {
		service, store, _ := newTestService(t)
		user, pair := login(t, service, store)

		// Another request rotates the slot between the read and the write.
		winner, err := token.NewRefreshToken()
		require.NoError(t, err)
		future := time.Now().Add(time.Hour)

		rotated, err := store.RotateRefreshToken(context.Background(), user.ID, pair.RefreshToken, winner, future)
		require.NoError(t, err)
		require.True(t, rotated)

		_, err = service.Refresh(context.Background(), pair.Token, pair.RefreshToken)
		require.ErrorIs(t, err, model.ErrSessionInvalid)
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates a student and seeds the role set", func(t *testing.T) {
		service, store, roles := newTestService(t)

		profile, err := service.Register(context.Background(), model.RegisterRequest{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Password:  "correct horse",
			IsStudent: true,
		})
		require.NoError(t, err)
		require.Equal(t, RoleStudent, profile.Role)
		require.Equal(t, seedRoles, roles.ensured)

		created, err := store.FindByEmail(context.Background(), "ada@example.com")
		require.NoError(t, err)
		require.NotEqual(t, "correct horse", created.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")))
	})

	t.Run("assigns employer when not a student", func(t *testing.T) {
		service, _, _ := newTestService(t)

		profile, err := service.Register(context.Background(), model.RegisterRequest{
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     "grace@example.com",
			Password:  "correct horse",
		})
		require.NoError(t, err)
		require.Equal(t, RoleEmployer, profile.Role)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		service, store, _ := newTestService(t)
		seedUser(t, store, "ada@example.com", "correct horse")

		_, err := service.Register(context.Background(), model.RegisterRequest{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Password:  "correct horse",
		})
		require.Error(t, err)
	})

	t.Run("rejects incomplete input", func(t *testing.T) {
		service, _, _ := newTestService(t)

		for name, req := range map[string]model.RegisterRequest{
			"missing names":  {Email: "x@example.com", Password: "correct horse"},
			"missing email":  {FirstName: "Ada", LastName: "Lovelace", Password: "correct horse"},
			"invalid email":  {FirstName: "Ada", LastName: "Lovelace", Email: "nope", Password: "correct horse"},
			"short password": {FirstName: "Ada", LastName: "Lovelace", Email: "x@example.com", Password: "short"},
		} {
			_, err := service.Register(context.Background(), req)
			require.Error(t, err, name)
		}
	})
}

func TestResolveRole(t *testing.T) {
	t.Parallel()

	service, store, _ := newTestService(t)
	user := seedUser(t, store, "ada@example.com", "correct horse")

	role, err := service.ResolveRole(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, RoleStudent, role)

	_, err = service.ResolveRole(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, model.ErrUserNotFound)
}
