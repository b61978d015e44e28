package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/northcraft/cabinetry-backend/internal/users"
	pkgAuth "github.com/northcraft/cabinetry-backend/pkg/auth"
	"github.com/northcraft/cabinetry-backend/pkg/auth/session"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/db/models"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
	"github.com/northcraft/cabinetry-backend/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "cabinetry", ExpirationMinutes: 30}

func TestServiceLoginCustomer(t *testing.T) {
	user := newUser(t, "casey@example.com", "Secret12345", enums.UserRoleCustomer)
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "Casey@Example.com", Password: "Secret12345"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleCustomer || claims.UserID != user.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if sessions.generated[claims.ID] != user.ID {
		t.Fatalf("expected refresh session keyed by jti")
	}
	if resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.ExpiresIn != 1800 {
		t.Fatalf("expected expires_in 1800, got %d", resp.ExpiresIn)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := newUser(t, "casey@example.com", "Secret12345", enums.UserRoleCustomer)
	svc, _ := buildTestService(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong123456"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "Secret12345"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}

	user.IsActive = false
	_, err = svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "Secret12345"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive user, got %v", err)
	}
}

func TestServiceAdminLoginRequiresAdminRole(t *testing.T) {
	customer := newUser(t, "casey@example.com", "Secret12345", enums.UserRoleCustomer)
	svc, _ := buildTestService(t, customer)
	if _, err := svc.AdminLogin(context.Background(), LoginRequest{Email: customer.Email, Password: "Secret12345"}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for customer admin login, got %v", err)
	}

	admin := newUser(t, "ops@example.com", "Secret12345", enums.UserRoleAdmin)
	svc, _ = buildTestService(t, admin)
	resp, err := svc.AdminLogin(context.Background(), LoginRequest{Email: admin.Email, Password: "Secret12345"})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if resp.User.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", resp.User.Role)
	}
}

func TestServiceRegisterCreatesCustomerAndLogsIn(t *testing.T) {
	svc, sessions := buildTestService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "New@Example.com",
		Password:  "Secret12345",
		FirstName: " Jamie ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User.Email != "new@example.com" || resp.User.FirstName != "Jamie" {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if resp.User.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role")
	}
	if len(sessions.generated) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.generated))
	}

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "new@example.com", Password: "Secret12345", FirstName: "J"})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "weak@example.com", Password: "password", FirstName: "J"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for weak password, got %v", err)
	}
}

func TestServiceAdminRegisterGate(t *testing.T) {
	svc, _ := buildTestService(t)
	_, err := svc.AdminRegister(context.Background(), AdminRegisterRequest{Email: "a@example.com", Password: "Secret12345", FirstName: "A"})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden when disabled, got %v", err)
	}

	repo := newStubUserRepo()
	svc, err = NewService(ServiceParams{
		UserRepo:           repo,
		SessionManager:     newStubSessionManager(),
		JWTConfig:          testJWT,
		AllowAdminRegister: true,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	dto, err := svc.AdminRegister(context.Background(), AdminRegisterRequest{Email: "a@example.com", Password: "Secret12345", FirstName: "A"})
	if err != nil {
		t.Fatalf("admin register: %v", err)
	}
	if dto.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role, got %s", dto.Role)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := newUser(t, "casey@example.com", "Secret12345", enums.UserRoleCustomer)
	svc, sessions := buildTestService(t, user)

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "Secret12345"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	oldClaims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	pair, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	newClaims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if newClaims.ID == oldClaims.ID {
		t.Fatalf("expected a new jti after refresh")
	}
	if _, ok := sessions.generated[oldClaims.ID]; ok {
		t.Fatalf("expected old session to be rotated out")
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: "wrong"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for bad refresh token, got %v", err)
	}
}

func TestServiceLogoutRevokes(t *testing.T) {
	user := newUser(t, "casey@example.com", "Secret12345", enums.UserRoleCustomer)
	svc, sessions := buildTestService(t, user)
	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "Secret12345"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.generated[claims.ID]; ok {
		t.Fatalf("expected session revoked")
	}
}

func buildTestService(t *testing.T, seed ...*models.User) (Service, *stubSessionManager) {
	t.Helper()
	repo := newStubUserRepo(seed...)
	sessions := newStubSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sessions
}

func newUser(t *testing.T, email, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		Role:         role,
		IsActive:     true,
	}
}

type stubUserRepo struct {
	byEmail map[string]*models.User
}

func newStubUserRepo(seed ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byEmail: map[string]*models.User{}}
	for _, u := range seed {
		repo.byEmail[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	for _, u := range s.byEmail {
		if u.ID == id {
			u.LastLoginAt = &at
		}
	}
	return nil
}

type stubSessionManager struct {
	generated map[string]uuid.UUID
	tokens    map[string]string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{generated: map[string]uuid.UUID{}, tokens: map[string]string{}}
}

func (s *stubSessionManager) Generate(_ context.Context, userID uuid.UUID, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.generated[accessID] = userID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if s.generated[oldAccessID] != userID || s.tokens[oldAccessID] != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.generated, oldAccessID)
	delete(s.tokens, oldAccessID)
	newID := session.NewAccessID()
	token, _ := s.Generate(ctx, userID, newID)
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.generated, accessID)
	delete(s.tokens, accessID)
	return nil
}
