package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

type mockAuthRepo struct {
	users       []*models.User
	phoneExists bool
	emailExists bool
	createErr   error
	claimErr    error
	findErr     error

	created   []*models.User
	claimed   []*models.User
	auditLogs []*models.AuditLog
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string, role models.UserRole) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email && u.Role == role {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByPhone(_ context.Context, phone string, role models.UserRole) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Phone == phone && u.Role == role {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByPhone(context.Context, string) (bool, error) {
	return m.phoneExists, nil
}

func (m *mockAuthRepo) ExistsByEmail(context.Context, string) (bool, error) {
	return m.emailExists, nil
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "user-created"
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) ClaimPlaceholder(_ context.Context, user *models.User) error {
	if m.claimErr != nil {
		return m.claimErr
	}
	m.claimed = append(m.claimed, user)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockRevoker struct {
	revoked   map[string]bool
	revokeErr error
}

func (m *mockRevoker) RevokeToken(_ context.Context, tokenID string, _ time.Duration) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	if m.revoked == nil {
		m.revoked = map[string]bool{}
	}
	m.revoked[tokenID] = true
	return nil
}

func (m *mockRevoker) IsTokenRevoked(_ context.Context, tokenID string) bool {
	return m.revoked[tokenID]
}

func newAuthService(repo *mockAuthRepo, revoker tokenRevoker) *AuthService {
	return NewAuthService(repo, revoker, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "vocal-api-test",
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceSignupTeacher(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, nil)

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Kim Teacher",
		Email:    strPtr("teacher@example.com"),
		Phone:    "010-1234-5678",
		Role:     models.RoleTeacher,
		Password: "secret1",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.NotEmpty(t, repo.created[0].PasswordHash)
	assert.NotEqual(t, "secret1", repo.created[0].PasswordHash)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionSignup, repo.auditLogs[0].Action)
}

func TestAuthServiceSignupTeacherRequiresEmail(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, nil)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Kim Teacher",
		Phone:    "010-1234-5678",
		Role:     models.RoleTeacher,
		Password: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSignupClaimsPlaceholder(t *testing.T) {
	placeholder := &models.User{
		ID:    "stub-1",
		Name:  "사전등록 학생",
		Phone: "010-9999-0000",
		Role:  models.RoleStudent,
	}
	repo := &mockAuthRepo{users: []*models.User{placeholder}}
	svc := newAuthService(repo, nil)

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Lee Student",
		Phone:    "010-9999-0000",
		Role:     models.RoleStudent,
		Password: "secret1",
	})
	require.NoError(t, err)

	require.Len(t, repo.claimed, 1)
	assert.Empty(t, repo.created)
	assert.Equal(t, "stub-1", resp.User.ID)
	// The signup payload wins over the pre-registered name.
	assert.Equal(t, "Lee Student", repo.claimed[0].Name)
	assert.NotEmpty(t, repo.claimed[0].PasswordHash)
}

func TestAuthServiceSignupPhoneConflict(t *testing.T) {
	existing := &models.User{
		ID:           "user-1",
		Name:         "Lee Student",
		Phone:        "010-9999-0000",
		PasswordHash: "x",
		Role:         models.RoleStudent,
	}
	svc := newAuthService(&mockAuthRepo{users: []*models.User{existing}}, nil)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Another Student",
		Phone:    "010-9999-0000",
		Role:     models.RoleStudent,
		Password: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSignupClaimRace(t *testing.T) {
	placeholder := &models.User{
		ID:    "stub-1",
		Phone: "010-9999-0000",
		Role:  models.RoleStudent,
	}
	repo := &mockAuthRepo{users: []*models.User{placeholder}, claimErr: sql.ErrNoRows}
	svc := newAuthService(repo, nil)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Lee Student",
		Phone:    "010-9999-0000",
		Role:     models.RoleStudent,
		Password: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	user := &models.User{
		ID:           "user-1",
		Name:         "Lee Student",
		Phone:        "010-9999-0000",
		PasswordHash: hashPassword(t, "secret1"),
		Role:         models.RoleStudent,
	}
	repo := &mockAuthRepo{users: []*models.User{user}}
	svc := newAuthService(repo, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "010-9999-0000",
		Password:   "secret1",
		Role:       models.RoleStudent,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := &models.User{
		ID:           "user-1",
		Email:        strPtr("teacher@example.com"),
		Phone:        "010-1234-5678",
		PasswordHash: hashPassword(t, "secret1"),
		Role:         models.RoleTeacher,
	}
	svc := newAuthService(&mockAuthRepo{users: []*models.User{user}}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "teacher@example.com",
		Password:   "wrong",
		Role:       models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "nobody@example.com",
		Password:   "secret1",
		Role:       models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginPlaceholderRejected(t *testing.T) {
	placeholder := &models.User{
		ID:    "stub-1",
		Phone: "010-9999-0000",
		Role:  models.RoleStudent,
	}
	svc := newAuthService(&mockAuthRepo{users: []*models.User{placeholder}}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "010-9999-0000",
		Password:   "anything",
		Role:       models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	user := &models.User{
		ID:           "user-1",
		Name:         "Lee Student",
		Phone:        "010-9999-0000",
		PasswordHash: hashPassword(t, "secret1"),
		Role:         models.RoleStudent,
	}
	svc := newAuthService(&mockAuthRepo{users: []*models.User{user}}, &mockRevoker{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "010-9999-0000",
		Password:   "secret1",
		Role:       models.RoleStudent,
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "vocal-api-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, nil)

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	user := &models.User{
		ID:           "user-1",
		Phone:        "010-9999-0000",
		PasswordHash: hashPassword(t, "secret1"),
		Role:         models.RoleStudent,
	}
	repo := &mockAuthRepo{users: []*models.User{user}}
	revoker := &mockRevoker{}
	svc := newAuthService(repo, revoker)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Identifier: "010-9999-0000",
		Password:   "secret1",
		Role:       models.RoleStudent,
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims, "127.0.0.1", "test-agent"))
	assert.True(t, revoker.revoked[claims.ID])

	_, err = svc.ValidateToken(context.Background(), resp.Token)
	require.Error(t, err)
	assert.Equal(t, "session expired", appErrors.FromError(err).Message)
}

func TestAuthServiceMe(t *testing.T) {
	user := &models.User{
		ID:           "user-1",
		Name:         "Lee Student",
		Phone:        "010-9999-0000",
		PasswordHash: "x",
		Role:         models.RoleStudent,
	}
	svc := newAuthService(&mockAuthRepo{users: []*models.User{user}}, nil)

	info, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Lee Student", info.Name)

	_, err = svc.Me(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
