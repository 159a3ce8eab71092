package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string, role models.UserRole) (*models.User, error)
	FindByPhone(ctx context.Context, phone string, role models.UserRole) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	ClaimPlaceholder(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type tokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) bool
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AuthService provides signup, login and session use cases.
type AuthService struct {
	repo      authUserRepository
	revoker   tokenRevoker
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, revoker tokenRevoker, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, revoker: revoker, validator: validate, logger: logger, config: config}
}

// Signup registers a new account. A pre-registered placeholder student with
// the same phone number is claimed instead of creating a duplicate; the
// signup payload wins on name/email/password.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}
	if req.Role == models.RoleTeacher && req.Email == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required for teachers")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user, err := s.claimOrCreate(ctx, req, string(hash))
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionSignup, req.IP, req.UserAgent)

	return s.issueSession(user)
}

func (s *AuthService) claimOrCreate(ctx context.Context, req models.SignupRequest, passwordHash string) (*models.User, error) {
	if req.Role == models.RoleStudent {
		existing, err := s.repo.FindByPhone(ctx, req.Phone, models.RoleStudent)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone")
		}
		if existing != nil {
			if !existing.IsPlaceholder() {
				return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
			}
			if req.Email != nil {
				if taken, err := s.repo.ExistsByEmail(ctx, *req.Email); err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
				} else if taken {
					return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
				}
			}
			existing.Name = req.Name
			existing.Email = req.Email
			existing.PasswordHash = passwordHash
			if err := s.repo.ClaimPlaceholder(ctx, existing); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					// Another signup claimed the stub first.
					return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim pre-registration")
			}
			return existing, nil
		}
	}

	if taken, err := s.repo.ExistsByPhone(ctx, req.Phone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
	}
	if req.Email != nil {
		if taken, err := s.repo.ExistsByEmail(ctx, *req.Email); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		} else if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: passwordHash,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Login authenticates by email (teachers) or phone (students).
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	var user *models.User
	var err error
	if req.Role == models.RoleTeacher {
		user, err = s.repo.FindByEmail(ctx, req.Identifier, models.RoleTeacher)
	} else {
		user, err = s.repo.FindByPhone(ctx, req.Identifier, models.RoleStudent)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if user.IsPlaceholder() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	s.audit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent)

	return s.issueSession(user)
}

// Logout revokes the presented token until its natural expiry. Without a
// revocation store the call still succeeds; the client clears its
// credentials either way.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, ip, userAgent string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if s.revoker != nil && claims.ID != "" && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.revoker.RevokeToken(ctx, claims.ID, ttl); err != nil {
			s.logger.Warn("failed to revoke token", zap.Error(err))
		}
	}
	s.audit(ctx, claims.UserID, models.AuditActionLogout, ip, userAgent)
	return nil
}

// Me returns the caller's canonical user record.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := userInfo(user)
	return &info, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if s.revoker != nil && s.revoker.IsTokenRevoked(ctx, claims.ID) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}

	return claims, nil
}

func (s *AuthService) issueSession(user *models.User) (*models.LoginResponse, error) {
	token, issuedAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.config.TokenExpiry.Seconds()),
		IssuedAt:  issuedAt,
		User:      userInfo(user),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)
	claims := &models.JWTClaims{
		UserID:  user.ID,
		Role:    user.Role,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}

func (s *AuthService) audit(ctx context.Context, userID, action, ip, userAgent string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.Error(err))
	}
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Phone:   user.Phone,
		Role:    user.Role,
		IsAdmin: user.IsAdmin,
	}
}
