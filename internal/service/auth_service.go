package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo         repository.UserRepositoryInterface
	refreshTokenRepo repository.RefreshTokenRepositoryInterface
	jwtSecret        []byte
	accessTTL        time.Duration
	refreshTTL       time.Duration
	passwordMin      int
}

func NewAuthService(
	userRepo repository.UserRepositoryInterface,
	refreshTokenRepo repository.RefreshTokenRepositoryInterface,
	jwtSecret string,
	accessTTL, refreshTTL time.Duration,
	passwordMinLength int,
) *AuthService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        []byte(jwtSecret),
		accessTTL:        accessTTL,
		refreshTTL:       refreshTTL,
		passwordMin:      validation.PasswordMinLength(passwordMinLength),
	}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthSession struct {
	AccessToken      string              `json:"accessToken"`
	RefreshToken     string              `json:"refreshToken"`
	AccessExpiresAt  time.Time           `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time           `json:"refreshExpiresAt"`
	User             models.UserResponse `json:"user"`
}

// Claims is the access token payload. UserID is the owner namespace used by
// every link and device operation.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(input RegisterInput) (*AuthSession, error) {
	email := validation.NormalizeEmail(input.Email)
	if !validation.ValidateEmail(email) {
		return nil, apperr.Validation("invalid email")
	}
	if !validation.ValidatePassword(input.Password, s.passwordMin) {
		return nil, apperr.Validation("password is too short")
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, apperr.Conflict("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, apperr.Storage("create user", err)
	}

	return s.issueSession(user)
}

func (s *AuthService) Login(input LoginInput) (*AuthSession, error) {
	user, err := s.userRepo.FindByEmail(validation.NormalizeEmail(input.Email))
	if err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.issueSession(user)
}

// RefreshSession rotates the refresh token: the presented one is revoked and a
// new pair is issued.
func (s *AuthService) RefreshSession(rawRefreshToken string) (*AuthSession, error) {
	if rawRefreshToken == "" {
		return nil, apperr.Unauthorized("missing refresh token")
	}

	hash := HashToken(rawRefreshToken)
	stored, err := s.refreshTokenRepo.FindValidByHash(hash)
	if err != nil || stored.IsRevoked() {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	user, err := s.userRepo.FindByID(stored.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}

	revoked, err := s.refreshTokenRepo.RevokeByHash(hash)
	if err != nil {
		return nil, apperr.Storage("revoke refresh token", err)
	}
	if !revoked {
		// Another refresh rotated this token first.
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	return s.issueSession(user)
}

// Logout revokes the refresh token. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	if _, err := s.refreshTokenRepo.RevokeByHash(HashToken(rawRefreshToken)); err != nil {
		return apperr.Storage("revoke refresh token", err)
	}
	return nil
}

// ParseAccessToken validates an HS256 access token and returns its claims.
func (s *AuthService) ParseAccessToken(tokenString string) (*Claims, error) {
	return ParseAccessToken(tokenString, s.jwtSecret)
}

func ParseAccessToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, apperr.Unauthorized("invalid token")
	}
	return claims, nil
}

func (s *AuthService) issueSession(user *models.User) (*AuthSession, error) {
	if len(s.jwtSecret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	now := time.Now()

	accessExp := now.Add(s.accessTTL)
	accessToken, err := s.generateAccessToken(user, now, accessExp)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExp := now.Add(s.refreshTTL)
	if err := s.refreshTokenRepo.Create(&models.RefreshToken{
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, apperr.Storage("store refresh token", err)
	}

	return &AuthSession{
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		User:             user.ToResponse(),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User, now, exp time.Time) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// generateRefreshToken returns the raw token handed to the client and the hash
// that is stored.
func generateRefreshToken() (string, string, error) {
	raw, err := randomHex(32)
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}
