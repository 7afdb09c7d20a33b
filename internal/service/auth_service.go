package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/repository"
	"notes-sync-client/pkg/hash"
	"notes-sync-client/pkg/jwt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AuthService struct {
	accounts          repository.AccountRepository
	cache             *cache.Cache
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	hashCost          int
	logger            zerolog.Logger
}

func NewAuthService(
	accounts repository.AccountRepository,
	c *cache.Cache,
	jwtSecret string,
	jwtExp, refreshExp time.Duration,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts:          accounts,
		cache:             c,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		hashCost:          hash.DefaultCost,
		logger:            logger.With().Str("component", "auth").Logger(),
	}
}

// SetHashCost lowers the bcrypt cost; tests use it to stay fast.
func (s *AuthService) SetHashCost(cost int) {
	s.hashCost = cost
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	emailExists, err := s.accounts.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if emailExists {
		return nil, ErrEmailTaken
	}

	usernameExists, err := s.accounts.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if usernameExists {
		return nil, ErrUsernameTaken
	}

	hashedPassword, err := hash.HashWithCost(req.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		User: domain.User{
			ID:        uuid.New().String(),
			Username:  req.Username,
			Email:     req.Email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hashedPassword,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info().Str("user_id", account.ID).Msg("account registered")
	user := account.User
	return &user, nil
}

// Login checks the credentials and stores the new session in the cache.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := hash.Compare(account.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := jwt.GenerateToken(account.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(account.ID, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	user := account.User
	if err := s.cache.StoreAuthToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.cache.StoreUserData(ctx, &user); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("logged in")
	return &domain.LoginResponse{
		User:         &user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(req.RefreshToken, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if err := s.cache.StoreAuthToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// CurrentSession returns the cached session, or ErrNotAuthenticated when
// nobody is logged in on this device.
func (s *AuthService) CurrentSession(ctx context.Context) (*domain.User, *jwt.Claims, error) {
	token := s.cache.GetAuthToken(ctx)
	if token == "" {
		return nil, nil, ErrNotAuthenticated
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, nil, ErrNotAuthenticated
	}
	user := s.cache.GetUserData(ctx)
	if user == nil || user.ID != claims.UserID {
		return nil, nil, ErrNotAuthenticated
	}
	return user, claims, nil
}

// Logout wipes the session cache: token, profile, notes and queues.
// Registered accounts live elsewhere and survive.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.cache.ClearAllData(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info().Msg("logged out")
	return nil
}
