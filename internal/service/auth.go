package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
)

const apiKeyPrefix = "gp_"

// APIKeyPageResult is one page of an API key listing.
type APIKeyPageResult struct {
	Items      []*domain.APIKey
	NextCursor string
	HasMore    bool
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.APIKey, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*APIKeyPageResult, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type AuthService struct {
	userRepo UserRepository
	keyRepo  APIKeyRepository
	uuidGen  UUIDGenerator
}

func NewAuthService(userRepo UserRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		keyRepo:  keyRepo,
		uuidGen:  uuidGen,
	}
}

func (s *AuthService) CreateUser(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "user email is required")
	}

	now := time.Now().UTC()
	user := domain.NewUser(s.uuidGen.NewString(), email, now)

	if err := domain.ValidateUser(user); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

// CreateAPIKey mints a new key for a user and returns the plain token. Only
// the hash is stored; the token is shown once.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	if userID == "" {
		return "", domain.NewDomainError(domain.ErrCodeInvalidArgument, "user ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeInvalidArgument, "API key name is required")
	}

	_, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	hash := hashToken(token)

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", err
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

// CreateAPIKeyWithToken registers a caller-supplied token, used for
// bootstrap provisioning where the key is configured out of band.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, userID, name, token string) error {
	if userID == "" {
		return domain.NewDomainError(domain.ErrCodeInvalidArgument, "user ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeInvalidArgument, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeInvalidArgument, "invalid API key format (expected gp_<64 hex chars>)")
	}

	_, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	hash := hashToken(token)

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
		RevokedAt: nil,
	}

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// GetAPIKeyByHash resolves a plaintext token to its stored key, if any.
func (s *AuthService) GetAPIKeyByHash(ctx context.Context, token string) (*domain.APIKey, error) {
	return s.keyRepo.GetByHash(ctx, hashToken(token))
}

// ValidateAPIKey resolves a bearer token to the owning user ID.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	hash := hashToken(token)

	key, err := s.keyRepo.GetByHash(ctx, hash)
	if err != nil {
		if err == domain.ErrAPIKeyNotFound {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	return key.UserID, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeInvalidArgument, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "user ID is required")
	}

	return s.keyRepo.ListByUser(ctx, userID)
}

func (s *AuthService) ListAPIKeysPage(ctx context.Context, userID, cursorStr string, limit int) (*APIKeyPageResult, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidArgument, "user ID is required")
	}

	cursor, _ := pagination.DecodeCursor(cursorStr)
	return s.keyRepo.ListByUserWithCursor(ctx, userID, cursor, limit)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
