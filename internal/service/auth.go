package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/coursewise/videokb/internal/domain"
)

const apiKeyPrefix = "vkb_"

type OwnerRepository interface {
	Create(ctx context.Context, owner *domain.Owner) error
	GetByID(ctx context.Context, id string) (*domain.Owner, error)
	GetByName(ctx context.Context, name string) (*domain.Owner, error)
	List(ctx context.Context) ([]*domain.Owner, error)
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

type AuthService struct {
	ownerRepo OwnerRepository
	keyRepo   APIKeyRepository
	uuidGen   UUIDGenerator
}

func NewAuthService(ownerRepo OwnerRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		ownerRepo: ownerRepo,
		keyRepo:   keyRepo,
		uuidGen:   uuidGen,
	}
}

func (s *AuthService) CreateOwner(ctx context.Context, name string) (*domain.Owner, error) {
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner name is required")
	}

	owner := &domain.Owner{
		ID:        s.uuidGen.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	if err := s.ownerRepo.Create(ctx, owner); err != nil {
		return nil, err
	}

	return owner, nil
}

func (s *AuthService) CreateAPIKey(ctx context.Context, ownerID, name string) (string, error) {
	if ownerID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	_, err := s.ownerRepo.GetByID(ctx, ownerID)
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
		OwnerID:   ownerID,
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

func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, ownerID, name, token string) error {
	if ownerID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected vkb_<64 hex chars>)")
	}

	_, err := s.ownerRepo.GetByID(ctx, ownerID)
	if err != nil {
		return err
	}

	hash := hashToken(token)

	key := &domain.APIKey{
		ID:        s.uuidGen.NewString(),
		OwnerID:   ownerID,
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

	return key.OwnerID, nil
}

// GetAPIKeyByHash looks up a key by its plaintext token. Used by the
// bootstrap path to make key creation idempotent.
func (s *AuthService) GetAPIKeyByHash(ctx context.Context, token string) (*domain.APIKey, error) {
	return s.keyRepo.GetByHash(ctx, hashToken(token))
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	if ownerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}

	return s.keyRepo.GetByOwnerID(ctx, ownerID)
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
