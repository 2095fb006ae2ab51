package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.pilab.hu/mockauth/domain"
)

// AuthCodeRepository stores authorization codes in MongoDB.
type AuthCodeRepository struct {
	codes *mongo.Collection
}

// NewAuthCodeRepository creates a repository over the auth_codes collection.
func NewAuthCodeRepository(db *mongo.Database) *AuthCodeRepository {
	return &AuthCodeRepository{codes: db.Collection(CodesCollection)}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	if code.Code == "" {
		return errors.New("auth code value cannot be empty")
	}

	_, err := r.codes.InsertOne(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Error saving authorization code")
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("client_id", code.ClientID).Str("user_id", code.UserID).Msg("Authorization code saved")

	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) GetAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	var code domain.AuthCode
	err := r.codes.FindOne(ctx, bson.M{"code": codeValue}).Decode(&code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCodeNotFound
		}
		log.Error().Err(err).Msg("Error retrieving authorization code")
		return nil, fmt.Errorf("failed to retrieve authorization code: %w", err)
	}
	return &code, nil
}

// DeleteAuthCode implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) DeleteAuthCode(ctx context.Context, codeValue string) error {
	result, err := r.codes.DeleteOne(ctx, bson.M{"code": codeValue})
	if err != nil {
		return fmt.Errorf("failed to delete authorization code: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository.
func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.codes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}

var _ domain.AuthCodeRepository = (*AuthCodeRepository)(nil)
