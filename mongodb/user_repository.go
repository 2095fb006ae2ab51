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

// UserRepository stores users in MongoDB.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates a repository over the users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: db.Collection(UsersCollection)}
}

// CreateUser implements domain.UserRepository.
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := r.users.InsertOne(ctx, user)
	if err != nil {
		var writeException mongo.WriteException
		if errors.As(err, &writeException) {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code == 11000 || writeError.Code == 11001 {
					return fmt.Errorf("username %s already taken: %w", user.Username, err)
				}
			}
		}
		log.Error().Err(err).Str("username", user.Username).Msg("Error creating user")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID implements domain.UserRepository.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByUsername implements domain.UserRepository.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("user not found")
		}
		log.Error().Err(err).Msg("Error retrieving user")
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return &user, nil
}

// UpdateUser implements domain.UserRepository.
func (r *UserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Error updating user")
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s not found to update", user.ID)
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
