package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.pilab.hu/mockauth/domain"
)

// ClientRepository stores registered OAuth2 clients in MongoDB.
type ClientRepository struct {
	clients *mongo.Collection
}

// NewClientRepository creates a repository over the clients collection.
func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{clients: db.Collection(ClientsCollection)}
}

// CreateClient implements domain.ClientRepository.
func (r *ClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	_, err := r.clients.InsertOne(ctx, client)
	if err != nil {
		var writeException mongo.WriteException
		if errors.As(err, &writeException) {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code == 11000 || writeError.Code == 11001 {
					return fmt.Errorf("client %s already exists: %w", client.ID, err)
				}
			}
		}
		log.Error().Err(err).Str("client_id", client.ID).Msg("Error creating client")
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient implements domain.ClientRepository.
func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("client %s not found", clientID)
		}
		log.Error().Err(err).Str("client_id", clientID).Msg("Error retrieving client")
		return nil, fmt.Errorf("failed to retrieve client: %w", err)
	}
	return &client, nil
}

var _ domain.ClientRepository = (*ClientRepository)(nil)
