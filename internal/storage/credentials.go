package storage

import (
	"context"
	"fmt"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/redis"
)

// CredentialStore keeps partner credentials in Redis hashes, one per partner
type CredentialStore struct {
	client *redis.Client
}

// NewCredentialStore creates a credential store
func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

func credentialKey(partner string) string {
	return config.CredentialKeyPrefix + partner
}

// Get returns the credentials for partner; empty when none are stored
func (s *CredentialStore) Get(ctx context.Context, partner string) (map[string]string, error) {
	creds, err := s.client.HGetAll(ctx, credentialKey(partner))
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials for %s: %w", partner, err)
	}
	return creds, nil
}

// Put replaces the credentials for partner
func (s *CredentialStore) Put(ctx context.Context, partner string, creds map[string]string) error {
	if err := s.client.HSetAll(ctx, credentialKey(partner), creds); err != nil {
		return fmt.Errorf("failed to store credentials for %s: %w", partner, err)
	}
	if err := s.client.SAdd(ctx, config.CredentialIndexKey, partner); err != nil {
		return fmt.Errorf("failed to index partner %s: %w", partner, err)
	}
	return nil
}

// Remove deletes individual credential fields for partner
func (s *CredentialStore) Remove(ctx context.Context, partner string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, credentialKey(partner), fields...); err != nil {
		return fmt.Errorf("failed to remove credentials for %s: %w", partner, err)
	}
	return nil
}

// Partners lists partners with stored credentials
func (s *CredentialStore) Partners(ctx context.Context) ([]string, error) {
	partners, err := s.client.SMembers(ctx, config.CredentialIndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	return partners, nil
}
