package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmint-service/internal/domain"
)

// CredentialRepository stores issued credentials in nft_metadata, keyed by
// (token_id, kind). Saves are idempotent via ON CONFLICT DO NOTHING so a
// retried pipeline never duplicates or overwrites a credential.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

func (r *CredentialRepository) Get(ctx context.Context, kind domain.CredentialKind, tokenID string) (domain.Credential, error) {
	credential := domain.Credential{TokenID: tokenID, Kind: kind}
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT quiz_id, rarity, image, json_data, created_at
		 FROM nft_metadata WHERE token_id=$1 AND kind=$2`,
		tokenID, kind).Scan(&credential.QuizID, &credential.Rarity, &credential.Image, &doc, &credential.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, domain.ErrMetadataNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("load credential: %w", err)
	}
	if err := json.Unmarshal(doc, &credential.Metadata); err != nil {
		return domain.Credential{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return credential, nil
}

func (r *CredentialRepository) Save(ctx context.Context, credential domain.Credential) error {
	doc, err := json.Marshal(credential.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO nft_metadata (token_id, kind, quiz_id, rarity, image, json_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (token_id, kind) DO NOTHING`,
		credential.TokenID, credential.Kind, credential.QuizID, credential.Rarity, credential.Image, doc, credential.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}
