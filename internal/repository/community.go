package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"mimicbot/internal/models"
)

type CommunityRepository interface {
	UpsertCommunity(id string) error
	GetCommunityByID(id string) (*models.Community, error)
}

type communityRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCommunityRepository(db *sqlx.DB, logger *zap.Logger) CommunityRepository {
	return &communityRepository{db: db, logger: logger}
}

func (r *communityRepository) UpsertCommunity(id string) error {
	query := `INSERT INTO communities (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *communityRepository) GetCommunityByID(id string) (*models.Community, error) {
	var community models.Community
	query := `SELECT id, created_at FROM communities WHERE id = $1`
	err := r.db.Get(&community, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &community, nil
}
