package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"mimicbot/internal/models"
)

type ChannelRepository interface {
	GetChannelByID(id string) (*models.Channel, error)
	UpsertChannel(channel *models.Channel) error
	SetListen(id, communityID string, listen bool) error
	FindListeningChannels(communityID string) ([]*models.Channel, error)
	FindChannels(communityID string) ([]*models.Channel, error)
}

type channelRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChannelRepository(db *sqlx.DB, logger *zap.Logger) ChannelRepository {
	return &channelRepository{db: db, logger: logger}
}

func (r *channelRepository) GetChannelByID(id string) (*models.Channel, error) {
	var channel models.Channel
	query := `SELECT id, community_id, listen FROM channels WHERE id = $1`
	err := r.db.Get(&channel, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Channel not found
		}
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) UpsertChannel(channel *models.Channel) error {
	query := `INSERT INTO channels (id, community_id, listen) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(query, channel.ID, channel.CommunityID, channel.Listen)
	return err
}

func (r *channelRepository) SetListen(id, communityID string, listen bool) error {
	query := `INSERT INTO channels (id, community_id, listen) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO UPDATE SET listen = EXCLUDED.listen`
	_, err := r.db.Exec(query, id, communityID, listen)
	return err
}

func (r *channelRepository) FindListeningChannels(communityID string) ([]*models.Channel, error) {
	var channels []*models.Channel
	query := `SELECT id, community_id, listen FROM channels WHERE community_id = $1 AND listen = true ORDER BY id`
	err := r.db.Select(&channels, query, communityID)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) FindChannels(communityID string) ([]*models.Channel, error) {
	var channels []*models.Channel
	query := `SELECT id, community_id, listen FROM channels WHERE community_id = $1 ORDER BY id`
	err := r.db.Select(&channels, query, communityID)
	if err != nil {
		return nil, err
	}
	return channels, nil
}
