package airplay

import (
	"context"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay/storage"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// ChannelWriter is implemented by stores that can register channels. Channel
// management lives elsewhere; this exists for local setups and tests.
type ChannelWriter interface {
	CreateChannel(ctx context.Context, ch *models.Channel) error
	ListChannels(ctx context.Context) ([]models.Channel, error)
}

// storageAdapter adapts storage.DBClient to the Storage interface.
type storageAdapter struct {
	*storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{DBClient: db}, nil
}

func (s *storageAdapter) BackfillSong(ctx context.Context, id string, patch SongPatch) error {
	return s.DBClient.BackfillSong(ctx, id, patch.ISRC, patch.Fingerprint)
}

var (
	_ Storage       = (*storageAdapter)(nil)
	_ ChannelWriter = (*storageAdapter)(nil)
)
