package voiceRepository

import (
	"context"

	"eatech-voice/internal/entity"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		var err error
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		VoiceCommands: &voiceRepository{q: sqlExecutor, log: r.log},
		Preferences:   &preferencesRepository{q: sqlExecutor, log: r.log},
		Menu:          &menuRepository{q: sqlExecutor, log: r.log},
		Commit:        commitFunc,
		Rollback:      rollbackFunc,
	}, nil
}

type Client struct {
	VoiceCommands interface {
		CreateVoiceCommand(ctx context.Context, cmd entity.VoiceCommand) error
		GetVoiceCommandsByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]entity.VoiceCommand, int, error)
		DeleteVoiceCommandsByDeviceID(ctx context.Context, deviceID string) error
	}

	Preferences interface {
		GetPreferences(ctx context.Context, deviceID string) (entity.VoicePreferences, error)
		UpsertPreferences(ctx context.Context, prefs entity.VoicePreferences) error
	}

	Menu interface {
		FindMenuItem(ctx context.Context, restaurantID, name, language string) (entity.MenuItem, error)
	}

	Commit   func() error
	Rollback func() error
}

type voiceRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type preferencesRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type menuRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
