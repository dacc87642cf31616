package voiceRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eatech-voice/internal/api/voice"
	"eatech-voice/internal/entity"
	contextPkg "eatech-voice/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type VoicePreferencesDB struct {
	DeviceID     sql.NullString `db:"device_id"`
	Version      sql.NullInt64  `db:"version"`
	Data         []byte         `db:"data"`
	LastModified time.Time      `db:"last_modified"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *preferencesRepository) GetPreferences(ctx context.Context, deviceID string) (entity.VoicePreferences, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var prefsDB VoicePreferencesDB

	query, args, err := sqlx.Named(queryGetPreferences, map[string]interface{}{
		"device_id": deviceID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetPreferences named query preparation err")
		return entity.VoicePreferences{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&prefsDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.VoicePreferences{}, voice.ErrPreferencesNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"device_id":  deviceID,
			"error":      err.Error(),
		}).Error("GetPreferences execution err")
		return entity.VoicePreferences{}, err
	}

	return entity.VoicePreferences{
		DeviceID:     prefsDB.DeviceID.String,
		Version:      int(prefsDB.Version.Int64),
		Data:         prefsDB.Data,
		LastModified: prefsDB.LastModified,
		UpdatedAt:    prefsDB.UpdatedAt,
	}, nil
}

// UpsertPreferences stores the record unless the stored copy is newer.
func (r *preferencesRepository) UpsertPreferences(ctx context.Context, prefs entity.VoicePreferences) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"device_id":     prefs.DeviceID,
		"version":       prefs.Version,
		"data":          string(prefs.Data),
		"last_modified": prefs.LastModified,
		"updated_at":    prefs.UpdatedAt,
	}

	query, args, err := sqlx.Named(queryUpsertPreferences, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertPreferences named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"device_id":  prefs.DeviceID,
			"error":      err.Error(),
		}).Error("UpsertPreferences execution err")
		return err
	}
	return nil
}
