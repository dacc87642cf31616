package voiceRepository

import (
	"context"
	"database/sql"
	"time"

	"eatech-voice/internal/entity"
	contextPkg "eatech-voice/pkg/context"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type VoiceCommandDB struct {
	ID         sql.NullString  `db:"id"`
	DeviceID   sql.NullString  `db:"device_id"`
	Transcript sql.NullString  `db:"transcript"`
	Normalized sql.NullString  `db:"normalized"`
	Language   sql.NullString  `db:"language"`
	Intent     sql.NullString  `db:"intent"`
	Confidence sql.NullFloat64 `db:"confidence"`
	Accepted   sql.NullBool    `db:"accepted"`
	Success    sql.NullBool    `db:"success"`
	Response   sql.NullString  `db:"response"`
	AudioURL   sql.NullString  `db:"audio_url"`
	Metadata   sql.NullString  `db:"metadata"`
	DurationMs sql.NullInt64   `db:"duration_ms"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r *voiceRepository) CreateVoiceCommand(ctx context.Context, cmd entity.VoiceCommand) error {
	requestID := contextPkg.GetRequestID(ctx)

	metadataJSON, err := jsoniter.Marshal(cmd.Metadata)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal metadata")
		return err
	}

	argsKV := map[string]interface{}{
		"id":          cmd.ID,
		"device_id":   cmd.DeviceID,
		"transcript":  cmd.Transcript,
		"normalized":  cmd.Normalized,
		"language":    cmd.Language,
		"intent":      nullString(cmd.Intent),
		"confidence":  cmd.Confidence,
		"accepted":    cmd.Accepted,
		"success":     cmd.Success,
		"response":    cmd.Response,
		"audio_url":   nullString(cmd.AudioURL),
		"metadata":    string(metadataJSON),
		"duration_ms": cmd.DurationMs,
		"created_at":  cmd.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateVoiceCommand, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateVoiceCommand")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"device_id":  cmd.DeviceID,
			"error":      err.Error(),
		}).Error("Database error when creating voice command")
		return err
	}

	return nil
}

func (r *voiceRepository) GetVoiceCommandsByDeviceID(ctx context.Context, deviceID string, limit, offset int) ([]entity.VoiceCommand, int, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var commandsList []VoiceCommandDB
	var total int

	countQuery, countArgs, err := sqlx.Named(queryCountVoiceCommandsByDeviceID, map[string]interface{}{
		"device_id": deviceID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountVoiceCommandsByDeviceID named query preparation err")
		return nil, 0, err
	}
	countQuery = r.q.Rebind(countQuery)

	if err := r.q.QueryRowxContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountVoiceCommandsByDeviceID execution err")
		return nil, 0, err
	}

	argsKV := map[string]interface{}{
		"device_id": deviceID,
		"limit":     limit,
		"offset":    offset,
	}

	query, args, err := sqlx.Named(queryGetVoiceCommandsByDeviceID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetVoiceCommandsByDeviceID named query preparation err")
		return nil, 0, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &commandsList, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetVoiceCommandsByDeviceID execution err")
		return nil, 0, err
	}

	commands := make([]entity.VoiceCommand, 0, len(commandsList))
	for _, cmdDB := range commandsList {
		commands = append(commands, r.makeVoiceCommand(cmdDB))
	}

	return commands, total, nil
}

func (r *voiceRepository) DeleteVoiceCommandsByDeviceID(ctx context.Context, deviceID string) error {
	requestID := contextPkg.GetRequestID(ctx)

	query, args, err := sqlx.Named(queryDeleteVoiceCommandsByDeviceID, map[string]interface{}{
		"device_id": deviceID,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteVoiceCommandsByDeviceID named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteVoiceCommandsByDeviceID execution err")
		return err
	}
	return nil
}

func (r *voiceRepository) makeVoiceCommand(cmdDB VoiceCommandDB) entity.VoiceCommand {
	var metadata map[string]interface{}
	if cmdDB.Metadata.Valid && cmdDB.Metadata.String != "" {
		if err := jsoniter.UnmarshalFromString(cmdDB.Metadata.String, &metadata); err != nil {
			r.log.WithFields(logrus.Fields{
				"id":    cmdDB.ID.String,
				"error": err.Error(),
			}).Warn("Failed to unmarshal voice command metadata")
		}
	}

	return entity.VoiceCommand{
		ID:         cmdDB.ID.String,
		DeviceID:   cmdDB.DeviceID.String,
		Transcript: cmdDB.Transcript.String,
		Normalized: cmdDB.Normalized.String,
		Language:   cmdDB.Language.String,
		Intent:     cmdDB.Intent.String,
		Confidence: cmdDB.Confidence.Float64,
		Accepted:   cmdDB.Accepted.Bool,
		Success:    cmdDB.Success.Bool,
		Response:   cmdDB.Response.String,
		AudioURL:   cmdDB.AudioURL.String,
		Metadata:   metadata,
		DurationMs: cmdDB.DurationMs.Int64,
		CreatedAt:  cmdDB.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
