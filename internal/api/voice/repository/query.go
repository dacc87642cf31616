package voiceRepository

const (
	queryCreateVoiceCommand = `
		INSERT INTO voice_commands (
			id, device_id, transcript, normalized, language,
			intent, confidence, accepted, success, response,
			audio_url, metadata, duration_ms, created_at
		) VALUES (
			:id, :device_id, :transcript, :normalized, :language,
			:intent, :confidence, :accepted, :success, :response,
			:audio_url, :metadata, :duration_ms, :created_at
		)
	`

	queryGetVoiceCommandsByDeviceID = `
		SELECT
			id, device_id, transcript, normalized, language,
			intent, confidence, accepted, success, response,
			audio_url, metadata, duration_ms, created_at
		FROM voice_commands
		WHERE device_id = :device_id
		ORDER BY created_at DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountVoiceCommandsByDeviceID = `
		SELECT COUNT(*)
		FROM voice_commands
		WHERE device_id = :device_id
	`

	queryDeleteVoiceCommandsByDeviceID = `
		DELETE FROM voice_commands
		WHERE device_id = :device_id
	`

	queryGetPreferences = `
		SELECT device_id, version, data, last_modified, updated_at
		FROM voice_preferences
		WHERE device_id = :device_id
	`

	queryUpsertPreferences = `
		INSERT INTO voice_preferences (
			device_id, version, data, last_modified, updated_at
		) VALUES (
			:device_id, :version, :data, :last_modified, :updated_at
		)
		ON CONFLICT (device_id) DO UPDATE SET
			version = EXCLUDED.version,
			data = EXCLUDED.data,
			last_modified = EXCLUDED.last_modified,
			updated_at = EXCLUDED.updated_at
		WHERE voice_preferences.last_modified <= EXCLUDED.last_modified
	`

	queryFindMenuItem = `
		SELECT
			id, restaurant_id, name, language, price,
			currency, available, updated_at
		FROM menu_items
		WHERE restaurant_id = :restaurant_id
			AND name ILIKE :name
			AND (language = :language OR language = :base_language)
			AND available = TRUE
		ORDER BY (language = :language) DESC, length(name) ASC
		LIMIT 1
	`
)
