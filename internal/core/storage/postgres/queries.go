package postgres

const tableEvents = "telemetry_events"

const (
	// querySchemaExists guards against starting before migrations have run.
	querySchemaExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'telemetry_events'
		)
	`

	// queryPurgeExpired deletes the oldest expired rows, at most $2 per call,
	// so a large backlog never holds one long-running lock.
	queryPurgeExpired = `
		DELETE FROM telemetry_events
		WHERE id IN (
			SELECT id FROM telemetry_events
			WHERE received_at < $1
			ORDER BY received_at ASC
			LIMIT $2
		)
	`
)

// SQL renderings of the derived dimensions. They must format exactly like
// storage.DimensionValue so both stores return identical keys.
const (
	exprActor     = `COALESCE(NULLIF(user_id, ''), device_id)`
	exprHourOfDay = `EXTRACT(HOUR FROM event_timestamp AT TIME ZONE 'UTC')::int`
	exprDayOfWeek = `EXTRACT(DOW FROM event_timestamp AT TIME ZONE 'UTC')::int`
	exprISOWeek   = `to_char(event_timestamp AT TIME ZONE 'UTC', 'IYYY-"W"IW')`
	exprDay       = `to_char(event_timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD')`
)
