// FilePath: internal/repository/postgres/postgres.session.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/nestlink/bottlehub/internal/database"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/models"
	"github.com/nestlink/bottlehub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

type SessionRepo struct {
	PostgresBaseRepo
}

func NewSessionRepository(db database.DB) *SessionRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SessionRepo{PostgresBaseRepo: *repo}
}

func (r *SessionRepo) Create(ctx context.Context, session *models.FeedingSession) error {
	query := `
		INSERT INTO feeding_sessions (
			id, device_id, subject_id, status, button_pressed_at,
			bottle_placed_at, feeding_started_at, feeding_ended_at,
			initial_weight, final_weight, temperature, temperature_safe,
			amount_consumed, duration, created_at
		) VALUES (
			:id, :device_id, :subject_id, :status, :button_pressed_at,
			:bottle_placed_at, :feeding_started_at, :feeding_ended_at,
			:initial_weight, :final_weight, :temperature, :temperature_safe,
			:amount_consumed, :duration, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, session)
	if err != nil {
		return errors.NewDatabaseError("failed to create feeding session", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*models.FeedingSession, error) {
	session := &models.FeedingSession{}
	query := `SELECT * FROM feeding_sessions WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("feeding session not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get feeding session", err)
	}
	return session, nil
}

// GetActiveByDevice fetches the most recent non-terminal session for a
// device. The single-active-session invariant is enforced by this query
// discipline, not by a schema constraint.
func (r *SessionRepo) GetActiveByDevice(ctx context.Context, deviceID string) (*models.FeedingSession, error) {
	session := &models.FeedingSession{}
	query := `
		SELECT * FROM feeding_sessions
		WHERE device_id = $1
		AND status IN ('ready', 'bottle_placed', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, session, query, deviceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no active session for device", err)
		}
		return nil, errors.NewDatabaseError("failed to get active session", err)
	}
	return session, nil
}

func (r *SessionRepo) MarkBottlePlaced(ctx context.Context, id string, netWeight, temperature float64, safe bool, at time.Time) error {
	query := `
		UPDATE feeding_sessions SET
			status = 'bottle_placed',
			bottle_placed_at = $1,
			initial_weight = $2,
			temperature = $3,
			temperature_safe = $4
		WHERE id = $5 AND status = 'ready'`

	return r.execTransition(ctx, "bottle placed", query, at, netWeight, temperature, safe, id)
}

func (r *SessionRepo) MarkInProgress(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE feeding_sessions SET
			status = 'in_progress',
			feeding_started_at = $1
		WHERE id = $2 AND status = 'bottle_placed'`

	return r.execTransition(ctx, "feeding in progress", query, at, id)
}

// UpdateTemperature overwrites the session's current temperature reading.
// It deliberately carries no status guard beyond excluding terminal
// sessions; continuous readings may arrive at any point before finish.
func (r *SessionRepo) UpdateTemperature(ctx context.Context, id string, temperature float64, safe bool) error {
	query := `
		UPDATE feeding_sessions SET
			temperature = $1,
			temperature_safe = $2
		WHERE id = $3 AND status <> 'completed'`

	return r.execTransition(ctx, "temperature update", query, temperature, safe, id)
}

// execTransition runs a status-guarded single-statement update. Zero rows
// affected means the session was missing or not in the expected source
// state; both surface as a precondition violation and leave state untouched.
func (r *SessionRepo) execTransition(ctx context.Context, name, query string, args ...interface{}) error {
	result, err := r.db.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return errors.NewDatabaseError("failed to update feeding session", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewPreconditionError("session not in expected state for "+name, nil)
	}

	return nil
}

// Finalize runs the finalize-and-aggregate transaction: terminal session
// update, immutable record insert, and a full recompute of the subject's
// daily aggregate. All statements commit or roll back together, so a
// failed finalize leaves the session in_progress and is safe to retry.
func (r *SessionRepo) Finalize(ctx context.Context, params repository.FinalizeParams) (*models.FeedingRecord, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin finalize transaction", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	// Re-read the session inside the transaction to get the baseline
	// values written by prior transitions, locking the row against a
	// concurrent duplicate finalize.
	session := &models.FeedingSession{}
	err = tx.GetContext(ctx, session,
		`SELECT * FROM feeding_sessions WHERE id = $1 FOR UPDATE`, params.SessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("feeding session not found", err)
		}
		return nil, errors.NewDatabaseError("failed to read session for finalize", err)
	}
	if session.Status != models.SessionInProgress {
		return nil, errors.NewPreconditionError("session not in progress, cannot finalize", nil)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE feeding_sessions SET
			status = 'completed',
			feeding_ended_at = $1,
			final_weight = $2,
			amount_consumed = $3,
			duration = $4
		WHERE id = $5 AND status = 'in_progress'`,
		params.EndedAt, params.FinalWeight, params.AmountConsumed, params.Duration, params.SessionID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to complete session", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return nil, errors.NewPreconditionError("session not in progress, cannot finalize", nil)
	}

	var temperature float64
	if session.Temperature != nil {
		temperature = *session.Temperature
	}

	var weightBefore float64
	if session.InitialWeight != nil {
		weightBefore = *session.InitialWeight
	}

	record := &models.FeedingRecord{
		ID:             params.RecordID,
		SessionID:      session.ID,
		SubjectID:      session.SubjectID,
		DeviceID:       session.DeviceID,
		WeightBefore:   weightBefore,
		WeightAfter:    params.FinalWeight,
		AmountConsumed: params.AmountConsumed,
		Temperature:    temperature,
		Duration:       params.Duration,
		RecordedAt:     params.EndedAt,
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO feeding_records (
			id, session_id, subject_id, device_id, weight_before,
			weight_after, amount_consumed, temperature, duration, recorded_at
		) VALUES (
			:id, :session_id, :subject_id, :device_id, :weight_before,
			:weight_after, :amount_consumed, :temperature, :duration, :recorded_at
		)`, record)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to insert feeding record", err)
	}

	// Recompute the day's aggregate from all of that day's records. A
	// recompute from source is idempotent under concurrent finalizations,
	// unlike an incremental update.
	day := params.EndedAt.Format("2006-01-02")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeding_stats_daily (
			subject_id, day, total_feedings, total_amount,
			avg_amount, avg_temperature, avg_duration, updated_at
		)
		SELECT
			$1, $2::date, COUNT(*), COALESCE(SUM(amount_consumed), 0),
			COALESCE(AVG(amount_consumed), 0), COALESCE(AVG(temperature), 0),
			COALESCE(AVG(duration), 0), NOW()
		FROM feeding_records
		WHERE subject_id = $1 AND recorded_at::date = $2::date
		ON CONFLICT (subject_id, day) DO UPDATE SET
			total_feedings = EXCLUDED.total_feedings,
			total_amount = EXCLUDED.total_amount,
			avg_amount = EXCLUDED.avg_amount,
			avg_temperature = EXCLUDED.avg_temperature,
			avg_duration = EXCLUDED.avg_duration,
			updated_at = NOW()`,
		session.SubjectID, day)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to upsert daily stats", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseError("failed to commit finalize transaction", err)
	}

	nuts.L.Infof("[SessionRepo] Finalized session %s: amount=%.1fg, duration=%ds",
		session.ID, params.AmountConsumed, params.Duration)
	return record, nil
}

func (r *SessionRepo) DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error {
	query := `DELETE FROM feeding_sessions WHERE device_id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, deviceID)
	} else {
		_, err = r.db.GetDB().ExecContext(ctx, query, deviceID)
	}
	if err != nil {
		return errors.NewDatabaseError("failed to delete sessions for device", err)
	}
	return nil
}
