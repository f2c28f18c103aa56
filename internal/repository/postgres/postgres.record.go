// FilePath: internal/repository/postgres/postgres.record.go
package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/nestlink/bottlehub/internal/database"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/models"
)

type RecordRepo struct {
	PostgresBaseRepo
}

func NewRecordRepository(db database.DB) *RecordRepo {
	repo := &PostgresBaseRepo{db: db}
	return &RecordRepo{PostgresBaseRepo: *repo}
}

func (r *RecordRepo) List(ctx context.Context, filters models.RecordFilters) ([]*models.FeedingRecord, error) {
	query := `SELECT * FROM feeding_records WHERE 1=1`
	args := []interface{}{}

	if filters.DeviceID != "" {
		args = append(args, filters.DeviceID)
		query += ` AND device_id = $` + strconv.Itoa(len(args))
	}
	if filters.SubjectID != "" {
		args = append(args, filters.SubjectID)
		query += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		query += ` AND recorded_at >= $` + strconv.Itoa(len(args))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		query += ` AND recorded_at <= $` + strconv.Itoa(len(args))
	}

	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	args = append(args, limit)
	query += ` ORDER BY recorded_at DESC LIMIT $` + strconv.Itoa(len(args))

	records := []*models.FeedingRecord{}
	if err := r.db.GetDB().SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list feeding records", err)
	}
	return records, nil
}

func (r *RecordRepo) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.FeedingRecord, error) {
	return r.List(ctx, models.RecordFilters{DeviceID: deviceID, Limit: limit})
}

func (r *RecordRepo) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*models.FeedingRecord, error) {
	return r.List(ctx, models.RecordFilters{SubjectID: subjectID, Limit: limit})
}

func (r *RecordRepo) GetDailyStat(ctx context.Context, subjectID string, day time.Time) (*models.DailyStat, error) {
	stat := &models.DailyStat{}
	query := `SELECT * FROM feeding_stats_daily WHERE subject_id = $1 AND day = $2::date`

	err := r.db.GetDB().GetContext(ctx, stat, query, subjectID, day.Format("2006-01-02"))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no daily stats for subject", err)
		}
		return nil, errors.NewDatabaseError("failed to get daily stats", err)
	}
	return stat, nil
}

func (r *RecordRepo) DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error {
	query := `DELETE FROM feeding_records WHERE device_id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, deviceID)
	} else {
		_, err = r.db.GetDB().ExecContext(ctx, query, deviceID)
	}
	if err != nil {
		return errors.NewDatabaseError("failed to delete records for device", err)
	}
	return nil
}
