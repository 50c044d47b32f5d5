package database

import (
	"database/sql"
	"errors"
	"fmt"

	"guardnet/model"

	"github.com/jmoiron/sqlx"
)

// InsertReport archives a resolved report.
func InsertReport(db *sqlx.DB, record *model.ReportRecord) error {
	query := `INSERT INTO reports
	    (id, reported_users, associated_servers, category, subcategory, attachments,
	     addressing_type, reported_by, is_anonymous, sanctions, polling,
	     created_at, pushed_at, stats)
	    VALUES (:id, :reported_users, :associated_servers, :category, :subcategory, :attachments,
	     :addressing_type, :reported_by, :is_anonymous, :sanctions, :polling,
	     :created_at, :pushed_at, :stats)`
	if _, err := db.NamedExec(query, record); err != nil {
		return fmt.Errorf("failed to insert report %d: %w", record.ID, err)
	}
	return nil
}

// GetReport fetches an archived report by id, or nil when absent.
func GetReport(db *sqlx.DB, id int64) (*model.ReportRecord, error) {
	var record model.ReportRecord
	err := db.Get(&record, "SELECT * FROM reports WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}
	return &record, nil
}

// UpdateReportStats rewrites the stats column of an archived report.
func UpdateReportStats(db *sqlx.DB, id int64, stats string) error {
	if _, err := db.Exec("UPDATE reports SET stats = ? WHERE id = ?", stats, id); err != nil {
		return fmt.Errorf("failed to update stats for report %d: %w", id, err)
	}
	return nil
}
