/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit persists a durable trail of reconcile outcomes so operators
// can answer "who stopped this instance and why" after the process restarts.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/opswindow/opswindow/internal/reconcile"
)

// Record is one persisted invocation outcome.
type Record struct {
	ID         string `gorm:"primaryKey"`
	InstanceID string `gorm:"index"`
	Desired    string
	Observed   string
	Action     string
	Reason     string
	DryRun     bool
	Err        string
	CheckedAt  time.Time
	CreatedAt  time.Time
}

// Store writes audit records to a local sqlite database.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "audit").Logger(),
	}, nil
}

// RecordOutcome stores one outcome. invErr carries the invocation failure, if
// any; audit failures are logged rather than failing the invocation.
func (s *Store) RecordOutcome(ctx context.Context, outcome reconcile.Outcome, invErr error) {
	if s == nil {
		return
	}
	rec := Record{
		ID:         outcome.InvocationID,
		InstanceID: outcome.InstanceID,
		Desired:    string(outcome.Desired),
		Observed:   string(outcome.Observed),
		Action:     string(outcome.Action),
		Reason:     outcome.Reason,
		DryRun:     outcome.DryRun,
		CheckedAt:  outcome.CheckedAt,
	}
	if invErr != nil {
		rec.Err = invErr.Error()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Error().Err(err).Str("invocation_id", rec.ID).Msg("failed to write audit record")
	}
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
