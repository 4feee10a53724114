package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finscraper/internal/assert"
	"finscraper/internal/components/chrono"
	"finscraper/internal/pipeline"

	"github.com/mazen160/go-random"
)

var ErrRunNotFound = fmt.Errorf("run not found")

const run_id_length = 12

func NewRunID() (string, error) {
	id, err := random.String(run_id_length)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// Run is one recorded execution of a profile's pipeline.
type Run struct {
	ID         string
	Profile    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    pipeline.Outcome
}

type Store struct {
	db    *sql.DB
	clock chrono.API
}

func NewStore(db *sql.DB, clock chrono.API) Store {
	assert.NotNil(db)
	assert.NotNil(clock)
	return Store{db: db, clock: clock}
}

// Start returns a new run of `profile` starting now, nothing is written until Record.
func (s Store) Start(profile string) (Run, error) {
	id, err := NewRunID()
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:        id,
		Profile:   profile,
		StartedAt: s.clock.Now(),
	}, nil
}

// Record writes a finished run, FinishedAt is set to now when it is zero.
func (s Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.clock.Now()
	}

	var data sql.NullString
	if run.Outcome.Data != nil {
		serialized, err := json.Marshal(run.Outcome.Data)
		if err != nil {
			return run, fmt.Errorf("serialize outcome data: %w", err)
		}
		data = sql.NullString{String: string(serialized), Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`insert into runs(id, profile, started_at, finished_at, success, error_type, error_message, data)
		values (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Profile,
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
		run.Outcome.Success,
		nullable(run.Outcome.ErrorType),
		nullable(run.Outcome.ErrorMessage),
		data,
	)
	if err != nil {
		return run, fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const select_runs = `select id, profile, started_at, finished_at, success, error_type, error_message, data from runs`

type scanner interface {
	Scan(dest ...any) error
}

func (s Store) scanRun(row scanner) (Run, error) {
	var (
		run          Run
		startedAt    int64
		finishedAt   int64
		errorType    sql.NullString
		errorMessage sql.NullString
		data         sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Profile,
		&startedAt,
		&finishedAt,
		&run.Outcome.Success,
		&errorType,
		&errorMessage,
		&data,
	)
	if err != nil {
		return Run{}, err
	}

	run.StartedAt = time.UnixMilli(startedAt).In(s.clock.Location())
	run.FinishedAt = time.UnixMilli(finishedAt).In(s.clock.Location())
	run.Outcome.ErrorType = errorType.String
	run.Outcome.ErrorMessage = errorMessage.String
	if data.Valid {
		err = json.Unmarshal([]byte(data.String), &run.Outcome.Data)
		if err != nil {
			return Run{}, fmt.Errorf("decode data of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func (s Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, select_runs+` where id = ?`, id)
	run, err := s.scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the runs of `profile`, newest first. A limit <= 0 returns every run.
func (s Store) List(ctx context.Context, profile string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ctx,
		select_runs+` where profile = ? order by started_at desc, rowid desc limit ?`,
		profile,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", profile, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs of %s: %w", profile, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
