// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package report keeps a catalog of the videos rendered.
package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/maruel/thermvid/config"
)

// Kind is the type of video produced.
type Kind string

// Known kinds.
const (
	Thermal Kind = "thermal"
	Classic Kind = "classic"
)

// Status is the state of a job.
type Status string

// Known states.
const (
	Running Status = "running"
	Done    Status = "done"
	Failed  Status = "failed"
)

// timeFormat sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown job.
var ErrNotFound = errors.New("report: no such job")

// Job is one render.
type Job struct {
	ID        string        `json:"id"`
	Recording string        `json:"recording"`
	Kind      Kind          `json:"kind"`
	Path      string        `json:"path"`
	Settings  *config.Video `json:"settings,omitempty"` // nil for Classic.
	Status    Status        `json:"status"`
	Frames    int           `json:"frames"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Finished  *time.Time    `json:"finished,omitempty"` // nil while running.
}

// Catalog is the sqlite backed list of jobs. It is safe for concurrent use.
type Catalog struct {
	conn *sql.DB
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("report: failed to open %s: %w", path, err)
	}
	// sqlite has a single writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	c := &Catalog{conn: conn}
	if err := c.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("report: failed to initialize %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		recording TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		settings TEXT,
		status TEXT NOT NULL,
		frames INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started TEXT NOT NULL,
		finished TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started);
	CREATE INDEX IF NOT EXISTS idx_jobs_recording ON jobs(recording);
	`
	_, err := c.conn.Exec(schema)
	return err
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// Begin records a new running job and returns it.
func (c *Catalog) Begin(recording string, kind Kind, path string, s *config.Video) (*Job, error) {
	j := &Job{
		ID:        uuid.New().String(),
		Recording: recording,
		Kind:      kind,
		Path:      path,
		Settings:  s,
		Status:    Running,
		Started:   time.Now().UTC(),
	}
	var settings sql.NullString
	if s != nil {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		settings = sql.NullString{String: string(b), Valid: true}
	}
	const query = `INSERT INTO jobs (id, recording, kind, path, settings, status, started) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := c.conn.Exec(query, j.ID, j.Recording, string(j.Kind), j.Path, settings, string(j.Status), j.Started.Format(timeFormat)); err != nil {
		return nil, err
	}
	return j, nil
}

// Finish marks the job as done, or failed when jobErr is not nil.
func (c *Catalog) Finish(id string, frames int, jobErr error) error {
	status, msg := Done, ""
	if jobErr != nil {
		status, msg = Failed, jobErr.Error()
	}
	const query = `UPDATE jobs SET status = ?, frames = ?, error = ?, finished = ? WHERE id = ?`
	res, err := c.conn.Exec(query, string(status), frames, msg, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns job id.
func (c *Catalog) Get(id string) (*Job, error) {
	const query = `SELECT id, recording, kind, path, settings, status, frames, error, started, finished FROM jobs WHERE id = ?`
	j, err := scan(c.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// List returns up to limit jobs, most recent first. limit <= 0 means no
// limit.
func (c *Catalog) List(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = -1
	}
	const query = `SELECT id, recording, kind, path, settings, status, frames, error, started, finished FROM jobs ORDER BY started DESC, rowid DESC LIMIT ?`
	rows, err := c.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		j, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(s scanner) (*Job, error) {
	var j Job
	var kind, status, started, finished string
	var settings sql.NullString
	if err := s.Scan(&j.ID, &j.Recording, &kind, &j.Path, &settings, &status, &j.Frames, &j.Error, &started, &finished); err != nil {
		return nil, err
	}
	j.Kind = Kind(kind)
	j.Status = Status(status)
	if settings.Valid {
		j.Settings = &config.Video{}
		if err := json.Unmarshal([]byte(settings.String), j.Settings); err != nil {
			return nil, fmt.Errorf("report: job %s: %w", j.ID, err)
		}
	}
	var err error
	if j.Started, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("report: job %s: %w", j.ID, err)
	}
	if finished != "" {
		t, err := time.Parse(timeFormat, finished)
		if err != nil {
			return nil, fmt.Errorf("report: job %s: %w", j.ID, err)
		}
		j.Finished = &t
	}
	return &j, nil
}
