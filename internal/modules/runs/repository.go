package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/qaoa/internal/database"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

const runColumns = `id, created_at, finished_at, status, backend, num_nodes, reps,
	params, trace, counts, graph, bitstring, cut_value, optimal_cut, error`

// Repository stores runs in the runs database. Slices and maps are msgpack blobs.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a run repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

type blobs struct {
	params, trace, counts, graph []byte
}

func encodeBlobs(r *Run) (blobs, error) {
	var b blobs
	var err error
	if b.params, err = marshalOptional(r.Params, len(r.Params)); err != nil {
		return b, fmt.Errorf("failed to encode params: %w", err)
	}
	if b.trace, err = marshalOptional(r.Trace, len(r.Trace)); err != nil {
		return b, fmt.Errorf("failed to encode trace: %w", err)
	}
	if b.counts, err = marshalOptional(r.Counts, len(r.Counts)); err != nil {
		return b, fmt.Errorf("failed to encode counts: %w", err)
	}
	if b.graph, err = marshalOptional(r.Edges, len(r.Edges)); err != nil {
		return b, fmt.Errorf("failed to encode graph: %w", err)
	}
	return b, nil
}

func marshalOptional(v any, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	return msgpack.Marshal(v)
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Create inserts a new run.
func (r *Repository) Create(ctx context.Context, run *Run) error {
	b, err := encodeBlobs(run)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Unix(), nullableUnix(run.FinishedAt), string(run.Status), run.Backend,
		run.NumNodes, run.Reps, b.params, b.trace, b.counts, b.graph, encodeBits(run.Bitstring),
		nullableFloat(run.CutValue), nullableFloat(run.OptimalCut), run.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Run created")
	return nil
}

// Update rewrites every mutable column of run.
func (r *Repository) Update(ctx context.Context, run *Run) error {
	b, err := encodeBlobs(run)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE runs SET
		finished_at = ?, status = ?, backend = ?, params = ?, trace = ?, counts = ?,
		bitstring = ?, cut_value = ?, optimal_cut = ?, error = ?
		WHERE id = ?`,
		nullableUnix(run.FinishedAt), string(run.Status), run.Backend, b.params, b.trace, b.counts,
		encodeBits(run.Bitstring), nullableFloat(run.CutValue), nullableFloat(run.OptimalCut), run.Error,
		run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// Get returns the run with the given ID.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Delete removes a run.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return nil
}

// MarkInterrupted fails runs left in the running state by a previous process.
func (r *Repository) MarkInterrupted(ctx context.Context, now time.Time) (int64, error) {
	var affected int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ?, error = ?
			WHERE status = ?`, string(StatusFailed), now.Unix(), "interrupted", string(StatusRunning))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	if affected > 0 {
		r.log.Warn().Int64("runs", affected).Msg("Marked interrupted runs as failed")
	}
	return affected, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                          Run
		created                      int64
		finished                     sql.NullInt64
		status, bitstring            string
		params, trace, counts, edges []byte
		cut, optimal                 sql.NullFloat64
	)
	err := s.Scan(&run.ID, &created, &finished, &status, &run.Backend, &run.NumNodes, &run.Reps,
		&params, &trace, &counts, &edges, &bitstring, &cut, &optimal, &run.Error)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(created, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	run.Status = Status(status)
	run.Bitstring = decodeBits(bitstring)
	if cut.Valid {
		run.CutValue = &cut.Float64
	}
	if optimal.Valid {
		run.OptimalCut = &optimal.Float64
	}

	for _, blob := range []struct {
		data []byte
		out  any
	}{
		{params, &run.Params},
		{trace, &run.Trace},
		{counts, &run.Counts},
		{edges, &run.Edges},
	} {
		if len(blob.data) == 0 {
			continue
		}
		if err := msgpack.Unmarshal(blob.data, blob.out); err != nil {
			return nil, fmt.Errorf("failed to decode run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
