// Package taskqueue stores publish tasks and hands them out to workers with
// at most one IN_PROGRESS task per title.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/database"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("task not found")

const taskColumns = "id, title_id, catalog_id, catalog_code, publisher, status, created_at, " +
	"started_at, finished_at, tracking_id, url, failure, node, requester"

type TaskQueue struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *TaskQueue {
	return &TaskQueue{pool: pool}
}

func (q *TaskQueue) GetPool() *pgxpool.Pool {
	return q.pool
}

// Create inserts a PENDING task. It runs on q so the caller can create the
// title, catalog and task in one transaction.
func (q *TaskQueue) Create(ctx context.Context, db database.Querier, t NewTask) error {
	var requester *string
	if t.Requester != "" {
		requester = &t.Requester
	}
	sql, args, err := database.Builder.Insert("task").
		Columns("id", "title_id", "catalog_id", "catalog_code", "publisher", "status", "tracking_id", "url", "requester").
		Values(t.ID, t.TitleID, t.CatalogID, t.CatalogCode, t.Publisher, string(StatusPending), t.TrackingID, t.URL, requester).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get returns a task by publish id.
func (q *TaskQueue) Get(ctx context.Context, db database.Querier, id string) (*Task, error) {
	sql, args, err := database.Builder.Select(taskColumns).From("task").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var t Task
	if err := pgxscan.Get(ctx, db, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ByCatalog returns every task of a catalog, oldest first.
func (q *TaskQueue) ByCatalog(ctx context.Context, db database.Querier, catalogID int64) ([]Task, error) {
	sql, args, err := database.Builder.Select(taskColumns).From("task").
		Where(sq.Eq{"catalog_id": catalogID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	tasks := make([]Task, 0)
	if err := pgxscan.Select(ctx, db, &tasks, sql, args...); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	return tasks, nil
}

// LastCompleted returns the newest COMPLETED task of a catalog.
func (q *TaskQueue) LastCompleted(ctx context.Context, db database.Querier, catalogID int64) (*Task, error) {
	sql, args, err := database.Builder.Select(taskColumns).From("task").
		Where(sq.Eq{"catalog_id": catalogID, "status": string(StatusCompleted)}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var t Task
	if err := pgxscan.Get(ctx, db, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("last completed task: %w", err)
	}
	return &t, nil
}

// claimCandidateSQL picks the oldest PENDING task of a title that has no
// IN_PROGRESS task. Rows locked by another claimer are skipped.
const claimCandidateSQL = `
	SELECT t.id, t.title_id
	FROM task t
	WHERE t.status = 'PENDING'
	  AND NOT EXISTS (
	      SELECT 1 FROM task r
	      WHERE r.title_id = t.title_id AND r.status = 'IN_PROGRESS')
	  AND t.id = (
	      SELECT MIN(p.id) FROM task p
	      WHERE p.title_id = t.title_id AND p.status = 'PENDING')
	ORDER BY t.id
	LIMIT 1
	FOR UPDATE OF t SKIP LOCKED`

// Claim moves the next runnable task to IN_PROGRESS and records node as its
// owner. It returns nil, nil when nothing is runnable.
func (q *TaskQueue) Claim(ctx context.Context, node string) (*Task, error) {
	var claimed *Task
	err := database.WithTx(ctx, q.pool, func(tx pgx.Tx) error {
		var id string
		var titleID int64
		if err := tx.QueryRow(ctx, claimCandidateSQL).Scan(&id, &titleID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select candidate: %w", err)
		}

		// Serializes claimers of the same title across nodes until commit.
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, titleID).Scan(&locked); err != nil {
			return fmt.Errorf("title lock: %w", err)
		}
		if !locked {
			return nil
		}

		var busy bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM task WHERE title_id = $1 AND status = 'IN_PROGRESS')`,
			titleID).Scan(&busy); err != nil {
			return fmt.Errorf("check title: %w", err)
		}
		if busy {
			return nil
		}

		var t Task
		if err := pgxscan.Get(ctx, tx, &t, `
			UPDATE task
			SET status = 'IN_PROGRESS', started_at = NOW(), node = $2
			WHERE id = $1
			RETURNING `+taskColumns, id, node); err != nil {
			return fmt.Errorf("claim task: %w", err)
		}
		claimed = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks an IN_PROGRESS task COMPLETED. It runs on db so it can
// share the activation transaction.
func (q *TaskQueue) Complete(ctx context.Context, db database.Querier, id string, at time.Time) error {
	return q.finish(ctx, db, id, StatusCompleted, nil, at)
}

// Fail marks an IN_PROGRESS task FAILED with the given failure string.
func (q *TaskQueue) Fail(ctx context.Context, id, failure string) error {
	return q.finish(ctx, q.pool, id, StatusFailed, &failure, time.Now())
}

func (q *TaskQueue) finish(ctx context.Context, db database.Querier, id string, status Status, failure *string, at time.Time) error {
	sql, args, err := database.Builder.Update("task").
		Set("status", string(status)).
		Set("failure", failure).
		Set("finished_at", at).
		Where(sq.Eq{"id": id, "status": string(StatusInProgress)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s is not in progress", id)
	}
	return nil
}

func publicationSelect() sq.SelectBuilder {
	cols := "tk.id, tk.title_id, tk.catalog_id, tk.catalog_code, tk.publisher, tk.status, tk.created_at, " +
		"tk.started_at, tk.finished_at, tk.tracking_id, tk.url, tk.failure, tk.node, tk.requester, " +
		"t.code AS title_code, c.activated_at, c.terminated_at"
	return database.Builder.Select(cols).
		From("task tk").
		Join("catalog c ON c.id = tk.catalog_id").
		Join("title t ON t.id = tk.title_id")
}

// Publication returns a task with the state of its catalog.
func (q *TaskQueue) Publication(ctx context.Context, id string) (*Publication, error) {
	sql, args, err := publicationSelect().Where(sq.Eq{"tk.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p Publication
	if err := pgxscan.Get(ctx, q.pool, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get publication: %w", err)
	}
	return &p, nil
}

// Publications lists the tasks of a title newest first. limit < 0 means
// unbounded.
func (q *TaskQueue) Publications(ctx context.Context, titleID int64, limit int) ([]Publication, error) {
	b := publicationSelect().Where(sq.Eq{"tk.title_id": titleID}).OrderBy("tk.id DESC")
	if limit >= 0 {
		b = b.Limit(uint64(limit))
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	pubs := make([]Publication, 0)
	if err := pgxscan.Select(ctx, q.pool, &pubs, sql, args...); err != nil {
		return nil, fmt.Errorf("select publications: %w", err)
	}
	return pubs, nil
}

// RecoverOrphaned returns IN_PROGRESS tasks started before the cutoff to
// PENDING. These are tasks whose node died mid-run.
func (q *TaskQueue) RecoverOrphaned(ctx context.Context, startedBefore time.Time) (int64, error) {
	sql, args, err := database.Builder.Update("task").
		Set("status", string(StatusPending)).
		Set("started_at", nil).
		Set("node", nil).
		Where(sq.Eq{"status": string(StatusInProgress)}).
		Where(sq.Lt{"started_at": startedBefore}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	tag, err := q.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupOldTasks deletes finished tasks older than daysToKeep. The latest
// task of every catalog is kept so publish status stays answerable.
func (q *TaskQueue) CleanupOldTasks(ctx context.Context, daysToKeep int) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM task tk
		WHERE tk.status IN ('COMPLETED', 'FAILED')
		  AND tk.finished_at < NOW() - make_interval(days => $1)
		  AND tk.id <> (SELECT MAX(x.id) FROM task x WHERE x.catalog_id = tk.catalog_id)`,
		daysToKeep)
	if err != nil {
		return 0, fmt.Errorf("cleanup tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns the number of tasks per status.
func (q *TaskQueue) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := q.pool.Query(ctx, `SELECT status, COUNT(*) FROM task GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}
