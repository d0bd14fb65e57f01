package repositories

import (
	"database/sql"
	"fmt"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

// SyncJobRepository records sync pass lifecycles for the status and
// history surfaces.
type SyncJobRepository struct {
	db *sql.DB
}

// NewSyncJobRepository creates a new SyncJobRepository with the given database connection
func NewSyncJobRepository(db *sql.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Create inserts a job row at pass start.
func (r *SyncJobRepository) Create(job *models.SyncJob) error {
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}

	_, err := r.db.Exec(`
		INSERT INTO sync_jobs (id, provider_id, reason, state, started_at, ended_at, error, records)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
	`,
		job.ID,
		job.ProviderID,
		string(job.Trigger),
		string(job.State),
		job.StartedAt,
		job.Error,
		job.Records,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync job: %w", err)
	}
	return nil
}

// Finish updates the job row when the pass reaches a terminal state.
func (r *SyncJobRepository) Finish(job *models.SyncJob) error {
	if !job.State.Terminal() {
		return fmt.Errorf("%w: job %s is not in a terminal state", shared.ErrInvalidInput, job.ID)
	}

	result, err := r.db.Exec(`
		UPDATE sync_jobs
		SET state = ?, ended_at = ?, error = ?, records = ?
		WHERE id = ?
	`,
		string(job.State),
		job.EndedAt,
		job.Error,
		job.Records,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync job not found: %s", job.ID)
	}
	return nil
}

// History returns the most recent jobs, newest first. An empty providerID
// returns jobs for all providers.
func (r *SyncJobRepository) History(providerID string, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, provider_id, reason, state, started_at, ended_at, error, records
		FROM sync_jobs
	`
	args := []any{}
	if providerID != "" {
		query += ` WHERE provider_id = ?`
		args = append(args, providerID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LatestByProvider returns each provider's most recent job.
func (r *SyncJobRepository) LatestByProvider() (map[string]*models.SyncJob, error) {
	query := `
		SELECT id, provider_id, reason, state, started_at, ended_at, error, records
		FROM sync_jobs
		ORDER BY started_at ASC, id ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]*models.SyncJob)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		latest[job.ProviderID] = job
	}
	return latest, rows.Err()
}

func scanJob(rows *sql.Rows) (*models.SyncJob, error) {
	var job models.SyncJob
	var trigger, state string
	var endedAt sql.NullTime
	var jobErr sql.NullString
	if err := rows.Scan(&job.ID, &job.ProviderID, &trigger, &state,
		&job.StartedAt, &endedAt, &jobErr, &job.Records); err != nil {
		return nil, fmt.Errorf("failed to scan sync job: %w", err)
	}
	job.Trigger = models.SyncTrigger(trigger)
	job.State = models.SyncState(state)
	if endedAt.Valid {
		job.EndedAt = endedAt.Time
	}
	job.Error = jobErr.String
	return &job, nil
}
