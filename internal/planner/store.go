package planner

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/a9lim/shannon/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// store wraps the plans table: every Save upserts the full serialized step
// list, matching the Python engine's "insert ... on conflict do update"
// persistence pattern.
type store struct {
	db *sql.DB
}

func openStore(path string) (*store, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := storage.Migrate(db, sub); err != nil {
		db.Close()
		return nil, err
	}
	return &store{db: db}, nil
}

func (s *store) Close() error { return s.db.Close() }

type stepRow struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Tool        string `json:"tool,omitempty"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

func encodeSteps(steps []Step) (string, error) {
	rows := make([]stepRow, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, stepRow{
			ID: s.ID, Description: s.Description, Tool: s.Tool,
			Status: string(s.Status), Result: s.Result, Error: s.Error,
		})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeSteps(raw string) ([]Step, error) {
	var rows []stepRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(rows))
	for _, r := range rows {
		steps = append(steps, Step{
			ID: r.ID, Description: r.Description, Tool: r.Tool,
			Status: StepStatus(r.Status), Result: r.Result, Error: r.Error,
		})
	}
	return steps, nil
}

func (s *store) Save(ctx context.Context, plan *Plan) error {
	stepsJSON, err := encodeSteps(plan.Steps)
	if err != nil {
		return fmt.Errorf("planner: encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, goal, steps_json, status, channel, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET steps_json = ?, status = ?, updated_at = ?
	`,
		plan.ID, plan.Goal, stepsJSON, string(plan.Status), plan.Channel,
		plan.CreatedAt.Format(timeLayout), plan.UpdatedAt.Format(timeLayout),
		stepsJSON, string(plan.Status), plan.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("planner: save: %w", err)
	}
	return nil
}

func (s *store) Load(ctx context.Context, id string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, goal, steps_json, status, channel, created_at, updated_at
		FROM plans WHERE id = ?
	`, id)

	var plan Plan
	var stepsJSON, statusStr, created, updated string
	if err := row.Scan(&plan.ID, &plan.Goal, &stepsJSON, &statusStr, &plan.Channel, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("planner: load: %w", err)
	}

	steps, err := decodeSteps(stepsJSON)
	if err != nil {
		return nil, fmt.Errorf("planner: decode steps: %w", err)
	}
	plan.Steps = steps
	plan.Status = Status(statusStr)
	plan.CreatedAt, _ = time.Parse(timeLayout, created)
	plan.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &plan, nil
}
