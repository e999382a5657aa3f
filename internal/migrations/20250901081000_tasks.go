package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20250901081000",
		up:      mig_20250901081000_tasks_up,
		down:    mig_20250901081000_tasks_down,
	})
}

func mig_20250901081000_tasks_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE RESTRICT,
            title VARCHAR(100) NOT NULL,
            details TEXT NOT NULL DEFAULT '',
            date DATE NOT NULL,
            start_time TIMESTAMP WITH TIME ZONE NOT NULL,
            end_time TIMESTAMP WITH TIME ZONE,
            total_time_minutes DOUBLE PRECISION,
            task_type VARCHAR(30) NOT NULL CHECK (task_type IN (
                'Development', 'Testing', 'Documentation', 'Review',
                'Customer Interaction', 'Internal Discussion', 'Deployment', 'Break'
            )),
            status VARCHAR(20) NOT NULL CHECK (status IN (
                'To Be Approved', 'In Progress', 'Approved', 'Done'
            )),
            reviewer_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
            is_backdated BOOLEAN NOT NULL DEFAULT FALSE,
            is_approved BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks(date);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_tasks_backdated ON tasks(created_by, date) WHERE is_backdated;
    `)
	if err != nil {
		return err
	}

	return nil
}

func mig_20250901081000_tasks_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS tasks;`)
	return err
}
