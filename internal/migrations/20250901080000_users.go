package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	m.addMigration(&migration{
		version: "20250901080000",
		up:      mig_20250901080000_users_up,
		down:    mig_20250901080000_users_down,
	})
}

func mig_20250901080000_users_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            employee_code BIGINT NOT NULL UNIQUE,
            name VARCHAR(100) NOT NULL,
            username VARCHAR(50) NOT NULL UNIQUE,
            email VARCHAR(255) UNIQUE,
            password_hash TEXT NOT NULL,
            department VARCHAR(50) NOT NULL DEFAULT '',
            role VARCHAR(20) NOT NULL CHECK (role IN ('Admin', 'Employee', 'TeamLead', 'Manager', 'Management')),
            reporting_manager_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
            team_lead_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_users_reporting_manager ON users(reporting_manager_id);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_users_team_lead ON users(team_lead_id);
    `)
	if err != nil {
		return err
	}

	// Seed with default admin
	password := "admin"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}

	_, err = tx.Exec(`
        INSERT INTO users (employee_code, name, username, password_hash, department, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (username) DO NOTHING;
    `, 1001, "Administrator", "admin", string(hashedPassword), "IT - SOFTWARE", "Admin")

	return err
}

func mig_20250901080000_users_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS users;`)
	return err
}
