package sqlite

func (s Storage) RunMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS onboarding_claims (
		repo VARCHAR NOT NULL,
		issue_number INTEGER NOT NULL,
		claimed_at INTEGER NOT NULL,
		PRIMARY KEY (repo, issue_number)
	)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id VARCHAR NOT NULL PRIMARY KEY,
		event VARCHAR NOT NULL,
		received_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS deliveries_received_at ON deliveries (received_at)`,
}
