package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const migrationsDir = "migrations"

// Run applies the file-based migrations in ./migrations. A database that
// already carries the match schema but no migrate metadata (a pre-migrate
// deployment) is baselined to the latest version first.
func Run(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pg.WithInstance(sqlDB, &pg.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if version := baselineVersion(sqlDB); version > 0 {
		log.Printf("[MIGRATE] Existing schema without metadata, baselining to version %d", version)
		if err := m.Force(version); err != nil {
			log.Printf("[MIGRATE] Baseline to version %d failed: %v", version, err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up: %w", err)
	}

	log.Printf("[MIGRATE] Schema up to date")
	return nil
}

// baselineVersion returns the version to force when the matches table exists
// but migrate has no metadata table, and 0 otherwise
func baselineVersion(sqlDB *sql.DB) int {
	if !tableExists(sqlDB, "matches") {
		return 0
	}
	if tableExists(sqlDB, "schema_migrations") {
		return 0
	}
	return latestVersion(migrationsDir)
}

func tableExists(sqlDB *sql.DB, name string) bool {
	var exists bool
	row := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", name)
	if err := row.Scan(&exists); err != nil {
		return false
	}
	return exists
}

// latestVersion scans the migrations directory for numeric version prefixes
// (e.g. 000001_) and returns the highest one
func latestVersion(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	re := regexp.MustCompile(`^0*([0-9]+)_`)
	max := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(f.Name())
		if len(m) < 2 {
			continue
		}
		if v, _ := strconv.Atoi(m[1]); v > max {
			max = v
		}
	}
	return max
}
