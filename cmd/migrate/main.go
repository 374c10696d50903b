package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/balance-indicators/internal/config"
	"github.com/dvloznov/balance-indicators/internal/logger"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// runner applies migrations to one dataset.
type runner struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config (default: $BALANCE_CONFIG or balance.yaml)")
		projectID     = flag.String("project", "", "GCP project ID (default from config)")
		datasetID     = flag.String("dataset", "", "BigQuery dataset ID (default from config)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New("")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.Logging.Level)

	if *projectID != "" {
		cfg.BigQuery.ProjectID = *projectID
	}
	if *datasetID != "" {
		cfg.BigQuery.DatasetID = *datasetID
	}
	cfg.Store = config.StoreBigQuery
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Use -project and -dataset or the BALANCE_BIGQUERY_* variables")
	}

	ctx := logger.WithContext(context.Background(), log)

	client, err := bigquery.NewClient(ctx, cfg.BigQuery.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	r := &runner{
		client:    client,
		projectID: cfg.BigQuery.ProjectID,
		datasetID: cfg.BigQuery.DatasetID,
		appliedBy: *appliedBy,
		log:       log,
	}

	log.Info().
		Str("project", r.projectID).
		Str("dataset", r.datasetID).
		Msg("Connected to BigQuery")

	if err := r.run(ctx, *migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func (r *runner) run(ctx context.Context, migrationsDir string) error {
	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	dir, err := resolveDir(migrationsDir)
	if err != nil {
		return err
	}
	migrations, err := readMigrations(dir, r.projectID, r.datasetID, r.log)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	r.log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	r.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	for _, m := range changedMigrations(migrations, applied) {
		r.log.Warn().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applied migration file has changed since it was applied")
	}

	pending := pendingMigrations(migrations, applied)
	for _, m := range pending {
		r.log.Info().Str("migration", m.Filename).Msg("Applying migration")

		if err := r.exec(ctx, r.client.Query(m.SQL)); err != nil {
			return fmt.Errorf("executing %s: %w", m.Filename, err)
		}
		if err := r.recordMigration(ctx, m); err != nil {
			return fmt.Errorf("recording %s: %w", m.Filename, err)
		}
	}

	if len(pending) == 0 {
		r.log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		r.log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
	return nil
}

// resolveDir finds migrationsDir from the repository root or from cmd/migrate.
func resolveDir(migrationsDir string) (string, error) {
	for _, dir := range []string{migrationsDir, filepath.Join("..", "..", migrationsDir)} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found: %s", migrationsDir)
}

// readMigrations reads the migration files in dir, sorted by version, with
// the {{PROJECT_ID}} and {{DATASET_ID}} placeholders substituted.
// The checksum covers the file as written, before substitution.
func readMigrations(dir, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Debug().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Debug().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s",
				migrations[i].Version, migrations[i-1].Filename, migrations[i].Filename)
		}
	}

	return migrations, nil
}

// pendingMigrations returns the migrations whose version is not applied yet.
func pendingMigrations(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// changedMigrations returns applied migrations whose file checksum differs
// from the one recorded.
func changedMigrations(all []Migration, applied []AppliedMigration) []Migration {
	recorded := make(map[int]string, len(applied))
	for _, am := range applied {
		recorded[am.Version] = am.Checksum
	}

	var changed []Migration
	for _, m := range all {
		if sum, ok := recorded[m.Version]; ok && sum != "" && sum != m.Checksum {
			changed = append(changed, m)
		}
	}
	return changed
}

func (r *runner) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (r *runner) ensureSchemaMigrationsTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, r.table("schema_migrations"))

	return r.exec(ctx, r.client.Query(sql))
}

// getAppliedMigrations retrieves the list of already applied migrations
func (r *runner) getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, r.table("schema_migrations"))

	it, err := r.client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func (r *runner) recordMigration(ctx context.Context, m Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, r.table("schema_migrations"))

	q := r.client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.appliedBy},
	}
	return r.exec(ctx, q)
}

func (r *runner) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
