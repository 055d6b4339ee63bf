package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	"pump-sniper/internal/storage/clickhouse"
)

// RunClickhouseMigrations ensures the database from the DSN exists and then
// applies all embedded SQL files in lexical order. ClickHouse executes one
// statement per call, so files are split on semicolons.
func RunClickhouseMigrations(ctx context.Context, dsn string) error {
	database, err := databaseFromDSN(dsn)
	if err != nil {
		return err
	}

	admin, err := clickhouse.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect for database creation: %w", err)
	}
	createDB := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)
	if err := admin.Exec(ctx, createDB); err != nil {
		admin.Close()
		return fmt.Errorf("create database %s: %w", database, err)
	}
	admin.Close()

	conn, err := clickhouse.NewConnWithDatabase(ctx, dsn, database)
	if err != nil {
		return fmt.Errorf("connect to database %s: %w", database, err)
	}
	defer conn.Close()

	entries, err := fs.ReadDir(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}

	return nil
}

// databaseFromDSN extracts the database name from a clickhouse:// DSN path.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	database := strings.TrimPrefix(u.Path, "/")
	if database == "" {
		return "", fmt.Errorf("clickhouse dsn has no database: %s", dsn)
	}
	return database, nil
}

// splitStatements splits a migration file into individual statements on
// semicolons, dropping comment lines and empty fragments. Semicolons inside
// string literals are not supported in migration files.
func splitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, line)
	}

	var statements []string
	for _, chunk := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt := strings.TrimSpace(chunk); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
