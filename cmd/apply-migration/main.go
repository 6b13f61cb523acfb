package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"lodepa-air/internal/config"
	"lodepa-air/pkg/database"
	"lodepa-air/pkg/logger"

	"go.uber.org/zap"
)

// apply-migration <file.sql> executes the statements of a migration file in order
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <migration_file.sql>\n", os.Args[0])
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, "console", "apply-migration")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	migrationFile := os.Args[1]
	content, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatal("Failed to read migration file", zap.String("file", migrationFile), zap.Error(err))
	}

	db, err := database.Open(context.Background(), &cfg.Database)
	if err != nil {
		log.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer db.Close()

	statements := splitStatements(string(content))
	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatal("Failed to execute statement",
				zap.Int("statement", i+1),
				zap.String("sql", stmt[:min(100, len(stmt))]),
				zap.Error(err),
			)
		}
		log.Info("Statement executed", zap.Int("statement", i+1), zap.Int("total", len(statements)))
	}

	log.Info("Migration completed", zap.String("file", migrationFile), zap.String("database", cfg.Database.Database))
}

// splitStatements splits on ';' and drops comment lines and empty statements.
// Statements must not contain ';' inside literals.
func splitStatements(content string) []string {
	var out []string
	for _, chunk := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
