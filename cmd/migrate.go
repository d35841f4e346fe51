package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/db"
)

var withClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		sqlPath := filepath.Join("migrations", "001_init.sql")
		sqlBytes, err := os.ReadFile(sqlPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", sqlPath, err)
		}

		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		for _, stmt := range splitStatements(string(sqlBytes)) {
			if _, err := sqlDB.Exec(stmt); err != nil {
				_, _ = sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1")
				return fmt.Errorf("exec migration: %w", err)
			}
		}
		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			return fmt.Errorf("enable fk checks: %w", err)
		}

		if withClickHouse {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()

			chPath := filepath.Join("migrations", "clickhouse_001_init.sql")
			chBytes, err := os.ReadFile(chPath)
			if err != nil {
				return fmt.Errorf("read migration file %s: %w", chPath, err)
			}
			for _, stmt := range splitStatements(string(chBytes)) {
				if _, err := chDB.Exec(stmt); err != nil {
					return fmt.Errorf("exec clickhouse migration: %w", err)
				}
			}
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&withClickHouse, "with-clickhouse", false, "also apply the ClickHouse schema")
}

func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
