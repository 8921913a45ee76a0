// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// backup.go implements the journal backup, restore, and migrate commands.
// Backups are zstd-compressed JSON dumps of the whole journal.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/opsforge/quartermaster/internal/db"
	"github.com/opsforge/quartermaster/internal/i18n"
	"github.com/opsforge/quartermaster/internal/model"
)

// writeBackupFile serializes the backup data as JSON and writes it to path,
// compressed with zstd. The file is created with 0600 since it may contain
// host keys and run output.
func writeBackupFile(data *model.BackupData, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("could not create backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("could not create compressor: %w", err)
	}

	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode backup: %w", err)
	}
	return zw.Close()
}

// readBackupFile reads and decompresses a backup file written by
// writeBackupFile.
func readBackupFile(path string) (*model.BackupData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not create decompressor: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("could not decompress backup: %w", err)
	}

	var data model.BackupData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("could not decode backup: %w", err)
	}
	return &data, nil
}

// backupCmd exports the whole journal to a compressed file.
var backupCmd = &cobra.Command{
	Use:     "backup <file>",
	Short:   "Export the journal to a compressed backup file",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(i18n.T("backup.cli_starting"))
		data, err := db.ExportBackup(db.Default())
		if err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_export", err))
		}
		if err := writeBackupFile(data, args[0]); err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_write", err))
		}
		fmt.Println(i18n.T("backup.cli_success", args[0], len(data.Runs), len(data.KnownHosts)))
	},
}

// restoreCmd imports a backup file into the journal. Without --full it
// integrates the backup, skipping runs and hosts that already exist; with
// --full it wipes the journal first.
var restoreCmd = &cobra.Command{
	Use:     "restore <file>",
	Short:   "Import a backup file into the journal",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := readBackupFile(args[0])
		if err != nil {
			log.Fatalf("%s", i18n.T("restore.cli_error_read", err))
		}

		if fullRestore {
			ans := promptForConfirmation(i18n.T("restore.confirm_full"))
			if ans != "yes" && ans != "y" {
				fmt.Println(i18n.T("restore.cancelled"))
				return
			}
		}

		fmt.Println(i18n.T("restore.cli_starting"))
		if err := db.ImportBackup(db.Default(), data, fullRestore); err != nil {
			log.Fatalf("%s", i18n.T("restore.cli_error_import", err))
		}
		fmt.Println(i18n.T("restore.cli_success", len(data.Runs), len(data.KnownHosts)))
	},
}

// migrateCmd copies the journal from the configured database into another
// one, e.g. from the default sqlite file to a postgres server.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the journal to a different database",
	Long: `Exports the current journal and imports it into the database given by
--to-type and --to-dsn. The target database is migrated to the current
schema first; existing data in the target is wiped.`,
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		toType, _ := cmd.Flags().GetString("to-type")
		toDsn, _ := cmd.Flags().GetString("to-dsn")
		if toType == "" || toDsn == "" {
			log.Fatalf("%s", i18n.T("migrate.cli_error_flags"))
		}

		fmt.Println(i18n.T("migrate.cli_starting", appConfig.Database.Type, toType))
		data, err := db.ExportBackup(db.Default())
		if err != nil {
			log.Fatalf("%s", i18n.T("backup.cli_error_export", err))
		}

		target, err := db.NewStoreFromDSN(toType, toDsn)
		if err != nil {
			log.Fatalf("%s", i18n.T("migrate.cli_error_target", err))
		}
		if err := db.ImportBackup(target, data, true); err != nil {
			log.Fatalf("%s", i18n.T("restore.cli_error_import", err))
		}

		fmt.Println(i18n.T("migrate.cli_success", len(data.Runs)))
		fmt.Println(i18n.T("migrate.cli_next_steps", toType, toDsn))
	},
}

func init() {
	migrateCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres, mysql)")
	migrateCmd.Flags().String("to-dsn", "", "Target database DSN")
}
