package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goldmanhw/storefront/internal/adapter/storage"
	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/service"
	"github.com/goldmanhw/storefront/pkg/sigctx"
	"github.com/spf13/pflag"
)

const (
	storagePathFlag = "storage-path"
	outDirFlag      = "out"
	fileTimeLayout  = "20060102-150405"
)

func main() {
	sigCtx, cancel := sigctx.NotifyContext(context.Background())
	defer cancel()

	storagePath, outDir := getFlagsValues()
	validateFlags(storagePath, outDir)

	sqldb, err := storage.NewSQLDB(sigCtx, storagePath)
	if err != nil {
		slog.Error("failed to connect storage", "err", err)
		fallDown()
	}
	defer sqldb.Close()

	backup := service.NewBackup(storage.NewEntriesRepository(sqldb))

	path, summary, err := writeBackup(sigCtx, backup, outDir)
	if err != nil {
		slog.Error("failed to backup", "err", err)
		fallDown()
	}

	fmt.Printf("backup written to %s\n", path)
	for _, c := range domain.Collections {
		fmt.Printf("\t%s: %d\n", c, summary.Counts[c])
	}
}

func getFlagsValues() (storagePath, outDir string) {
	s := pflag.StringP(storagePathFlag, "s", "", "postgres connection string")
	o := pflag.StringP(outDirFlag, "o", ".", "backup directory")
	pflag.Parse()
	return *s, *o
}

func validateFlags(storagePath, outDir string) {
	var errs []error

	if storagePath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", storagePathFlag))
	}
	if outDir == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", outDirFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

// writeBackup writes into a temp file and renames it once complete.
func writeBackup(
	ctx context.Context, backup *service.Backup, dir string,
) (string, domain.BackupSummary, error) {
	f, err := os.CreateTemp(dir, ".backup-*.json")
	if err != nil {
		return "", domain.BackupSummary{}, err
	}
	defer os.Remove(f.Name())

	summary, err := backup.Backup(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", domain.BackupSummary{}, err
	}

	name := fmt.Sprintf("backup-%s.json", summary.Timestamp.Format(fileTimeLayout))
	path := filepath.Join(dir, name)
	if err := os.Rename(f.Name(), path); err != nil {
		return "", domain.BackupSummary{}, err
	}
	return path, summary, nil
}

func fallDown() {
	os.Exit(2)
}
