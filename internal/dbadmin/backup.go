package dbadmin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup copies dbPath to a sibling file named
// "<name>.backup.<UTC stamp><ext>" and returns its path. A missing
// source database is not an error — a brand-new database has nothing
// to protect (§4.12).
func Backup(dbPath string) (string, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", nil
	}

	ext := filepath.Ext(dbPath)
	base := strings.TrimSuffix(dbPath, ext)
	stamp := time.Now().UTC().Format("20060102_150405")
	backupPath := fmt.Sprintf("%s.backup.%s%s", base, stamp, ext)

	if err := copyFile(dbPath, backupPath); err != nil {
		return "", fmt.Errorf("backup database: %w", err)
	}
	return backupPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
