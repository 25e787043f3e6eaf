package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/assetsync/internal/loggy"
)

//go:embed env.sample
var configFS embed.FS

// SetupConfigDirectory creates configDir and writes a sample .env into it
func SetupConfigDirectory(configDir string, backupExisting bool) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	return ExtractEmbeddedFile("env.sample", filepath.Join(configDir, ".env"), backupExisting)
}

// ExtractEmbeddedFile extracts an embedded file to the target path.
// An existing target is left alone unless backupExisting is set, in which case
// it is copied to <target>.<date>.bak and then overwritten.
func ExtractEmbeddedFile(embeddedPath, targetPath string, backupExisting bool) error {
	if _, err := os.Stat(targetPath); err == nil {
		if !backupExisting {
			return nil
		}

		backupPath := fmt.Sprintf("%s.%s.bak", targetPath, time.Now().Format("2006-01-02"))

		existingData, err := os.ReadFile(targetPath)
		if err != nil {
			return fmt.Errorf("failed to read existing file for backup: %w", err)
		}

		if err := os.WriteFile(backupPath, existingData, 0644); err != nil {
			return fmt.Errorf("failed to write backup file: %w", err)
		}

		loggy.Info("Created backup of existing file", "original", targetPath, "backup", backupPath)
	}

	fileData, err := configFS.ReadFile(embeddedPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}

	if err := os.WriteFile(targetPath, fileData, 0644); err != nil {
		return err
	}

	loggy.Info("Extracted embedded file", "source", embeddedPath, "target", targetPath)
	return nil
}
