// Package config reads the program's settings from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dukerupert/clubhouse/internal/backup"
	"github.com/dukerupert/clubhouse/internal/importer"
)

type Config struct {
	// HTTP server
	Addr     string
	LogLevel string

	// Database
	DBPath string

	// Backups
	BackupDir           string
	BackupPassphrase    string
	BackupRetentionDays int
	S3Endpoint          string
	S3Bucket            string
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string

	// Google Sheets import
	SheetsID              string
	SheetsRange           string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

// Load reads .env, if any, then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		Addr:     getEnv("CLUBHOUSE_ADDR", "127.0.0.1:8080"),
		LogLevel: getEnv("CLUBHOUSE_LOG_LEVEL", "info"),

		DBPath: getEnv("CLUBHOUSE_DB_PATH", "clubhouse.db"),

		BackupDir:           getEnv("CLUBHOUSE_BACKUP_DIR", "backups"),
		BackupPassphrase:    getEnv("CLUBHOUSE_BACKUP_PASSPHRASE", ""),
		BackupRetentionDays: getEnvInt("CLUBHOUSE_BACKUP_RETENTION_DAYS", 90),
		S3Endpoint:          getEnv("CLUBHOUSE_S3_ENDPOINT", ""),
		S3Bucket:            getEnv("CLUBHOUSE_S3_BUCKET", ""),
		S3Region:            getEnv("CLUBHOUSE_S3_REGION", "us-east-1"),
		S3AccessKey:         getEnv("CLUBHOUSE_S3_ACCESS_KEY", ""),
		S3SecretKey:         getEnv("CLUBHOUSE_S3_SECRET_KEY", ""),

		SheetsID:              getEnv("CLUBHOUSE_SHEETS_ID", ""),
		SheetsRange:           getEnv("CLUBHOUSE_SHEETS_RANGE", "Members!A:Q"),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}

	if _, port, err := net.SplitHostPort(c.Addr); err != nil {
		problems = append(problems, fmt.Sprintf("invalid listen address '%s': %v", c.Addr, err))
	} else if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.BackupRetentionDays < 0 {
		problems = append(problems, fmt.Sprintf("invalid backup retention %d: must not be negative", c.BackupRetentionDays))
	}

	s3Set := c.S3Bucket != "" || c.S3AccessKey != "" || c.S3SecretKey != ""
	if s3Set && !c.S3().Enabled() {
		problems = append(problems, "S3 backups need CLUBHOUSE_S3_BUCKET, CLUBHOUSE_S3_ACCESS_KEY and CLUBHOUSE_S3_SECRET_KEY together")
	}

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (c *Config) S3() backup.S3Config {
	return backup.S3Config{
		Endpoint:  c.S3Endpoint,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

func (c *Config) Backup() backup.Config {
	return backup.Config{
		Dir:        c.BackupDir,
		S3:         c.S3(),
		Passphrase: c.BackupPassphrase,
	}
}

// Sheets returns the import source settings, with spreadsheetID overriding
// the configured one when set.
func (c *Config) Sheets(spreadsheetID string) (importer.SheetsConfig, error) {
	if spreadsheetID == "" {
		spreadsheetID = c.SheetsID
	}
	if spreadsheetID == "" {
		return importer.SheetsConfig{}, fmt.Errorf("no spreadsheet id: set CLUBHOUSE_SHEETS_ID")
	}
	if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
		return importer.SheetsConfig{}, fmt.Errorf("either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
	}
	return importer.SheetsConfig{
		SpreadsheetID:   spreadsheetID,
		Range:           c.SheetsRange,
		CredentialsJSON: c.GoogleCredentialsJSON,
		CredentialsFile: c.GoogleCredentialsFile,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
