package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	AppVersion             = "v1.2.0"
	AppPort                = "3000"
	AppDebug               = false
	AppBasicAuthCredential []string
	AppBasePath            = ""
	AppTrustedProxies      []string // Trusted proxy IP ranges (e.g., "0.0.0.0/0" for all, or specific CIDRs)
	AppCorsAllowedOrigins  = []string{"http://localhost:3000", "http://localhost:5173"}

	PathStorages = "storages"

	// Database (cache + detection records)
	DBDriver   = "sqlite"
	DBName     = "" // file path for sqlite, database name for postgres; empty = storages/audit.db
	DBHost     = "localhost"
	DBPort     = 5432
	DBUser     = "postgres"
	DBPassword = ""

	// Optional Valkey cache backend
	ValkeyEnabled   = false
	ValkeyAddress   = "localhost:6379"
	ValkeyPassword  = ""
	ValkeyDB        = 0
	ValkeyKeyPrefix = "azaudit:"

	// Remote directory API
	DirectoryBaseURL  = "https://graph.microsoft.com/v1.0"
	DirectoryToken    = ""
	DirectoryTimeout  = 30 * time.Second
	DirectoryPageSize = 999

	// Outbound retry policy
	RetryMaxRetries = 3
	RetryBaseDelay  = 1 * time.Second

	// Cache TTLs per logical type
	CacheDefaultTTL      = 30 * time.Minute
	CacheUsersTTL        = 30 * time.Minute
	CacheLicensesTTL     = 30 * time.Minute
	CacheOrganizationTTL = 60 * time.Minute

	CacheRefreshDelay     = 100 * time.Millisecond
	CacheRefreshQueueSize = 256
	CacheSweepInterval    = 5 * time.Minute

	// Detection
	DetectionCacheTTL        = 30 * time.Second
	DetectionScanIntervalMin = 30
	DetectionInactiveDays    = 90
)

func init() {
	if v := strings.TrimSpace(os.Getenv("DIRECTORY_BASE_URL")); v != "" {
		DirectoryBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("DIRECTORY_TOKEN")); v != "" {
		DirectoryToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DIRECTORY_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			DirectoryTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			RetryMaxRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETRY_BASE_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			RetryBaseDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("CACHE_DEFAULT_TTL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			CacheDefaultTTL = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("DETECTION_SCAN_INTERVAL_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			DetectionScanIntervalMin = n
		}
	}
	loadScanIntervalFromDB()
	if v := strings.TrimSpace(os.Getenv("DETECTION_INACTIVE_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			DetectionInactiveDays = n
		}
	}
	loadInactiveDaysFromDB()
}

func SetScanIntervalMins(v int) {
	if v < 1 {
		v = 1
	}
	DetectionScanIntervalMin = v
}

func SaveScanIntervalMins(v int) error {
	SetScanIntervalMins(v)
	return saveGlobalSetting("detection_scan_interval_mins", strconv.Itoa(DetectionScanIntervalMin))
}

func SetInactiveDays(v int) {
	if v < 1 {
		v = 1
	}
	DetectionInactiveDays = v
}

func SaveInactiveDays(v int) error {
	SetInactiveDays(v)
	return saveGlobalSetting("detection_inactive_days", strconv.Itoa(DetectionInactiveDays))
}

func loadScanIntervalFromDB() {
	if v, ok := loadGlobalSetting("detection_scan_interval_mins"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			DetectionScanIntervalMin = n
		}
	}
}

func loadInactiveDaysFromDB() {
	if v, ok := loadGlobalSetting("detection_inactive_days"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			DetectionInactiveDays = n
		}
	}
}

func openSettingsDB() (*sql.DB, error) {
	dbPath := fmt.Sprintf("%s/settings.db", PathStorages)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_settings (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadGlobalSetting(key string) (string, bool) {
	db, err := openSettingsDB()
	if err != nil {
		return "", false
	}
	defer db.Close()

	var v sql.NullString
	if err := db.QueryRow(`SELECT value FROM global_settings WHERE key = ?`, key).Scan(&v); err != nil {
		return "", false
	}
	if !v.Valid {
		return "", false
	}
	return v.String, true
}

func saveGlobalSetting(key, value string) error {
	db, err := openSettingsDB()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO global_settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
