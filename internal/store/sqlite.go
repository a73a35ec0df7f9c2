package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	_ "modernc.org/sqlite"
)

// Store is the persistence surface used by the rest of the service: the
// settings key-value store (token persistence), the discovered-device cache
// and the delivered-event log.
type Store interface {
	Settings() SettingsStore

	SetDevice(dev *models.Device) error
	GetDevice(id int64) (*models.Device, bool)
	ListDevices() ([]*models.Device, error)

	AppendEvent(kind string, deviceID int64, correlation string) error
	CountEvents(since time.Time) (int, error)

	Close() error
}

// SQLiteStore provides SQLite-based storage with WAL mode.
// It is thread-safe and supports concurrent access.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	logger   *logging.Logger
	settings SettingsStore

	// Retention cleanup
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithRetention(dbPath, 30) // Default 30 days retention
}

// NewSQLiteStoreWithRetention creates a new SQLite store with custom retention
func NewSQLiteStoreWithRetention(dbPath string, retentionDays int) (*SQLiteStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	settingsStore, err := NewSQLiteSettingsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{
		db:            db,
		logger:        logging.NewLogger(),
		settings:      settingsStore,
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	if retentionDays > 0 {
		store.startCleanup()
	}

	return store, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS devices (
					id INTEGER PRIMARY KEY,
					description TEXT NOT NULL,
					kind TEXT NOT NULL,
					battery_life REAL,
					battery_unit TEXT NOT NULL DEFAULT 'percent',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					kind TEXT NOT NULL,
					device_id INTEGER NOT NULL,
					correlation TEXT NOT NULL,
					received_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_devices_kind ON devices(kind);
				CREATE INDEX IF NOT EXISTS idx_events_received_at ON events(received_at);
				CREATE INDEX IF NOT EXISTS idx_events_device_id ON events(device_id);
			`,
		},
	}

	for _, migration := range migrations {
		if migration.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(migration.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: migration.version, Err: err}
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: migration.version, Err: err}
		}
	}

	return nil
}

// Settings returns the key-value settings store
func (s *SQLiteStore) Settings() SettingsStore {
	return s.settings
}

// SetDevice stores or updates a discovered device
func (s *SQLiteStore) SetDevice(dev *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := dev.Unit
	if unit == "" {
		unit = models.BatteryPercent
	}

	query := `
		INSERT INTO devices (id, description, kind, battery_life, battery_unit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			kind = excluded.kind,
			battery_life = excluded.battery_life,
			battery_unit = excluded.battery_unit,
			updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, dev.ID, dev.Description, dev.Kind, dev.BatteryLife, string(unit), time.Now())
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set device", Err: err}
	}
	return nil
}

// GetDevice retrieves a cached device by its Ring id
func (s *SQLiteStore) GetDevice(id int64) (*models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT id, description, kind, battery_life, battery_unit, updated_at FROM devices WHERE id = ?", id)
	dev, err := scanDevice(row)
	if err != nil {
		return nil, false
	}
	return dev, true
}

// ListDevices returns all cached devices
func (s *SQLiteStore) ListDevices() ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, description, kind, battery_life, battery_unit, updated_at FROM devices ORDER BY id")
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list devices", Err: err}
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan device", Err: err}
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var dev models.Device
	var battery sql.NullFloat64
	var unit string
	if err := row.Scan(&dev.ID, &dev.Description, &dev.Kind, &battery, &unit, &dev.UpdatedAt); err != nil {
		return nil, err
	}
	if battery.Valid {
		v := battery.Float64
		dev.BatteryLife = &v
	}
	dev.Unit = models.BatteryUnit(unit)
	return &dev, nil
}

// AppendEvent records a processed webhook delivery
func (s *SQLiteStore) AppendEvent(kind string, deviceID int64, correlation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO events (kind, device_id, correlation, received_at) VALUES (?, ?, ?, ?)",
		kind, deviceID, correlation, time.Now(),
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "append event", Err: err}
	}
	return nil
}

// CountEvents returns the number of logged events received after since
func (s *SQLiteStore) CountEvents(since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events WHERE received_at >= ?", since).Scan(&count)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count events", Err: err}
	}
	return count, nil
}

// startCleanup runs the event-log retention sweep once a day
func (s *SQLiteStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(24 * time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupDone:
				return
			case <-s.cleanupTicker.C:
				if err := s.cleanupOldEvents(); err != nil {
					s.logger.Error("event retention cleanup failed", "error", err.Error())
				}
			}
		}
	}()
}

func (s *SQLiteStore) cleanupOldEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.Exec("DELETE FROM events WHERE received_at < ?", cutoff)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "cleanup events", Err: err}
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("event retention cleanup", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
