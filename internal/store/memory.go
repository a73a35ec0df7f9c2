package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ringlink/ringlink/internal/models"
)

// MemoryStore provides an in-memory Store, used by tests and as a fallback
// when no database path is configured. It is thread-safe.
type MemoryStore struct {
	mu       sync.RWMutex
	devices  map[int64]*models.Device
	events   []memoryEvent
	settings SettingsStore
}

type memoryEvent struct {
	kind        string
	deviceID    int64
	correlation string
	receivedAt  time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  make(map[int64]*models.Device),
		settings: NewMemorySettingsStore(),
	}
}

// Settings returns the key-value settings store
func (s *MemoryStore) Settings() SettingsStore {
	return s.settings
}

// SetDevice stores or updates a discovered device
func (s *MemoryStore) SetDevice(dev *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *dev
	copy.UpdatedAt = time.Now()
	if copy.Unit == "" {
		copy.Unit = models.BatteryPercent
	}
	s.devices[dev.ID] = &copy
	return nil
}

// GetDevice retrieves a cached device by its Ring id
func (s *MemoryStore) GetDevice(id int64) (*models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[id]
	if !ok {
		return nil, false
	}
	copy := *dev
	return &copy, true
}

// ListDevices returns all cached devices ordered by id
func (s *MemoryStore) ListDevices() ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]*models.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		copy := *dev
		devices = append(devices, &copy)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// AppendEvent records a processed webhook delivery
func (s *MemoryStore) AppendEvent(kind string, deviceID int64, correlation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, memoryEvent{
		kind:        kind,
		deviceID:    deviceID,
		correlation: correlation,
		receivedAt:  time.Now(),
	})
	return nil
}

// CountEvents returns the number of logged events received after since
func (s *MemoryStore) CountEvents(since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.events {
		if !ev.receivedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

// MemorySettingsStore implements SettingsStore in memory
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettingsStore creates a new in-memory settings store
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: make(map[string]string)}
}

// Get retrieves a setting value
func (s *MemorySettingsStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set sets a setting value
func (s *MemorySettingsStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes a setting
func (s *MemorySettingsStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// GetInt retrieves an integer setting
func (s *MemorySettingsStore) GetInt(key string, defaultVal int) int {
	value, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetInt sets an integer setting
func (s *MemorySettingsStore) SetInt(key string, value int) error {
	return s.Set(key, fmt.Sprintf("%d", value))
}

// GetFloat retrieves a float setting
func (s *MemorySettingsStore) GetFloat(key string, defaultVal float64) float64 {
	value, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	var result float64
	if _, err := fmt.Sscanf(value, "%f", &result); err != nil {
		return defaultVal
	}
	return result
}

// SetFloat sets a float setting
func (s *MemorySettingsStore) SetFloat(key string, value float64) error {
	return s.Set(key, fmt.Sprintf("%f", value))
}

// GetBool retrieves a bool setting
func (s *MemorySettingsStore) GetBool(key string, defaultVal bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return defaultVal
	}
	return v == "true" || v == "1" || v == "yes"
}

// SetBool sets a bool setting
func (s *MemorySettingsStore) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

var _ SettingsStore = (*MemorySettingsStore)(nil)
