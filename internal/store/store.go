// Package store persists the bridge's durable state: a small
// key-value settings table in sqlite. The only state the worker is
// allowed to assume across restarts lives here; everything else is
// cache. Writes that change a value publish a setting_changed event so
// cache invalidators can react, mirroring a storage-change listener.
package store

import (
	"time"

	"github.com/pixzlo/bridge/internal/event"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// KeySelectedWorkspace holds the user's explicitly or automatically
// selected workspace id.
const KeySelectedWorkspace = "selected_workspace_id"

// Setting is one persisted key-value pair.
type Setting struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     string `gorm:"column:value"`
	UpdatedAt time.Time
}

// Store reads and writes persisted settings.
type Store struct {
	db  *gorm.DB
	bus event.Bus
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates the settings table.
func Open(path string, bus event.Bus) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings database")
	}

	return New(db, bus)
}

// New builds a Store over an existing gorm connection.
func New(db *gorm.DB, bus event.Bus) (*Store, error) {
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate settings table")
	}

	return &Store{db: db, bus: bus}, nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	var setting Setting
	err := s.db.First(&setting, "key = ?", key).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrapf(err, "failed to read setting %q", key)
	}

	return setting.Value, true, nil
}

// Set upserts key to value. When the stored value actually changes a
// setting_changed event is published, plus a workspace_changed event
// for the selected-workspace key.
func (s *Store) Set(key, value string) error {
	old, existed, err := s.Get(key)
	if err != nil {
		return err
	}
	if existed && old == value {
		return nil
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to write setting %q", key)
	}

	s.publishChange(key, value)
	return nil
}

// Delete removes key. A removal of a present key publishes the same
// change events as a write.
func (s *Store) Delete(key string) error {
	_, existed, err := s.Get(key)
	if err != nil {
		return err
	}

	if err := s.db.Delete(&Setting{}, "key = ?", key).Error; err != nil {
		return errors.Wrapf(err, "failed to delete setting %q", key)
	}

	if existed {
		s.publishChange(key, "")
	}
	return nil
}

func (s *Store) publishChange(key, value string) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(event.Event{Type: event.TypeSettingChanged, Key: key})

	if key == KeySelectedWorkspace {
		s.bus.Publish(event.Event{
			Type:        event.TypeWorkspaceChanged,
			Key:         key,
			WorkspaceID: value,
		})
	}
}
