package database

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roster/internal/model"
)

// ErrSlotNotFound is returned by Get when nothing has been written under the key.
var ErrSlotNotFound = errors.New("slot not found")

// Slot is a named durable value. Put overwrites the whole value.
type Slot interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

type GormSlot struct {
	db *gorm.DB
}

func NewGormSlot(db *gorm.DB) *GormSlot {
	return &GormSlot{db: db}
}

func (s *GormSlot) Get(key string) ([]byte, error) {
	var slot model.Slot
	err := s.db.First(&slot, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(slot.Value), nil
}

func (s *GormSlot) Put(key string, value []byte) error {
	slot := model.Slot{
		Name:      key,
		Value:     string(value),
		UpdatedAt: time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&slot).Error
}

// MemorySlot keeps values in process memory.
type MemorySlot struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemorySlot) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, ErrSlotNotFound
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (m *MemorySlot) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}
