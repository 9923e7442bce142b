package fingerprint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDatabaseCapacity емкость базы устройств
	DefaultDatabaseCapacity = 128
	// MaxNameLen длина имени устройства; длинные имена усекаются
	MaxNameLen = 15
)

// Device запись базы устройств
type Device struct {
	Name        string        `json:"name"`
	Fingerprint RFFingerprint `json:"fingerprint"`
	LastSeen    time.Time     `json:"last_seen"`
	MatchCount  uint32        `json:"match_count"`
}

// Persister внешнее хранилище базы устройств
type Persister interface {
	SaveDevice(ctx context.Context, d Device) error
	DeleteDevice(ctx context.Context, name string) error
	LoadDevices(ctx context.Context) ([]Device, error)
}

// MatchResult результат поиска устройства
type MatchResult struct {
	DeviceID   int    `json:"device_id"`
	Name       string `json:"name"`
	Confidence uint8  `json:"confidence"`
	Matched    bool   `json:"matched"`
	// DriftPercent дрейф относительно базового отпечатка устройства
	DriftPercent  uint8 `json:"drift_percent"`
	DriftDetected bool  `json:"drift_detected"`
}

// Database ограниченная база отпечатков с линейным поиском.
// Идентификатор устройства равен его позиции; удаление сдвигает последующие записи
type Database struct {
	mu        sync.RWMutex
	capacity  int
	devices   []Device
	temporal  map[string]*TemporalRecord
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
}

func NewDatabase(capacity int, logger *zap.Logger) *Database {
	if capacity <= 0 {
		capacity = DefaultDatabaseCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		capacity: capacity,
		devices:  make([]Device, 0, capacity),
		temporal: make(map[string]*TemporalRecord),
		logger:   logger,
		now:      time.Now,
	}
}

// SetPersister подключает хранилище; nil отключает сохранение
func (db *Database) SetPersister(p Persister) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.persister = p
}

// Load заменяет содержимое базы записями из хранилища
func (db *Database) Load(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.persister == nil {
		return nil
	}
	devices, err := db.persister.LoadDevices(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) > db.capacity {
		db.logger.Warn("stored devices exceed capacity, truncating",
			zap.Int("stored", len(devices)),
			zap.Int("capacity", db.capacity),
		)
		devices = devices[:db.capacity]
	}
	db.devices = append(db.devices[:0], devices...)
	db.temporal = make(map[string]*TemporalRecord)
	db.logger.Info("device database loaded", zap.Int("devices", len(db.devices)))
	return nil
}

// NormalizeName усекает имя до MaxNameLen байт
func NormalizeName(name string) string {
	if len(name) > MaxNameLen {
		return name[:MaxNameLen]
	}
	return name
}

func (db *Database) indexOf(name string) int {
	for i := range db.devices {
		if db.devices[i].Name == name {
			return i
		}
	}
	return -1
}

// Add регистрирует отпечаток под именем и возвращает идентификатор
func (db *Database) Add(ctx context.Context, f RFFingerprint, name string) (int, error) {
	name = NormalizeName(name)
	if name == "" {
		return -1, ErrInvalidName
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.devices) >= db.capacity {
		db.logger.Error("device database full", zap.Int("capacity", db.capacity))
		return -1, ErrDatabaseFull
	}
	if db.indexOf(name) >= 0 {
		return -1, fmt.Errorf("%w: %s", ErrDeviceExists, name)
	}

	d := Device{Name: name, Fingerprint: f, LastSeen: db.now(), MatchCount: 1}
	if db.persister != nil {
		if err := db.persister.SaveDevice(ctx, d); err != nil {
			return -1, fmt.Errorf("save device %s: %w", name, err)
		}
	}
	db.devices = append(db.devices, d)
	id := len(db.devices) - 1
	db.logger.Info("device added", zap.Int("id", id), zap.String("name", name))
	return id, nil
}

// Remove удаляет устройство по идентификатору
func (db *Database) Remove(ctx context.Context, id int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if id < 0 || id >= len(db.devices) {
		return ErrDeviceNotFound
	}
	name := db.devices[id].Name
	if db.persister != nil {
		if err := db.persister.DeleteDevice(ctx, name); err != nil {
			return fmt.Errorf("delete device %s: %w", name, err)
		}
	}
	db.devices = append(db.devices[:id], db.devices[id+1:]...)
	delete(db.temporal, name)
	db.logger.Info("device removed", zap.Int("id", id), zap.String("name", name))
	return nil
}

func (db *Database) Get(id int) (Device, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if id < 0 || id >= len(db.devices) {
		return Device{}, false
	}
	return db.devices[id], true
}

// FindByName идентификатор устройства по имени
func (db *Database) FindByName(name string) (int, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	i := db.indexOf(NormalizeName(name))
	return i, i >= 0
}

// List копия всех записей
func (db *Database) List() []Device {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]Device(nil), db.devices...)
}

func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.devices)
}

func (db *Database) Cap() int { return db.capacity }

// best лучшее совпадение без изменения базы; вызывается под блокировкой
func (db *Database) best(f RFFingerprint) MatchResult {
	res := MatchResult{DeviceID: -1}
	for i := range db.devices {
		if c := Similarity(f, db.devices[i].Fingerprint); c > res.Confidence {
			res.Confidence = c
			res.DeviceID = i
		}
	}
	if res.DeviceID < 0 || res.Confidence < ConfidenceLow {
		res.DeviceID = -1
		return res
	}
	res.Name = db.devices[res.DeviceID].Name
	res.Matched = true
	if rec, ok := db.temporal[res.Name]; ok {
		res.DriftPercent = DriftPercent(rec.Baseline, f)
		res.DriftDetected = res.DriftPercent > DriftThreshold
	}
	return res
}

// Best ищет наиболее похожее устройство, не считая это наблюдением:
// счетчик, время и история не меняются
func (db *Database) Best(f RFFingerprint) MatchResult {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.best(f)
}

// Match ищет наиболее похожее устройство и учитывает наблюдение. Совпадение
// принимается при уверенности не ниже ConfidenceLow; тогда обновляются счетчик,
// время и история
func (db *Database) Match(f RFFingerprint) MatchResult {
	db.mu.Lock()
	defer db.mu.Unlock()

	res := db.best(f)
	if !res.Matched {
		return res
	}

	now := db.now()
	d := &db.devices[res.DeviceID]
	d.LastSeen = now
	d.MatchCount++

	rec, ok := db.temporal[d.Name]
	if !ok {
		rec = newTemporalRecord(d.Name, f, now)
		db.temporal[d.Name] = rec
	}
	rec.observe(f, now)
	res.DriftPercent, res.DriftDetected = rec.checkDrift(f)
	if res.DriftDetected {
		db.logger.Warn("temporal drift detected",
			zap.String("device", d.Name),
			zap.Uint8("drift_percent", res.DriftPercent),
		)
	}
	return res
}

// CheckDrift сравнивает отпечаток с базовым отпечатком устройства.
// Без истории наблюдений возвращает 0 и false
func (db *Database) CheckDrift(id int, current RFFingerprint) (uint8, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if id < 0 || id >= len(db.devices) {
		return 0, false
	}
	rec, ok := db.temporal[db.devices[id].Name]
	if !ok {
		return 0, false
	}
	return rec.checkDrift(current)
}

// Temporal история наблюдений устройства
func (db *Database) Temporal(id int) (TemporalRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if id < 0 || id >= len(db.devices) {
		return TemporalRecord{}, false
	}
	rec, ok := db.temporal[db.devices[id].Name]
	if !ok {
		return TemporalRecord{}, false
	}
	return rec.snapshot(), true
}

// DetectCounterfeit возвращает уверенность в подлинности заявленного устройства.
// 0, если устройство не найдено или отпечаток лучше совпадает с другим устройством
func (db *Database) DetectCounterfeit(f RFFingerprint, claimed string) uint8 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	claimedID := db.indexOf(NormalizeName(claimed))
	if claimedID < 0 {
		return 0
	}
	claimedConf := Similarity(f, db.devices[claimedID].Fingerprint)
	var bestOther uint8
	for i := range db.devices {
		if i == claimedID {
			continue
		}
		bestOther = max(bestOther, Similarity(f, db.devices[i].Fingerprint))
	}
	if bestOther > claimedConf {
		db.logger.Warn("possible counterfeit device",
			zap.String("claimed", claimed),
			zap.Uint8("claimed_confidence", claimedConf),
			zap.Uint8("other_confidence", bestOther),
		)
		return 0
	}
	return claimedConf
}

// Sync сохраняет все записи во внешнее хранилище
func (db *Database) Sync(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.persister == nil {
		return nil
	}
	for _, d := range db.devices {
		if err := db.persister.SaveDevice(ctx, d); err != nil {
			return fmt.Errorf("sync device %s: %w", d.Name, err)
		}
	}
	db.logger.Info("device database synced", zap.Int("devices", len(db.devices)))
	return nil
}
