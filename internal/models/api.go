package models

import "time"

// HealthStatus состояние сервиса и его зависимостей
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	SQLite    string    `json:"sqlite"`
	MQTT      string    `json:"mqtt"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse статистика сервиса
type StatsResponse struct {
	ActiveSessions int   `json:"active_sessions"`
	KnownDevices   int   `json:"known_devices"`
	DeviceCapacity int   `json:"device_capacity"`
	QueueLength    int   `json:"queue_length"`
	QueueCapacity  int   `json:"queue_capacity"`
	Workers        int   `json:"workers"`
	AnalysesTotal  int64 `json:"analyses_total"`
	PulsesTotal    int64 `json:"pulses_total"`
	FramesTotal    int64 `json:"frames_total"`
}

// SessionInfo ответ на создание сессии и запрос ее состояния
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Pulses    int       `json:"pulses"`
	Frames    int       `json:"frames"`
}

// IngestResult итог приема пакета импульсов или кадров
type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// RegisterDeviceRequest регистрация отпечатка сессии под именем
type RegisterDeviceRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// RegisterDeviceResponse идентификатор и имя после усечения
type RegisterDeviceResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// VerifyDeviceRequest проверка подлинности заявленного устройства
type VerifyDeviceRequest struct {
	SessionID string `json:"session_id"`
	Claimed   string `json:"claimed"`
}

// VerifyDeviceResponse уверенность в подлинности, 0 при подозрении на подделку
type VerifyDeviceResponse struct {
	Claimed     string `json:"claimed"`
	Confidence  uint8  `json:"confidence"`
	Counterfeit bool   `json:"counterfeit"`
}
