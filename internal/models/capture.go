package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	// MaxFrameBytes максимальная длина полезной нагрузки кадра
	MaxFrameBytes = 64
	// MaxPulseCount емкость буфера импульсов по умолчанию
	MaxPulseCount = 4096
	// MaxFrameCount емкость буфера кадров по умолчанию
	MaxFrameCount = 256
)

// Уровни сигнала импульса
const (
	LevelSpace uint8 = 0
	LevelMark  uint8 = 1
)

// Pulse интервал между двумя фронтами радиосигнала
type Pulse struct {
	WidthUS     uint16 `json:"width_us"`
	Level       uint8  `json:"level"`
	TimestampUS uint32 `json:"timestamp_us"`
}

// IsMark true для импульса высокого уровня
func (p Pulse) IsMark() bool {
	return p.Level != LevelSpace
}

// Frame демодулированный пакет от приемника
type Frame struct {
	Data        [MaxFrameBytes]byte
	Length      uint8
	TimestampUS uint32
	RSSIdBm     int16
	FrequencyHz uint32
	DurationUS  uint32
	CRCValid    bool
}

// NewFrame создает кадр из полезной нагрузки; лишние байты отбрасываются
func NewFrame(payload []byte, timestampUS uint32, rssi int16, freqHz uint32) Frame {
	f := Frame{TimestampUS: timestampUS, RSSIdBm: rssi, FrequencyHz: freqHz}
	f.SetPayload(payload)
	return f
}

// SetPayload копирует не более MaxFrameBytes байт
func (f *Frame) SetPayload(payload []byte) {
	n := copy(f.Data[:], payload)
	f.Length = uint8(n)
}

// Payload возвращает значимую часть данных
func (f Frame) Payload() []byte {
	n := int(f.Length)
	if n > MaxFrameBytes {
		n = MaxFrameBytes
	}
	return f.Data[:n]
}

// frameJSON представление кадра на проводе: данные в hex
type frameJSON struct {
	Data        string `json:"data"`
	Length      uint8  `json:"length"`
	TimestampUS uint32 `json:"timestamp_us"`
	RSSIdBm     int16  `json:"rssi_dbm"`
	FrequencyHz uint32 `json:"frequency_hz"`
	DurationUS  uint32 `json:"duration_us,omitempty"`
	CRCValid    bool   `json:"crc_valid"`
}

func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameJSON{
		Data:        hex.EncodeToString(f.Payload()),
		Length:      uint8(len(f.Payload())),
		TimestampUS: f.TimestampUS,
		RSSIdBm:     f.RSSIdBm,
		FrequencyHz: f.FrequencyHz,
		DurationUS:  f.DurationUS,
		CRCValid:    f.CRCValid,
	})
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	var raw frameJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := hex.DecodeString(raw.Data)
	if err != nil {
		return fmt.Errorf("invalid frame data: %w", err)
	}
	if len(data) > MaxFrameBytes {
		return fmt.Errorf("frame payload too long: %d bytes", len(data))
	}
	*f = Frame{
		TimestampUS: raw.TimestampUS,
		RSSIdBm:     raw.RSSIdBm,
		FrequencyHz: raw.FrequencyHz,
		DurationUS:  raw.DurationUS,
		CRCValid:    raw.CRCValid,
	}
	f.SetPayload(data)
	return nil
}

// PulseBatch пакет импульсов для массовой загрузки
type PulseBatch struct {
	Pulses []Pulse `json:"pulses"`
}

// FrameBatch пакет кадров для массовой загрузки
type FrameBatch struct {
	Frames []Frame `json:"frames"`
}
