// Package fingerprint идентифицирует передатчики по аппаратным особенностям сигнала:
// дрейфу интервалов, крутизне фронтов, стабильности тактового генератора и огибающей RSSI
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// SignatureLen число точек огибающей RSSI
	SignatureLen = 16
	// BinarySize размер двоичного представления отпечатка
	BinarySize = 32
	// hashedBytes хеш считается по всем байтам до поля хеша
	hashedBytes = 30
)

// RFFingerprint отпечаток передатчика
type RFFingerprint struct {
	DriftMean         uint32              `json:"drift_mean"`
	DriftVariance     uint32              `json:"drift_variance"`
	RiseSlopeAvg      uint16              `json:"rise_slope_avg"`
	FallSlopeAvg      uint16              `json:"fall_slope_avg"`
	ClockStabilityPPM uint8               `json:"clock_stability_ppm"`
	RSSISignature     [SignatureLen]uint8 `json:"rssi_signature"`
	Hash              uint16              `json:"hash"`
}

// Двоичное представление (little-endian):
//
//	0  u32 drift mean
//	4  u32 drift variance
//	8  u16 rise slope
//	10 u16 fall slope
//	12 u8  clock stability ppm
//	13 16  RSSI signature
//	29 u8  padding
//	30 u16 hash (CRC-16-CCITT байтов 0..29)
func (f RFFingerprint) layout() [BinarySize]byte {
	var b [BinarySize]byte
	binary.LittleEndian.PutUint32(b[0:], f.DriftMean)
	binary.LittleEndian.PutUint32(b[4:], f.DriftVariance)
	binary.LittleEndian.PutUint16(b[8:], f.RiseSlopeAvg)
	binary.LittleEndian.PutUint16(b[10:], f.FallSlopeAvg)
	b[12] = f.ClockStabilityPPM
	copy(b[13:29], f.RSSISignature[:])
	binary.LittleEndian.PutUint16(b[30:], f.Hash)
	return b
}

// ComputeHash CRC-16-CCITT (init 0xFFFF) по первым 30 байтам представления
func (f RFFingerprint) ComputeHash() uint16 {
	b := f.layout()
	return crc16CCITT(b[:hashedBytes])
}

// Sealed возвращает копию с пересчитанным хешем
func (f RFFingerprint) Sealed() RFFingerprint {
	f.Hash = f.ComputeHash()
	return f
}

// Valid true, если хеш соответствует содержимому
func (f RFFingerprint) Valid() bool {
	return f.Hash == f.ComputeHash()
}

// Equal сравнение по двоичному представлению
func (f RFFingerprint) Equal(o RFFingerprint) bool {
	return f.layout() == o.layout()
}

func (f RFFingerprint) MarshalBinary() ([]byte, error) {
	b := f.layout()
	return b[:], nil
}

// UnmarshalBinary разбирает 32 байта и проверяет хеш
func (f *RFFingerprint) UnmarshalBinary(data []byte) error {
	if len(data) != BinarySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLayout, len(data))
	}
	var out RFFingerprint
	out.DriftMean = binary.LittleEndian.Uint32(data[0:])
	out.DriftVariance = binary.LittleEndian.Uint32(data[4:])
	out.RiseSlopeAvg = binary.LittleEndian.Uint16(data[8:])
	out.FallSlopeAvg = binary.LittleEndian.Uint16(data[10:])
	out.ClockStabilityPPM = data[12]
	copy(out.RSSISignature[:], data[13:29])
	out.Hash = binary.LittleEndian.Uint16(data[30:])
	if !out.Valid() {
		return ErrHashMismatch
	}
	*f = out
	return nil
}

// String шестнадцатеричное двоичное представление
func (f RFFingerprint) String() string {
	b := f.layout()
	return hex.EncodeToString(b[:])
}

func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
