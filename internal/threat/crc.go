package threat

import "encoding/binary"

// CRCModel параметры CRC в модели Rocksoft
type CRCModel struct {
	Name       string `json:"name"`
	Poly       uint32 `json:"poly"`
	Width      uint8  `json:"width"`
	Init       uint32 `json:"init"`
	ReflectIn  bool   `json:"reflect_in"`
	ReflectOut bool   `json:"reflect_out"`
	XorOut     uint32 `json:"xor_out"`
}

var crcTable = []CRCModel{
	{Name: "CRC-8", Poly: 0x07, Width: 8},
	{Name: "CRC-8-CCITT", Poly: 0x07, Width: 8, XorOut: 0x55},
	{Name: "CRC-16", Poly: 0x8005, Width: 16, ReflectIn: true, ReflectOut: true},
	{Name: "CRC-16-CCITT", Poly: 0x1021, Width: 16, Init: 0xFFFF, ReflectIn: true, ReflectOut: true},
	{Name: "CRC-16-IBM", Poly: 0x8005, Width: 16, ReflectIn: true, ReflectOut: true},
	{Name: "CRC-32", Poly: 0x04C11DB7, Width: 32, Init: 0xFFFFFFFF, ReflectIn: true, ReflectOut: true, XorOut: 0xFFFFFFFF},
	{Name: "CRC-32-MPEG", Poly: 0x04C11DB7, Width: 32, Init: 0xFFFFFFFF},
}

// CRCModels копия встроенной таблицы полиномов в порядке перебора
func CRCModels() []CRCModel {
	return append([]CRCModel(nil), crcTable...)
}

func reflectBits(v uint32, n uint8) uint32 {
	var r uint32
	for i := uint8(0); i < n; i++ {
		if v&(1<<i) != 0 {
			r |= 1 << (n - 1 - i)
		}
	}
	return r
}

func (m CRCModel) mask() uint32 {
	if m.Width >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<m.Width - 1
}

// Size длина контрольной суммы в байтах
func (m CRCModel) Size() int { return int(m.Width) / 8 }

// Checksum побитовый расчет CRC
func (m CRCModel) Checksum(data []byte) uint32 {
	top := uint32(1) << (m.Width - 1)
	mask := m.mask()
	crc := m.Init & mask
	for _, b := range data {
		in := uint32(b)
		if m.ReflectIn {
			in = reflectBits(in, 8)
		}
		crc ^= in << (m.Width - 8)
		for j := 0; j < 8; j++ {
			if crc&top != 0 {
				crc = (crc << 1) ^ m.Poly
			} else {
				crc <<= 1
			}
			crc &= mask
		}
	}
	if m.ReflectOut {
		crc = reflectBits(crc, m.Width)
	}
	return (crc ^ m.XorOut) & mask
}

// Append дописывает CRC в конец данных старшим байтом вперед
func (m CRCModel) Append(data []byte) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], m.Checksum(data))
	return append(data, buf[4-m.Size():]...)
}

// Matches проверяет, что за data[:pos] записан CRC этой модели
func (m CRCModel) Matches(frame []byte, pos int) bool {
	n := m.Size()
	if pos <= 0 || pos+n > len(frame) {
		return false
	}
	var stored uint32
	for _, b := range frame[pos : pos+n] {
		stored = stored<<8 | uint32(b)
	}
	return stored == m.Checksum(frame[:pos])
}

// findCRCPosition ищет CRC в последних 1-4 байтах кадра; -1 если не найден
func (m CRCModel) findCRCPosition(frame []byte) int {
	if len(frame) < minCRCFrameLen {
		return -1
	}
	lo := max(1, len(frame)-4)
	for pos := len(frame) - 1; pos >= lo; pos-- {
		if m.Matches(frame, pos) {
			return pos
		}
	}
	return -1
}
