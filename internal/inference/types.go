package inference

import (
	"fmt"
	"strings"
)

// Modulation тип модуляции
type Modulation int

const (
	ModUnknown Modulation = iota
	ModOOK
	ModASK
	ModFSK
	ModGFSK
	ModMSK
	ModPSK
)

var modulationNames = map[Modulation]string{
	ModUnknown: "Unknown",
	ModOOK:     "OOK",
	ModASK:     "ASK",
	ModFSK:     "FSK",
	ModGFSK:    "GFSK",
	ModMSK:     "MSK",
	ModPSK:     "PSK",
}

func (m Modulation) String() string {
	if s, ok := modulationNames[m]; ok {
		return s
	}
	return "Unknown"
}

func (m Modulation) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Modulation) UnmarshalText(text []byte) error {
	for k, v := range modulationNames {
		if strings.EqualFold(v, string(text)) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown modulation %q", text)
}

// Encoding линейное кодирование битов
type Encoding int

const (
	EncUnknown Encoding = iota
	EncNRZ
	EncManchester
	EncManchesterIEEE
	EncMiller
	EncPWM
	EncPPM
	EncRZ
)

var encodingNames = map[Encoding]string{
	EncUnknown:        "Unknown",
	EncNRZ:            "NRZ",
	EncManchester:     "Manchester",
	EncManchesterIEEE: "Manchester-IEEE",
	EncMiller:         "Miller",
	EncPWM:            "PWM",
	EncPPM:            "PPM",
	EncRZ:             "RZ",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return "Unknown"
}

func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Encoding) UnmarshalText(text []byte) error {
	for k, v := range encodingNames {
		if strings.EqualFold(v, string(text)) {
			*e = k
			return nil
		}
	}
	return fmt.Errorf("unknown encoding %q", text)
}

// Check результат отдельной эвристической проверки
type Check int

const (
	CheckFail Check = iota
	CheckPass
	// CheckUnsupported проверка объявлена, но не реализована
	CheckUnsupported
)

func (c Check) String() string {
	switch c {
	case CheckPass:
		return "pass"
	case CheckUnsupported:
		return "unsupported"
	default:
		return "fail"
	}
}

// Passed true только для CheckPass
func (c Check) Passed() bool { return c == CheckPass }

// Symbol элемент алфавита символов
type Symbol struct {
	Name        string `json:"name"`
	WidthUS     uint16 `json:"width_us"`
	ToleranceUS uint16 `json:"tolerance_us"`
	Value       uint8  `json:"value"`
}

// PulseCluster группа импульсов с близкой длительностью
type PulseCluster struct {
	CenterUS uint16 `json:"center_us"`
	SpreadUS uint16 `json:"spread_us"`
	Count    uint32 `json:"count"`
	Symbol   uint8  `json:"symbol"`
}

// Hypothesis гипотеза о протоколе
type Hypothesis struct {
	Modulation Modulation `json:"modulation"`
	Encoding   Encoding   `json:"encoding"`
	BaudRate   uint32     `json:"baud_rate"`
	BitRate    uint32     `json:"bit_rate"`

	SymbolPeriodUS uint16   `json:"symbol_period_us"`
	ShortPulseUS   uint16   `json:"short_pulse_us"`
	LongPulseUS    uint16   `json:"long_pulse_us"`
	Symbols        []Symbol `json:"symbols"`

	PreamblePattern uint16 `json:"preamble_pattern"`
	PreambleBits    uint32 `json:"preamble_bits"`
	HeaderBits      uint32 `json:"header_bits"`
	PayloadBits     uint32 `json:"payload_bits"`
	ChecksumBits    uint32 `json:"checksum_bits"`
	TotalFrameBits  uint32 `json:"total_frame_bits"`

	InterFrameGapUS uint32 `json:"inter_frame_gap_us"`
	FrameDurationUS uint32 `json:"frame_duration_us"`

	ModulationConfidence uint8 `json:"modulation_confidence"`
	EncodingConfidence   uint8 `json:"encoding_confidence"`
	TimingConfidence     uint8 `json:"timing_confidence"`
	StructureConfidence  uint8 `json:"structure_confidence"`
	OverallConfidence    uint8 `json:"overall_confidence"`

	// Quick true, если гипотеза получена быстрым анализом одного кадра
	Quick       bool   `json:"quick"`
	Description string `json:"description"`
}

// symbolName SHORT, LONG, далее SYM<n>
func symbolName(i int) string {
	switch i {
	case 0:
		return "SHORT"
	case 1:
		return "LONG"
	default:
		return fmt.Sprintf("SYM%d", i)
	}
}

func describe(h Hypothesis) string {
	return fmt.Sprintf("Protocol: %s/%s @ %d baud\n"+
		"Symbol period: %d us\n"+
		"Frame: %d preamble + %d payload + %d checksum bits\n"+
		"Confidence: %d%%\n",
		h.Modulation, h.Encoding, h.BaudRate,
		h.SymbolPeriodUS,
		h.PreambleBits, h.PayloadBits, h.ChecksumBits,
		h.OverallConfidence,
	)
}
