package threat

import (
	"fmt"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

// RiskLevel уровень риска по шкале уязвимости
type RiskLevel uint8

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskLow:      "LOW",
	RiskMedium:   "MEDIUM",
	RiskHigh:     "HIGH",
	RiskCritical: "CRITICAL",
}

func (r RiskLevel) String() string {
	if s, ok := riskNames[r]; ok {
		return s
	}
	return "UNKNOWN"
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	for k, v := range riskNames {
		if v == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", b)
}

// State этап анализа угроз
type State uint8

const (
	StateIdle State = iota
	StateCollecting
	StateAnalyzingEntropy
	StateAnalyzingPatterns
	StateAnalyzingCRC
	StateAssessing
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCollecting:
		return "COLLECTING"
	case StateAnalyzingEntropy:
		return "ANALYZING_ENTROPY"
	case StateAnalyzingPatterns:
		return "ANALYZING_PATTERNS"
	case StateAnalyzingCRC:
		return "ANALYZING_CRC"
	case StateAssessing:
		return "ASSESSING"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Field участок кадра: смещение и длина в байтах
type Field struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// ReplayPair два побайтно одинаковых кадра
type ReplayPair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// Assessment результат оценки защищенности
type Assessment struct {
	Level              RiskLevel `json:"risk_level"`
	VulnerabilityScore uint16    `json:"vulnerability_score"`

	Entropy        fp.Fixed `json:"-"`
	EntropyPerByte float64  `json:"entropy_per_byte"`
	EntropyBits    uint8    `json:"entropy_bits"`

	StaticRatio    uint8   `json:"static_ratio"`
	IsStatic       bool    `json:"is_static"`
	PreambleLength uint8   `json:"preamble_length"`
	Preamble       uint32  `json:"preamble"`
	FixedFields    []Field `json:"fixed_fields,omitempty"`

	HasChecksum bool   `json:"has_checksum"`
	CRCName     string `json:"crc_name,omitempty"`
	CRCPosition int    `json:"crc_position,omitempty"`

	HasRollingCode   bool         `json:"has_rolling_code"`
	RollingCodeField Field        `json:"rolling_code_field"`
	ReplayVulnerable bool         `json:"replay_vulnerable"`
	ReplayPairs      []ReplayPair `json:"replay_pairs,omitempty"`

	FrameCount int    `json:"frame_count"`
	Quick      bool   `json:"quick"`
	Report     string `json:"report,omitempty"`
}

// Factors входные признаки оценки уязвимости
type Factors struct {
	Entropy          fp.Fixed
	StaticRatio      uint8
	HasChecksum      bool
	HasRollingCode   bool
	ReplayVulnerable bool
}

func (a Assessment) factors() Factors {
	return Factors{
		Entropy:          a.Entropy,
		StaticRatio:      a.StaticRatio,
		HasChecksum:      a.HasChecksum,
		HasRollingCode:   a.HasRollingCode,
		ReplayVulnerable: a.ReplayVulnerable,
	}
}
