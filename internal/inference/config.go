package inference

import "github.com/tworjaga/flipper-rf-lab/internal/models"

// Эвристические уверенности (0-100). Значения подобраны вручную и
// статистического обоснования не имеют
const (
	ConfidenceOOKAsymmetric = 90
	ConfidenceOOKSymmetric  = 50
	ConfidenceFSK           = 85
	ConfidenceASKSingle     = 80
	ConfidenceDefault       = 50
	ConfidenceUnknown       = 30

	ConfidenceManchester      = 85
	ConfidencePWM             = 80
	ConfidenceNRZ             = 70
	ConfidenceEncodingUnknown = 40

	ConfidenceTimingStable   = 90
	ConfidenceTimingModerate = 70
	ConfidenceTimingUnstable = 50

	ConfidenceStructureHigh   = 80
	ConfidenceStructureMedium = 60
	ConfidenceStructureLow    = 40

	ConfidenceQuickOOK     = 60
	ConfidenceQuickASK     = 50
	ConfidenceQuickOverall = 40
)

const (
	// MaxSymbolTypes размер алфавита символов
	MaxSymbolTypes = 8
	// MaxPreambleBytes предел длины преамбулы
	MaxPreambleBytes = 32
	// DefaultFrameCapacity число кадров для анализа
	DefaultFrameCapacity = 100
	// quickOOKThresholdDBm ниже этого уровня быстрый анализ предполагает OOK
	quickOOKThresholdDBm = -80
)

// Config пороги и емкости движка вывода протокола
type Config struct {
	PulseCapacity int
	FrameCapacity int

	// LongPulseUS импульсы длиннее считаются длинными при проверке OOK
	LongPulseUS uint16
	// PeakFloorPercent минимальная доля пика гистограммы от числа меток
	PeakFloorPercent uint32
	// MaxClusters предел кластеров символов
	MaxClusters int

	MinPulses int
	MinFrames int
	// ManchesterMinPulses минимум импульсов для проверки Manchester
	ManchesterMinPulses int
	// Окно доли переходов для Manchester, проценты включительно
	ManchesterMinRate int
	ManchesterMaxRate int

	StructureHighFrames   int
	StructureMediumFrames int
}

// DefaultConfig исходные значения
func DefaultConfig() Config {
	return Config{
		PulseCapacity:         models.MaxPulseCount,
		FrameCapacity:         DefaultFrameCapacity,
		LongPulseUS:           1000,
		PeakFloorPercent:      5,
		MaxClusters:           3,
		MinPulses:             10,
		MinFrames:             2,
		ManchesterMinPulses:   20,
		ManchesterMinRate:     40,
		ManchesterMaxRate:     60,
		StructureHighFrames:   10,
		StructureMediumFrames: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PulseCapacity <= 0 {
		c.PulseCapacity = d.PulseCapacity
	}
	if c.FrameCapacity <= 0 {
		c.FrameCapacity = d.FrameCapacity
	}
	if c.LongPulseUS == 0 {
		c.LongPulseUS = d.LongPulseUS
	}
	if c.PeakFloorPercent == 0 {
		c.PeakFloorPercent = d.PeakFloorPercent
	}
	if c.MaxClusters <= 0 || c.MaxClusters > MaxSymbolTypes {
		c.MaxClusters = d.MaxClusters
	}
	if c.MinPulses <= 0 {
		c.MinPulses = d.MinPulses
	}
	if c.MinFrames <= 0 {
		c.MinFrames = d.MinFrames
	}
	if c.ManchesterMinPulses <= 0 {
		c.ManchesterMinPulses = d.ManchesterMinPulses
	}
	if c.ManchesterMinRate <= 0 || c.ManchesterMaxRate <= c.ManchesterMinRate {
		c.ManchesterMinRate, c.ManchesterMaxRate = d.ManchesterMinRate, d.ManchesterMaxRate
	}
	if c.StructureHighFrames <= 0 {
		c.StructureHighFrames = d.StructureHighFrames
	}
	if c.StructureMediumFrames <= 0 {
		c.StructureMediumFrames = d.StructureMediumFrames
	}
	return c
}
