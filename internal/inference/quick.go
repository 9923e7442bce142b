package inference

import "github.com/tworjaga/flipper-rf-lab/internal/models"

// QuickAnalyze оценка по одному кадру: модуляция по уровню сигнала,
// битовая скорость по длине и длительности
func QuickAnalyze(frame models.Frame) Hypothesis {
	h := Hypothesis{Quick: true}
	if frame.RSSIdBm < quickOOKThresholdDBm {
		h.Modulation = ModOOK
		h.ModulationConfidence = ConfidenceQuickOOK
	} else {
		h.Modulation = ModASK
		h.ModulationConfidence = ConfidenceQuickASK
	}
	if frame.DurationUS > 0 && frame.Length > 0 {
		h.BitRate = uint32(uint64(frame.Length) * 8 * 1_000_000 / uint64(frame.DurationUS))
		h.BaudRate = h.BitRate
	}
	h.FrameDurationUS = frame.DurationUS
	h.OverallConfidence = ConfidenceQuickOverall
	h.Description = describe(h)
	return h
}
