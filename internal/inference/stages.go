package inference

import (
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

// buildHistograms отдельные гистограммы для меток и пауз
func (e *Engine) buildHistograms(pulses []models.Pulse) {
	var marks, spaces []uint16
	for _, p := range pulses {
		if p.IsMark() {
			marks = append(marks, p.WidthUS)
		} else {
			spaces = append(spaces, p.WidthUS)
		}
	}
	e.marks = newTimingHistogram(marks)
	e.spaces = newTimingHistogram(spaces)
}

// clusterPulses ищет локальные максимумы гистограммы меток выше порога
func (e *Engine) clusterPulses() {
	e.clusters = e.clusters[:0]
	total := e.marks.Total()
	if total < uint64(e.cfg.MinPulses) {
		return
	}
	floor := total * uint64(e.cfg.PeakFloorPercent)
	spread := e.marks.BinWidthUS() * 2
	for i := 1; i < e.marks.NumBins()-1 && len(e.clusters) < e.cfg.MaxClusters; i++ {
		prev, curr, next := e.marks.Bin(i-1), e.marks.Bin(i), e.marks.Bin(i+1)
		if curr > prev && curr > next && uint64(curr)*100 > floor {
			e.clusters = append(e.clusters, PulseCluster{
				CenterUS: e.marks.CenterUS(i),
				SpreadUS: spread,
				Count:    curr,
				Symbol:   uint8(len(e.clusters)),
			})
		}
	}
}

func (e *Engine) detectModulation(h *Hypothesis, pulses []models.Pulse) {
	h.Modulation = e.classifyModulation(pulses)
	switch h.Modulation {
	case ModOOK:
		h.ModulationConfidence = ConfidenceOOKSymmetric
		if CheckOOK(pulses).Passed() {
			h.ModulationConfidence = ConfidenceOOKAsymmetric
		}
	case ModFSK:
		h.ModulationConfidence = ConfidenceDefault
		if e.checkFSK().Passed() {
			h.ModulationConfidence = ConfidenceFSK
		}
	case ModASK:
		h.ModulationConfidence = ConfidenceDefault
		if e.checkASK().Passed() {
			h.ModulationConfidence = ConfidenceASKSingle
		}
	default:
		h.ModulationConfidence = ConfidenceUnknown
	}
}

// classifyModulation OOK если не меньше трети импульсов длинные,
// FSK при двух и более кластерах, иначе ASK
func (e *Engine) classifyModulation(pulses []models.Pulse) Modulation {
	n := len(pulses)
	if n < e.cfg.MinPulses {
		return ModUnknown
	}
	long := 0
	for _, p := range pulses {
		if p.WidthUS > e.cfg.LongPulseUS {
			long++
		}
	}
	if 3*long >= n {
		return ModOOK
	}
	if len(e.clusters) >= 2 {
		return ModFSK
	}
	return ModASK
}

// CheckOOK проверяет асимметрию средних длительностей метки и паузы (более чем вдвое)
func CheckOOK(pulses []models.Pulse) Check {
	var markSum, spaceSum, marks, spaces uint64
	for _, p := range pulses {
		if p.IsMark() {
			markSum += uint64(p.WidthUS)
			marks++
		} else {
			spaceSum += uint64(p.WidthUS)
			spaces++
		}
	}
	if marks == 0 || spaces == 0 {
		return CheckFail
	}
	avgMark, avgSpace := markSum/marks, spaceSum/spaces
	if avgSpace > 2*avgMark || avgMark > 2*avgSpace {
		return CheckPass
	}
	return CheckFail
}

func (e *Engine) checkFSK() Check {
	if len(e.clusters) >= 2 {
		return CheckPass
	}
	return CheckFail
}

func (e *Engine) checkASK() Check {
	if len(e.clusters) == 1 {
		return CheckPass
	}
	return CheckFail
}

func (e *Engine) detectEncoding(h *Hypothesis, pulses []models.Pulse, frames []models.Frame) {
	switch {
	case len(frames) < e.cfg.MinFrames:
		h.Encoding = EncUnknown
	case e.CheckManchester(pulses).Passed():
		h.Encoding = EncManchester
	case CheckPWM(e.clusters).Passed():
		h.Encoding = EncPWM
	case CheckMiller(frames).Passed():
		h.Encoding = EncMiller
	default:
		h.Encoding = EncNRZ
	}

	switch h.Encoding {
	case EncManchester:
		h.EncodingConfidence = ConfidenceManchester
	case EncPWM:
		h.EncodingConfidence = ConfidencePWM
	case EncNRZ:
		h.EncodingConfidence = ConfidenceNRZ
	default:
		h.EncodingConfidence = ConfidenceEncodingUnknown
	}
}

// CheckManchester доля смен уровня между соседними импульсами в окне [40%, 60%]
func (e *Engine) CheckManchester(pulses []models.Pulse) Check {
	n := len(pulses)
	if n < e.cfg.ManchesterMinPulses {
		return CheckFail
	}
	transitions := 0
	for i := 1; i < n; i++ {
		if pulses[i].Level != pulses[i-1].Level {
			transitions++
		}
	}
	rate := 100 * transitions
	if rate >= e.cfg.ManchesterMinRate*(n-1) && rate <= e.cfg.ManchesterMaxRate*(n-1) {
		return CheckPass
	}
	return CheckFail
}

// CheckPWM отношение ширин первых двух кластеров близко к 2:1 или 1:2
func CheckPWM(clusters []PulseCluster) Check {
	if len(clusters) < 2 {
		return CheckFail
	}
	w1, w2 := uint64(clusters[0].CenterUS), uint64(clusters[1].CenterUS)
	if w2 == 0 {
		return CheckFail
	}
	if (10*w1 > 18*w2 && 10*w1 < 22*w2) || (100*w1 > 45*w2 && 100*w1 < 55*w2) {
		return CheckPass
	}
	return CheckFail
}

// CheckMiller не реализована и никогда не выбирает Miller
func CheckMiller(frames []models.Frame) Check {
	return CheckUnsupported
}

// analyzeTiming скорость по самому короткому символу, уверенность по
// коэффициенту вариации длительностей
func (e *Engine) analyzeTiming(h *Hypothesis, pulses []models.Pulse) {
	if len(e.clusters) > 0 {
		shortest, longest := e.clusters[0].CenterUS, e.clusters[0].CenterUS
		for _, c := range e.clusters[1:] {
			shortest = min(shortest, c.CenterUS)
			longest = max(longest, c.CenterUS)
		}
		h.SymbolPeriodUS = shortest
		h.ShortPulseUS = shortest
		h.LongPulseUS = longest
	}
	if h.SymbolPeriodUS > 0 {
		h.BaudRate = 1_000_000 / uint32(h.SymbolPeriodUS)
	}

	widths := make([]uint32, len(pulses))
	for i, p := range pulses {
		widths[i] = uint32(p.WidthUS)
	}
	s := stats.Summarize(widths)
	switch {
	case s.StdDev < s.Mean/10:
		h.TimingConfidence = ConfidenceTimingStable
	case s.StdDev < s.Mean/5:
		h.TimingConfidence = ConfidenceTimingModerate
	default:
		h.TimingConfidence = ConfidenceTimingUnstable
	}
}

// detectPreamble общий байтовый префикс всех кадров
func (e *Engine) detectPreamble(h *Hypothesis, frames []models.Frame) {
	pattern, bytes := CommonPrefix(frames)
	h.PreamblePattern = pattern
	h.PreambleBits = uint32(bytes) * 8
}

// CommonPrefix возвращает шаблон (первые два байта) и длину общего префикса
// в байтах. Для менее чем двух кадров префикса нет
func CommonPrefix(frames []models.Frame) (pattern uint16, length int) {
	if len(frames) < 2 {
		return 0, 0
	}
	minLen := int(frames[0].Length)
	for _, f := range frames[1:] {
		minLen = min(minLen, int(f.Length))
	}
	minLen = min(minLen, MaxPreambleBytes)

	for length < minLen {
		v := frames[0].Data[length]
		same := true
		for _, f := range frames[1:] {
			if f.Data[length] != v {
				same = false
				break
			}
		}
		if !same {
			break
		}
		length++
	}
	if length == 0 {
		return 0, 0
	}
	pattern = uint16(frames[0].Data[0]) << 8
	if length > 1 {
		pattern |= uint16(frames[0].Data[1])
	}
	return pattern, length
}

// estimateFrameStructure длина полезной нагрузки = средняя длина кадра
// минус преамбула минус предполагаемая контрольная сумма (1-2 байта)
func (e *Engine) estimateFrameStructure(h *Hypothesis, frames []models.Frame) {
	if len(frames) > 0 {
		var total, duration uint64
		for _, f := range frames {
			total += uint64(f.Length)
			duration += uint64(f.DurationUS)
		}
		avg := total / uint64(len(frames))
		payload := avg - uint64(h.PreambleBits/8)
		switch {
		case payload > 3:
			payload -= 2
		case payload > 2:
			payload--
		}
		h.PayloadBits = uint32(payload) * 8
		h.ChecksumBits = 8
		if frames[0].Length > 4 {
			h.ChecksumBits = 16
		}
		h.FrameDurationUS = uint32(duration / uint64(len(frames)))
	}
	if len(frames) > 1 {
		var gaps uint64
		for i := 1; i < len(frames); i++ {
			gaps += uint64(frames[i].TimestampUS - frames[i-1].TimestampUS)
		}
		h.InterFrameGapUS = uint32(gaps / uint64(len(frames)-1))
	}
	h.TotalFrameBits = h.PreambleBits + h.PayloadBits + h.ChecksumBits

	switch {
	case len(frames) >= e.cfg.StructureHighFrames:
		h.StructureConfidence = ConfidenceStructureHigh
	case len(frames) >= e.cfg.StructureMediumFrames:
		h.StructureConfidence = ConfidenceStructureMedium
	default:
		h.StructureConfidence = ConfidenceStructureLow
	}
}

// synthesize общая уверенность, алфавит символов и текстовое описание
func (e *Engine) synthesize(h *Hypothesis) {
	sum := uint32(h.ModulationConfidence) + uint32(h.EncodingConfidence) +
		uint32(h.TimingConfidence) + uint32(h.StructureConfidence)
	h.OverallConfidence = uint8(sum / 4)

	n := min(len(e.clusters), MaxSymbolTypes)
	h.Symbols = make([]Symbol, n)
	for i := 0; i < n; i++ {
		h.Symbols[i] = Symbol{
			Name:        symbolName(i),
			WidthUS:     e.clusters[i].CenterUS,
			ToleranceUS: e.clusters[i].SpreadUS,
			Value:       uint8(i),
		}
	}
	h.Description = describe(*h)
}
