package analytics

import (
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

const (
	// rssiSmoothingTaps длина FIR сглаживания RSSI
	rssiSmoothingTaps = 4
	// recentPulseWindow окно скользящего среднего последних импульсов
	recentPulseWindow = 8
	// gapWarmup прогонов IIR первым интервалом, чтобы состояние сошлось к нему
	gapWarmup = 32
)

// gapSmoothing коэффициент экспоненциального сглаживания межкадровых интервалов
var gapSmoothing = fp.One / 4

// SignalStats сводка длительностей импульсов и уровня сигнала снимка
type SignalStats struct {
	PulseWidthMeanMS   float64 `json:"pulse_width_mean_ms"`
	PulseWidthStdDevMS float64 `json:"pulse_width_stddev_ms"`
	// PulseWidthRecentMS средняя ширина последних импульсов
	PulseWidthRecentMS float64 `json:"pulse_width_recent_ms"`
	// FrameGapMS сглаженный интервал между кадрами
	FrameGapMS  float64 `json:"frame_gap_ms"`
	RSSIMeanDBm float64 `json:"rssi_mean_dbm"`
	// RSSISmoothedDBm выход FIR фильтра на последнем кадре
	RSSISmoothedDBm float64 `json:"rssi_smoothed_dbm"`
	// RSSITrendDB наклон RSSI в дБ на кадр; положительный, если передатчик приближается
	RSSITrendDB float64 `json:"rssi_trend_db"`
	RSSITrendR2 float64 `json:"rssi_trend_r2"`
}

func signalStats(pulses []models.Pulse, frames []models.Frame) SignalStats {
	var out SignalStats

	// ширины в миллисекундах, чтобы не выйти за диапазон Q15.16
	var widths stats.Welford
	recent := stats.NewMovingAverage(recentPulseWindow)
	for _, p := range pulses {
		w := fp.FromRatio(int64(p.WidthUS), 1000)
		widths.Add(w)
		recent.Add(w)
	}
	if widths.Count() > 0 {
		out.PulseWidthMeanMS = widths.Mean().Float()
		out.PulseWidthStdDevMS = widths.StdDev().Float()
		out.PulseWidthRecentMS = recent.Value().Float()
	}

	if len(frames) == 0 {
		return out
	}
	taps := make([]fp.Fixed, rssiSmoothingTaps)
	for i := range taps {
		taps[i] = fp.One / rssiSmoothingTaps
	}
	fir, _ := stats.NewFIR(taps...)
	var level stats.Welford
	trend := stats.NewRegression(len(frames))
	var smoothed fp.Fixed
	for i, f := range frames {
		rssi := fp.FromIntSat(int64(f.RSSIdBm))
		level.Add(rssi)
		trend.Add(fp.FromIntSat(int64(i)), rssi)
		// пока окно не заполнено, фильтр видит нули; берем выход после прогрева
		if i == 0 {
			for j := 1; j < rssiSmoothingTaps; j++ {
				fir.Process(rssi)
			}
		}
		smoothed = fir.Process(rssi)
	}
	trend.Fit()

	if len(frames) > 1 {
		// y[n] = k·x[n] + (1-k)·y[n-1]
		gaps, _ := stats.NewIIR(
			[]fp.Fixed{gapSmoothing, 0},
			[]fp.Fixed{fp.One, gapSmoothing - fp.One},
		)
		var gap fp.Fixed
		for i := 1; i < len(frames); i++ {
			d := fp.FromRatio(int64(frames[i].TimestampUS-frames[i-1].TimestampUS), 1000)
			if i == 1 {
				for j := 0; j < gapWarmup; j++ {
					gaps.Process(d)
				}
			}
			gap = gaps.Process(d)
		}
		out.FrameGapMS = gap.Float()
	}

	out.RSSIMeanDBm = level.Mean().Float()
	out.RSSISmoothedDBm = smoothed.Float()
	out.RSSITrendDB = trend.Slope().Float()
	out.RSSITrendR2 = trend.RSquared().Float()
	return out
}
