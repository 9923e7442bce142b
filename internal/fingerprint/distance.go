package fingerprint

import (
	"math"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
)

// Веса компонент взвешенного расстояния, проценты
const (
	DriftWeight = 30
	SlopeWeight = 25
	ClockWeight = 20
	RSSIWeight  = 25

	// clockScale множитель разницы ppm до взвешивания
	clockScale = 100
	// maxDistance расстояние, при котором сходство равно нулю
	maxDistance = 10000
)

// Пороги уверенности совпадения
const (
	ConfidenceHigh   = 90
	ConfidenceMedium = 70
	ConfidenceLow    = 50
)

func absDiff(a, b int64) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

func rssiDiff(a, b RFFingerprint) uint64 {
	var sum uint64
	for i := 0; i < SignatureLen; i++ {
		sum += absDiff(int64(a.RSSISignature[i]), int64(b.RSSISignature[i]))
	}
	return sum
}

// WeightedDistance взвешенная сумма компонент: дрейф 30%, фронты 25%,
// стабильность тактового генератора 20% (разница ppm x100), огибающая 25%
func WeightedDistance(a, b RFFingerprint) uint64 {
	drift := absDiff(int64(a.DriftMean), int64(b.DriftMean)) +
		absDiff(int64(a.DriftVariance), int64(b.DriftVariance))/10
	slope := absDiff(int64(a.RiseSlopeAvg), int64(b.RiseSlopeAvg)) +
		absDiff(int64(a.FallSlopeAvg), int64(b.FallSlopeAvg))
	clock := absDiff(int64(a.ClockStabilityPPM), int64(b.ClockStabilityPPM)) * clockScale
	rssi := rssiDiff(a, b)

	return drift*DriftWeight/100 +
		slope*SlopeWeight/100 +
		clock*ClockWeight/100 +
		rssi*RSSIWeight/100
}

// Similarity сходство 0-100: 100·(1 − d/10000), 0 при d >= 10000
func Similarity(a, b RFFingerprint) uint8 {
	d := WeightedDistance(a, b)
	if d >= maxDistance {
		return 0
	}
	return uint8(100 - d*100/maxDistance)
}

// EuclideanDistance евклидово расстояние; разница ppm входит с весом 100.
// Сумма квадратов насыщается
func EuclideanDistance(a, b RFFingerprint) uint64 {
	var sum uint64
	add := func(d, weight uint64) {
		sq := d * d
		if d > math.MaxUint32 || sq > (math.MaxUint64-sum)/weight {
			sum = math.MaxUint64
			return
		}
		sum += sq * weight
	}
	add(absDiff(int64(a.DriftMean), int64(b.DriftMean)), 1)
	add(absDiff(int64(a.DriftVariance), int64(b.DriftVariance)), 1)
	add(absDiff(int64(a.RiseSlopeAvg), int64(b.RiseSlopeAvg)), 1)
	add(absDiff(int64(a.FallSlopeAvg), int64(b.FallSlopeAvg)), 1)
	add(absDiff(int64(a.ClockStabilityPPM), int64(b.ClockStabilityPPM)), 100)
	for i := 0; i < SignatureLen; i++ {
		add(absDiff(int64(a.RSSISignature[i]), int64(b.RSSISignature[i])), 1)
	}
	return fp.ISqrt64(sum)
}

// ManhattanDistance сумма модулей; разница ppm входит с весом 10
func ManhattanDistance(a, b RFFingerprint) uint64 {
	return absDiff(int64(a.DriftMean), int64(b.DriftMean)) +
		absDiff(int64(a.DriftVariance), int64(b.DriftVariance)) +
		absDiff(int64(a.RiseSlopeAvg), int64(b.RiseSlopeAvg)) +
		absDiff(int64(a.FallSlopeAvg), int64(b.FallSlopeAvg)) +
		absDiff(int64(a.ClockStabilityPPM), int64(b.ClockStabilityPPM))*10 +
		rssiDiff(a, b)
}
