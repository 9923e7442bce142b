package threat

import (
	"fmt"
	"math/bits"
	"strings"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/stats"
)

// Пороги шкалы уязвимости 0-1000
const (
	ScoreCritical = 900
	ScoreHigh     = 700
	ScoreMedium   = 400
	MaxScore      = 1000

	lowEntropyWeight   = 75
	staticWeight       = 250
	noChecksumPenalty  = 200
	noRollingPenalty   = 150
	replayPenalty      = 100
	lowEntropyBoundary = 4

	quickHighEntropy = 2
	quickScoreHigh   = 700
	quickScoreMedium = 400
	quickScoreLow    = 200
)

// Score аддитивная оценка уязвимости, ограниченная MaxScore
func Score(f Factors) uint16 {
	var score int
	boundary := fp.FromInt(lowEntropyBoundary)
	if f.Entropy < boundary {
		score += fp.Mul(boundary-max(f.Entropy, 0), fp.FromInt(lowEntropyWeight)).Int()
	}
	score += int(min(f.StaticRatio, 100)) * staticWeight / 100
	if !f.HasChecksum {
		score += noChecksumPenalty
	}
	if !f.HasRollingCode {
		score += noRollingPenalty
	}
	if f.ReplayVulnerable {
		score += replayPenalty
	}
	return uint16(min(score, MaxScore))
}

// RiskFromScore уровень риска по оценке
func RiskFromScore(score uint16) RiskLevel {
	switch {
	case score >= ScoreCritical:
		return RiskCritical
	case score >= ScoreHigh:
		return RiskHigh
	case score >= ScoreMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommendation рекомендация для уровня риска
func Recommendation(r RiskLevel) string {
	switch r {
	case RiskCritical:
		return "CRITICAL: Device is highly vulnerable to replay attacks"
	case RiskHigh:
		return "HIGH: Implement rolling code or encryption immediately"
	case RiskMedium:
		return "MEDIUM: Consider adding authentication mechanisms"
	default:
		return "LOW: Device has basic security measures in place"
	}
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

// Report текстовый отчет по оценке
func Report(a Assessment) string {
	var b strings.Builder
	b.WriteString("RF THREAT ANALYSIS REPORT\n")
	b.WriteString("========================\n\n")
	fmt.Fprintf(&b, "Risk Level: %s\n", a.Level)
	fmt.Fprintf(&b, "Vulnerability Score: %d/%d\n\n", a.VulnerabilityScore, MaxScore)
	b.WriteString("ENTROPY ANALYSIS:\n")
	fmt.Fprintf(&b, "  Entropy per byte: %.2f bits\n", a.Entropy.Float())
	fmt.Fprintf(&b, "  Total entropy: %d bits\n\n", a.EntropyBits)
	b.WriteString("PATTERN ANALYSIS:\n")
	fmt.Fprintf(&b, "  Static ratio: %d%%\n", a.StaticRatio)
	fmt.Fprintf(&b, "  Preamble length: %d bytes\n", a.PreambleLength)
	fmt.Fprintf(&b, "  Fixed preamble: 0x%04X\n", a.Preamble)
	for _, f := range a.FixedFields {
		fmt.Fprintf(&b, "  Fixed field: offset %d, %d bytes\n", f.Offset, f.Length)
	}
	b.WriteString("\nSECURITY FEATURES:\n")
	checksum := yesNo(a.HasChecksum)
	if a.HasChecksum {
		checksum = fmt.Sprintf("YES (%s at byte %d)", a.CRCName, a.CRCPosition)
	}
	fmt.Fprintf(&b, "  Checksum/CRC: %s\n", checksum)
	rolling := yesNo(a.HasRollingCode)
	if a.HasRollingCode {
		rolling = fmt.Sprintf("YES (offset %d, %d bytes)", a.RollingCodeField.Offset, a.RollingCodeField.Length)
	}
	fmt.Fprintf(&b, "  Rolling code: %s\n", rolling)
	fmt.Fprintf(&b, "  Replay vulnerable: %s\n\n", yesNo(a.ReplayVulnerable))
	b.WriteString("RECOMMENDATION:\n")
	fmt.Fprintf(&b, "  %s\n", Recommendation(a.Level))
	return b.String()
}

// QuickAssess грубая оценка по одному кадру для оперативной сортировки
func QuickAssess(f models.Frame) Assessment {
	data := f.Payload()
	a := Assessment{Quick: true, FrameCount: 1}
	a.Entropy = stats.Entropy(data)
	a.EntropyPerByte = a.Entropy.Float()
	a.EntropyBits = uint8(min(EstimateEntropyBits(data), 255))

	allSame := len(data) > 0
	for _, b := range data {
		if b != data[0] {
			allSame = false
			break
		}
	}
	if allSame {
		a.IsStatic = true
		a.StaticRatio = 100
	}

	switch {
	case a.Entropy < fp.FromInt(quickHighEntropy) || allSame:
		a.Level, a.VulnerabilityScore = RiskHigh, quickScoreHigh
	case a.Entropy < fp.FromInt(lowEntropyBoundary):
		a.Level, a.VulnerabilityScore = RiskMedium, quickScoreMedium
	default:
		a.Level, a.VulnerabilityScore = RiskLow, quickScoreLow
	}
	return a
}

// EstimateEntropyBits полная энтропия буфера в битах: энтропия на байт x длина
func EstimateEntropyBits(data []byte) int {
	return fp.MulSat(stats.Entropy(data), fp.FromInt(len(data))).Int()
}

// HammingDistance число различающихся бит на общей длине
func HammingDistance(a, b []byte) int {
	n := min(len(a), len(b))
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// XOR побайтное исключающее или на общей длине
func XOR(a, b []byte) []byte {
	n := min(len(a), len(b))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// VerifySumChecksum проверяет, что data[pos] равен сумме предыдущих байт по модулю 256
func VerifySumChecksum(data []byte, pos int) bool {
	if pos < 0 || pos >= len(data) {
		return false
	}
	var sum byte
	for _, b := range data[:pos] {
		sum += b
	}
	return sum == data[pos]
}
