// Package export выгружает отчеты анализа в JSON, CSV, текст и XLSX
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
)

// Format формат выгрузки
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

// ParseFormat пустая строка означает JSON
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatText, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType MIME-тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Row строка плоского представления отчета
type Row struct {
	Section string
	Field   string
	Value   string
}

func u(v uint64) string   { return strconv.FormatUint(v, 10) }
func b(v bool) string     { return strconv.FormatBool(v) }
func f3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

// Rows плоское представление отчета по разделам
func Rows(r analytics.Report) []Row {
	rows := []Row{
		{"session", "id", r.SessionID},
		{"session", "created_at", r.CreatedAt.Format(time.RFC3339)},
		{"session", "pulses", strconv.Itoa(r.Pulses)},
		{"session", "frames", strconv.Itoa(r.Frames)},
		{"session", "dropped_pulses", u(r.DroppedPulses)},
		{"session", "dropped_frames", u(r.DroppedFrames)},
		{"session", "rssi_anomalies", strconv.Itoa(r.RSSIAnomalies)},
		{"session", "duration_ms", strconv.FormatFloat(r.DurationMS, 'f', 3, 64)},
	}

	h := r.Hypothesis
	rows = append(rows,
		Row{"hypothesis", "modulation", h.Modulation.String()},
		Row{"hypothesis", "encoding", h.Encoding.String()},
		Row{"hypothesis", "baud_rate", u(uint64(h.BaudRate))},
		Row{"hypothesis", "symbol_period_us", u(uint64(h.SymbolPeriodUS))},
		Row{"hypothesis", "short_pulse_us", u(uint64(h.ShortPulseUS))},
		Row{"hypothesis", "long_pulse_us", u(uint64(h.LongPulseUS))},
		Row{"hypothesis", "preamble_bits", u(uint64(h.PreambleBits))},
		Row{"hypothesis", "payload_bits", u(uint64(h.PayloadBits))},
		Row{"hypothesis", "checksum_bits", u(uint64(h.ChecksumBits))},
		Row{"hypothesis", "confidence", u(uint64(h.OverallConfidence))},
		Row{"hypothesis", "quick", b(h.Quick)},
	)

	sig := r.Signal
	rows = append(rows,
		Row{"signal", "pulse_width_mean_ms", f3(sig.PulseWidthMeanMS)},
		Row{"signal", "pulse_width_stddev_ms", f3(sig.PulseWidthStdDevMS)},
		Row{"signal", "pulse_width_recent_ms", f3(sig.PulseWidthRecentMS)},
		Row{"signal", "frame_gap_ms", f3(sig.FrameGapMS)},
		Row{"signal", "rssi_mean_dbm", f3(sig.RSSIMeanDBm)},
		Row{"signal", "rssi_smoothed_dbm", f3(sig.RSSISmoothedDBm)},
		Row{"signal", "rssi_trend_db", f3(sig.RSSITrendDB)},
		Row{"signal", "rssi_trend_r2", f3(sig.RSSITrendR2)},
	)

	if t := r.Threat; t != nil {
		rows = append(rows,
			Row{"threat", "risk_level", t.Level.String()},
			Row{"threat", "vulnerability_score", u(uint64(t.VulnerabilityScore))},
			Row{"threat", "entropy_per_byte", strconv.FormatFloat(t.EntropyPerByte, 'f', 3, 64)},
			Row{"threat", "static_ratio", u(uint64(t.StaticRatio))},
			Row{"threat", "preamble", fmt.Sprintf("0x%X", t.Preamble)},
			Row{"threat", "has_checksum", b(t.HasChecksum)},
			Row{"threat", "crc", t.CRCName},
			Row{"threat", "has_rolling_code", b(t.HasRollingCode)},
			Row{"threat", "replay_vulnerable", b(t.ReplayVulnerable)},
		)
	}

	if f := r.Fingerprint; f != nil {
		rows = append(rows,
			Row{"fingerprint", "drift_mean", u(uint64(f.DriftMean))},
			Row{"fingerprint", "drift_variance", u(uint64(f.DriftVariance))},
			Row{"fingerprint", "rise_slope", u(uint64(f.RiseSlopeAvg))},
			Row{"fingerprint", "fall_slope", u(uint64(f.FallSlopeAvg))},
			Row{"fingerprint", "clock_ppm", u(uint64(f.ClockStabilityPPM))},
			Row{"fingerprint", "hex", f.String()},
		)
	}
	if m := r.Match; m != nil {
		rows = append(rows,
			Row{"match", "matched", b(m.Matched)},
			Row{"match", "device", m.Name},
			Row{"match", "confidence", u(uint64(m.Confidence))},
			Row{"match", "drift_percent", u(uint64(m.DriftPercent))},
			Row{"match", "drift_detected", b(m.DriftDetected)},
		)
	}

	for i, c := range r.Clusters.Centroids {
		section := "cluster." + strconv.Itoa(i)
		rows = append(rows,
			Row{section, "x", strconv.FormatFloat(c.X.Float(), 'f', 1, 64)},
			Row{section, "y", strconv.FormatFloat(c.Y.Float(), 'f', 1, 64)},
			Row{section, "points", strconv.Itoa(c.PointCount)},
		)
	}
	return rows
}

// WriteJSON отчет с отступами
func WriteJSON(w io.Writer, r analytics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteCSV строки section,field,value
func WriteCSV(w io.Writer, r analytics.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"section", "field", "value"}); err != nil {
		return err
	}
	for _, row := range Rows(r) {
		if err := cw.Write([]string{row.Section, row.Field, row.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText человекочитаемая сводка
func WriteText(w io.Writer, r analytics.Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== RF ANALYSIS REPORT ===\n")
	fmt.Fprintf(&sb, "Session: %s\n", r.SessionID)
	fmt.Fprintf(&sb, "Captured: %d pulses, %d frames (dropped %d/%d)\n",
		r.Pulses, r.Frames, r.DroppedPulses, r.DroppedFrames)
	if r.RSSIAnomalies > 0 {
		fmt.Fprintf(&sb, "RSSI anomalies: %d\n", r.RSSIAnomalies)
	}
	sb.WriteString("\n")

	if r.Hypothesis.Description != "" {
		sb.WriteString(r.Hypothesis.Description)
	} else {
		sb.WriteString("Protocol: insufficient data\n")
	}

	if r.Frames > 0 {
		fmt.Fprintf(&sb, "RSSI: mean %.1f dBm, smoothed %.1f dBm, trend %+.2f dB/frame\n",
			r.Signal.RSSIMeanDBm, r.Signal.RSSISmoothedDBm, r.Signal.RSSITrendDB)
	}

	if r.Threat != nil && r.Threat.Report != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Threat.Report)
	}

	if f := r.Fingerprint; f != nil {
		fmt.Fprintf(&sb, "\nFingerprint: %s\n", f)
		fmt.Fprintf(&sb, "Drift: mean %d us, variance %d\n", f.DriftMean, f.DriftVariance)
		fmt.Fprintf(&sb, "Clock stability: %d ppm\n", f.ClockStabilityPPM)
	}
	if m := r.Match; m != nil {
		if m.Matched {
			fmt.Fprintf(&sb, "Matched device: %s (%d%%)\n", m.Name, m.Confidence)
			if m.DriftDetected {
				fmt.Fprintf(&sb, "WARNING: temporal drift %d%%\n", m.DriftPercent)
			}
		} else {
			sb.WriteString("Matched device: none\n")
		}
	}

	if len(r.Clusters.Centroids) > 0 {
		fmt.Fprintf(&sb, "\nClusters (k=%d, %d iterations):\n", r.Clusters.K, r.Clusters.Iterations)
		for i, c := range r.Clusters.Centroids {
			fmt.Fprintf(&sb, "  #%d  %.0f/%.0f us  %d points\n", i, c.X.Float(), c.Y.Float(), c.PointCount)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
