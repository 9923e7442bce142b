package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/inference"
	"github.com/tworjaga/flipper-rf-lab/internal/threat"
)

func sampleReport() analytics.Report {
	f := fingerprint.RFFingerprint{DriftMean: 100_000, DriftVariance: 40, ClockStabilityPPM: 2}.Sealed()
	return analytics.Report{
		SessionID: "0b8e7a52-5f0e-4d0a-9a55-3c1f6c2f0001",
		CreatedAt: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		Pulses:    80,
		Frames:    10,
		Signal:    analytics.SignalStats{PulseWidthMeanMS: 1.65, RSSIMeanDBm: -62.5, RSSITrendDB: 0.5},
		Hypothesis: inference.Hypothesis{
			Modulation:        inference.ModOOK,
			Encoding:          inference.EncPWM,
			BaudRate:          2500,
			OverallConfidence: 81,
			Description:       "Protocol: OOK/PWM @ 2500 baud\n",
		},
		Threat: &threat.Assessment{
			Level:              threat.RiskHigh,
			VulnerabilityScore: 850,
			Preamble:           0x10203040,
			ReplayVulnerable:   true,
			Report:             "=== THREAT ASSESSMENT ===\n",
		},
		Fingerprint: &f,
		Match:       &fingerprint.MatchResult{DeviceID: 0, Name: "gate", Confidence: 97, Matched: true},
		Clusters: clustering.Result{
			K: 2,
			Centroids: []clustering.Centroid{
				{X: fp.FromInt(300), Y: fp.FromInt(900), PointCount: 10},
				{X: fp.FromInt(3000), Y: fp.FromInt(3000), PointCount: 10},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "CSV": FormatCSV, "text": FormatText, "xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var back analytics.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, inference.ModOOK, back.Hypothesis.Modulation)
	require.NotNil(t, back.Threat)
	assert.Equal(t, threat.RiskHigh, back.Threat.Level)
	assert.Contains(t, buf.String(), `"risk_level": "HIGH"`)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"section", "field", "value"}, records[0])

	values := make(map[string]string)
	for _, rec := range records[1:] {
		values[rec[0]+"."+rec[1]] = rec[2]
	}
	assert.Equal(t, "OOK", values["hypothesis.modulation"])
	assert.Equal(t, "850", values["threat.vulnerability_score"])
	assert.Equal(t, "0x10203040", values["threat.preamble"])
	assert.Equal(t, "gate", values["match.device"])
	assert.Equal(t, "3000.0", values["cluster.1.x"])
	assert.Equal(t, "2026-05-06T07:08:09Z", values["session.created_at"])
	assert.Equal(t, "1.650", values["signal.pulse_width_mean_ms"])
	assert.Equal(t, "-62.500", values["signal.rssi_mean_dbm"])
}

func TestRowsWithoutFrames(t *testing.T) {
	r := sampleReport()
	r.Threat, r.Fingerprint, r.Match = nil, nil, nil

	for _, row := range Rows(r) {
		assert.NotEqual(t, "threat", row.Section)
		assert.NotEqual(t, "fingerprint", row.Section)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "=== RF ANALYSIS REPORT ==="))
	assert.Contains(t, out, "Protocol: OOK/PWM @ 2500 baud")
	assert.Contains(t, out, "=== THREAT ASSESSMENT ===")
	assert.Contains(t, out, "Matched device: gate (97%)")
	assert.Contains(t, out, "RSSI: mean -62.5 dBm, smoothed 0.0 dBm, trend +0.50 dB/frame")
	assert.Contains(t, out, "#1  3000/3000 us  10 points")

	buf.Reset()
	require.NoError(t, WriteText(&buf, analytics.Report{SessionID: "empty"}))
	assert.Contains(t, buf.String(), "insufficient data")
}

func TestWriteXLSX(t *testing.T) {
	devices := []fingerprint.Device{
		{Name: "gate", Fingerprint: *sampleReport().Fingerprint, MatchCount: 3, LastSeen: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleReport(), devices))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetClusters, SheetDevices}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Section", v)

	rows, err := f.GetRows(SheetClusters)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "300", rows[1][1])

	name, err := f.GetCellValue(SheetDevices, "B2")
	require.NoError(t, err)
	assert.Equal(t, "gate", name)
	seen, err := f.GetCellValue(SheetDevices, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01T00:00:00Z", seen)
}
