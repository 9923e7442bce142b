package inference

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

func mark(w uint16) models.Pulse  { return models.Pulse{WidthUS: w, Level: models.LevelMark} }
func space(w uint16) models.Pulse { return models.Pulse{WidthUS: w, Level: models.LevelSpace} }

func testFrames(n int) []models.Frame {
	frames := make([]models.Frame, n)
	for i := range frames {
		payload := []byte{0xAA, 0xAA, 0x2D, 0xD4, byte(i), byte(i * 3), byte(i * 7), 0x12, 0x34}
		frames[i] = models.NewFrame(payload, uint32(i)*50_000, -55, 433_920_000)
		frames[i].DurationUS = 9_000
	}
	return frames
}

func TestOOKCapture(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	for i := 0; i < 40; i++ {
		e.AddPulse(mark(300))
		e.AddPulse(space(3000))
	}
	for _, f := range testFrames(3) {
		e.AddFrame(f)
	}

	h := e.Analyze()
	if h.Modulation != ModOOK {
		t.Fatalf("Expected OOK, got %s", h.Modulation)
	}
	if h.ModulationConfidence < 80 {
		t.Errorf("Expected modulation confidence >= 80, got %d", h.ModulationConfidence)
	}
	if h.Quick {
		t.Errorf("full pipeline expected")
	}
	if !strings.HasPrefix(h.Description, "Protocol: OOK/") {
		t.Errorf("unexpected description: %q", h.Description)
	}
}

// pwmEngine две длительности меток в отношении 2:1 и по одному выбросу с краев
func pwmEngine(frames int) *Engine {
	e := NewEngine(DefaultConfig(), nil)
	e.AddPulse(mark(390))
	e.AddPulse(space(400))
	for i := 0; i < 20; i++ {
		e.AddPulse(mark(400))
		e.AddPulse(space(400))
		e.AddPulse(mark(800))
		e.AddPulse(space(400))
	}
	e.AddPulse(mark(810))
	e.AddPulse(space(400))
	for _, f := range testFrames(frames) {
		e.AddFrame(f)
	}
	return e
}

func TestPWMCapture(t *testing.T) {
	e := pwmEngine(12)
	h := e.Analyze()

	clusters := e.Clusters()
	if len(clusters) != 2 {
		t.Fatalf("Expected 2 pulse clusters, got %d: %+v", len(clusters), clusters)
	}
	if clusters[0].CenterUS != 400 || clusters[1].CenterUS != 799 {
		t.Errorf("unexpected cluster centers: %d, %d", clusters[0].CenterUS, clusters[1].CenterUS)
	}
	if h.Modulation != ModFSK || h.ModulationConfidence != ConfidenceFSK {
		t.Errorf("Expected FSK/%d, got %s/%d", ConfidenceFSK, h.Modulation, h.ModulationConfidence)
	}
	if h.Encoding != EncPWM || h.EncodingConfidence != ConfidencePWM {
		t.Errorf("Expected PWM, got %s", h.Encoding)
	}
	if h.SymbolPeriodUS != 400 || h.BaudRate != 2500 {
		t.Errorf("Expected 400us / 2500 baud, got %d / %d", h.SymbolPeriodUS, h.BaudRate)
	}
	if h.ShortPulseUS != 400 || h.LongPulseUS != 799 {
		t.Errorf("unexpected short/long: %d/%d", h.ShortPulseUS, h.LongPulseUS)
	}
	if len(h.Symbols) != 2 || h.Symbols[0].Name != "SHORT" || h.Symbols[1].Name != "LONG" {
		t.Errorf("unexpected symbols: %+v", h.Symbols)
	}

	if h.PreamblePattern != 0xAAAA || h.PreambleBits != 32 {
		t.Errorf("Expected preamble 0xAAAA/32, got %#x/%d", h.PreamblePattern, h.PreambleBits)
	}
	if h.PayloadBits != 24 || h.ChecksumBits != 16 || h.TotalFrameBits != 72 {
		t.Errorf("unexpected frame layout: %d + %d + %d = %d",
			h.PreambleBits, h.PayloadBits, h.ChecksumBits, h.TotalFrameBits)
	}
	if h.StructureConfidence != ConfidenceStructureHigh {
		t.Errorf("Expected structure confidence %d, got %d", ConfidenceStructureHigh, h.StructureConfidence)
	}
	if h.InterFrameGapUS != 50_000 || h.FrameDurationUS != 9_000 {
		t.Errorf("unexpected frame timing: gap %d, duration %d", h.InterFrameGapUS, h.FrameDurationUS)
	}

	want := uint8((uint32(h.ModulationConfidence) + uint32(h.EncodingConfidence) +
		uint32(h.TimingConfidence) + uint32(h.StructureConfidence)) / 4)
	if h.OverallConfidence != want {
		t.Errorf("overall confidence must be mean of stages: want %d, got %d", want, h.OverallConfidence)
	}
	if e.Confidence() != h.OverallConfidence {
		t.Errorf("Confidence() mismatch")
	}
}

func TestStructureConfidenceTiers(t *testing.T) {
	cases := []struct {
		frames int
		want   uint8
	}{
		{2, ConfidenceStructureLow},
		{5, ConfidenceStructureMedium},
		{10, ConfidenceStructureHigh},
	}
	for _, c := range cases {
		h := pwmEngine(c.frames).Analyze()
		if h.StructureConfidence != c.want {
			t.Errorf("%d frames: expected %d, got %d", c.frames, c.want, h.StructureConfidence)
		}
	}
}

func TestManchester(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	// уровень меняется каждые два импульса: доля переходов около 48%
	for i := 0; i < 30; i++ {
		if (i/2)%2 == 0 {
			e.AddPulse(mark(500))
		} else {
			e.AddPulse(space(500))
		}
	}
	for _, f := range testFrames(2) {
		e.AddFrame(f)
	}
	h := e.Analyze()
	if h.Encoding != EncManchester || h.EncodingConfidence != ConfidenceManchester {
		t.Errorf("Expected Manchester, got %s/%d", h.Encoding, h.EncodingConfidence)
	}
	if h.TimingConfidence != ConfidenceTimingStable {
		t.Errorf("constant widths should give stable timing, got %d", h.TimingConfidence)
	}
}

func TestEncodingNeedsFrames(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	for i := 0; i < 20; i++ {
		e.AddPulse(mark(500))
		e.AddPulse(space(500))
	}
	h := e.Analyze()
	if h.Encoding != EncUnknown || h.EncodingConfidence != ConfidenceEncodingUnknown {
		t.Errorf("Expected unknown encoding without frames, got %s/%d", h.Encoding, h.EncodingConfidence)
	}
	if h.PreambleBits != 0 || h.PreamblePattern != 0 {
		t.Errorf("no preamble expected without frames")
	}
}

func TestMillerUnsupported(t *testing.T) {
	if got := CheckMiller(testFrames(4)); got != CheckUnsupported {
		t.Errorf("Expected unsupported, got %s", got)
	}
	if CheckMiller(nil).Passed() {
		t.Errorf("unsupported check must never pass")
	}
}

func TestQuickPath(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		e.AddPulse(mark(300))
	}
	f := models.NewFrame(make([]byte, 10), 0, -90, 433_920_000)
	f.DurationUS = 10_000
	e.AddFrame(f)

	h := e.Analyze()
	if !h.Quick {
		t.Fatalf("quick path expected below the sample gate")
	}
	if h.Modulation != ModOOK || h.ModulationConfidence != ConfidenceQuickOOK {
		t.Errorf("Expected OOK/60, got %s/%d", h.Modulation, h.ModulationConfidence)
	}
	if h.BitRate != 8000 || h.BaudRate != 8000 {
		t.Errorf("Expected 8000 bps, got %d", h.BitRate)
	}
	if h.OverallConfidence != ConfidenceQuickOverall {
		t.Errorf("Expected overall %d, got %d", ConfidenceQuickOverall, h.OverallConfidence)
	}

	strong := QuickAnalyze(models.NewFrame([]byte{1}, 0, -40, 0))
	if strong.Modulation != ModASK || strong.BitRate != 0 {
		t.Errorf("Expected ASK without bit rate, got %s/%d", strong.Modulation, strong.BitRate)
	}
}

func TestNoData(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	h := e.Analyze()
	if h.OverallConfidence != 0 || h.Modulation != ModUnknown {
		t.Errorf("Expected empty hypothesis, got %+v", h)
	}
}

func TestFewPulsesUnknownModulation(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	for _, f := range testFrames(2) {
		e.AddFrame(f)
	}
	h := e.Analyze()
	if h.Modulation != ModUnknown || h.ModulationConfidence != ConfidenceUnknown {
		t.Errorf("Expected unknown modulation, got %s/%d", h.Modulation, h.ModulationConfidence)
	}
	if h.Quick {
		t.Errorf("two frames satisfy the full pipeline gate")
	}
}

func TestCommonPrefix(t *testing.T) {
	a := models.NewFrame([]byte{0x55, 0x01, 0x02}, 0, 0, 0)
	b := models.NewFrame([]byte{0x55, 0x01, 0x09}, 0, 0, 0)
	c := models.NewFrame([]byte{0x56}, 0, 0, 0)

	if p, n := CommonPrefix([]models.Frame{a, b}); p != 0x5501 || n != 2 {
		t.Errorf("Expected 0x5501/2, got %#x/%d", p, n)
	}
	if p, n := CommonPrefix([]models.Frame{a, c}); p != 0 || n != 0 {
		t.Errorf("Expected no prefix, got %#x/%d", p, n)
	}
	if _, n := CommonPrefix([]models.Frame{a}); n != 0 {
		t.Errorf("single frame has no preamble")
	}
}

func TestFrameCapacity(t *testing.T) {
	e := NewEngine(Config{FrameCapacity: 3}, nil)
	stored := 0
	for _, f := range testFrames(5) {
		if e.AddFrame(f) {
			stored++
		}
	}
	if stored != 3 || e.FrameCount() != 3 {
		t.Errorf("Expected 3 stored frames, got %d", stored)
	}
	e.Reset()
	if e.FrameCount() != 0 || e.PulseCount() != 0 {
		t.Errorf("reset must clear buffers")
	}
}

func TestHypothesisJSON(t *testing.T) {
	h := Hypothesis{Modulation: ModOOK, Encoding: EncManchester}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"modulation":"OOK"`) {
		t.Errorf("modulation should be encoded by name: %s", data)
	}
	var back Hypothesis
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Modulation != ModOOK || back.Encoding != EncManchester {
		t.Errorf("unexpected decoded hypothesis: %+v", back)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	e := pwmEngine(12)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Analyze()
	}
}
