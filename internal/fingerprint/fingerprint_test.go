package fingerprint

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

const testSamples = 200

// source синтетический передатчик с дрожанием интервала и уровня
type source struct {
	r          *rand.Rand
	ts         uint32
	intervalUS int
	rssi       int
}

func newSource(seed int64, intervalUS, rssi int) *source {
	return &source{r: rand.New(rand.NewSource(seed)), ts: 1000, intervalUS: intervalUS, rssi: rssi}
}

func (s *source) feed(e *Engine, frames int) {
	for i := 0; i < frames; i++ {
		s.ts += uint32(s.intervalUS + s.r.Intn(101) - 50)
		f := models.NewFrame(make([]byte, 10), s.ts, int16(s.rssi+s.r.Intn(5)-2), 433_920_000)
		f.DurationUS = 4_000
		e.ProcessFrame(context.Background(), f)
	}
}

func capture(seed int64, intervalUS, rssi int) RFFingerprint {
	e := NewEngine(Config{SampleCount: testSamples}, nil, nil)
	e.StartCapture()
	newSource(seed, intervalUS, rssi).feed(e, testSamples)
	f, _ := e.Fingerprint()
	return f
}

func TestStateMachine(t *testing.T) {
	e := NewEngine(Config{SampleCount: testSamples}, nil, nil)
	if e.State() != StateIdle || e.State().String() != "IDLE" {
		t.Fatalf("Expected IDLE, got %s", e.State())
	}
	src := newSource(1, 100_000, -60)
	src.feed(e, 5)
	if e.FramesCaptured() != 0 {
		t.Errorf("frames must be ignored while idle")
	}

	e.StartCapture()
	if !e.IsCapturing() || e.Progress() != 0 {
		t.Errorf("Expected sampling at 0%%, got %s at %d%%", e.State(), e.Progress())
	}
	src.feed(e, testSamples/2)
	if e.Progress() != 50 {
		t.Errorf("Expected 50%% progress, got %d", e.Progress())
	}
	if _, ok := e.Fingerprint(); ok {
		t.Errorf("fingerprint must not be ready mid-capture")
	}

	src.feed(e, testSamples/2)
	if e.State() != StateMatching {
		t.Errorf("Expected MATCHING after %d frames, got %s", testSamples, e.State())
	}
	if e.Progress() != 100 {
		t.Errorf("Expected 100%% after capture, got %d", e.Progress())
	}
	f, ok := e.Fingerprint()
	if !ok || !f.Valid() {
		t.Fatalf("Expected a sealed fingerprint")
	}
	if f.DriftMean < 99_900 || f.DriftMean > 100_100 {
		t.Errorf("unexpected drift mean %d", f.DriftMean)
	}
	if f.ClockStabilityPPM != 0 {
		t.Errorf("constant symbol timing should give 0 ppm, got %d", f.ClockStabilityPPM)
	}

	e.StopCapture()
	if e.State() != StateIdle {
		t.Errorf("Expected IDLE after stop")
	}
}

func TestSameSourceSimilarity(t *testing.T) {
	a := capture(10, 100_000, -60)
	b := capture(11, 100_000, -60)
	other := capture(12, 150_000, -40)

	same := Similarity(a, b)
	if same < ConfidenceLow {
		t.Errorf("same-source similarity %d below %d", same, ConfidenceLow)
	}
	if diff := Similarity(a, other); diff >= same {
		t.Errorf("different source scored %d, same source %d", diff, same)
	}
	if Similarity(a, a) != 100 {
		t.Errorf("self similarity must be 100")
	}
}

func TestFinishEarly(t *testing.T) {
	e := NewEngine(Config{SampleCount: testSamples}, nil, nil)
	if _, err := e.Finish(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady before capture, got %v", err)
	}
	e.StartCapture()
	newSource(3, 50_000, -70).feed(e, 5)
	f, err := e.Finish()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// меньше минимума отсчетов: дрейф не считается, огибающая заполнена
	if f.DriftMean != 0 || f.RSSISignature[0] == 0 {
		t.Errorf("unexpected partial fingerprint: %+v", f)
	}
	if e.State() != StateMatching {
		t.Errorf("Expected MATCHING, got %s", e.State())
	}
}

func TestRSSIEnvelopeAndSlopes(t *testing.T) {
	e := NewEngine(Config{SampleCount: 1000}, nil, nil)
	e.StartCapture()
	levels := []int16{-60, -50, -60, -50, -60, -50, -60, -50, -60, -50, -60, -40}
	for i, l := range levels {
		f := models.NewFrame([]byte{1, 2}, uint32(i)*1000, l, 0)
		f.DurationUS = 200
		e.ProcessFrame(context.Background(), f)
	}
	for _, s := range []uint8{10, 20} {
		e.AddRSSISample(s)
	}
	f, _ := e.Finish()
	if f.RSSISignature[0] != 68 || f.RSSISignature[1] != 78 || f.RSSISignature[11] != 88 {
		t.Errorf("unexpected envelope: %v", f.RSSISignature)
	}
	// пять подъемов и пять спадов по 10, затем +20, -78 и +10
	if f.RiseSlopeAvg != 11 {
		t.Errorf("Expected rise 11, got %d", f.RiseSlopeAvg)
	}
	if f.FallSlopeAvg != 21 {
		t.Errorf("Expected fall 21, got %d", f.FallSlopeAvg)
	}
	if rssiLevel(-200) != 0 || rssiLevel(200) != 255 {
		t.Errorf("rssi level must clamp")
	}
}

func TestBinaryLayout(t *testing.T) {
	f := RFFingerprint{
		DriftMean:         0x01020304,
		DriftVariance:     0x0A0B0C0D,
		RiseSlopeAvg:      0x1122,
		FallSlopeAvg:      0x3344,
		ClockStabilityPPM: 0x55,
	}
	for i := range f.RSSISignature {
		f.RSSISignature[i] = byte(0x80 + i)
	}
	f = f.Sealed()

	data, _ := f.MarshalBinary()
	if len(data) != BinarySize {
		t.Fatalf("Expected %d bytes, got %d", BinarySize, len(data))
	}
	if data[0] != 0x04 || data[3] != 0x01 || data[8] != 0x22 || data[12] != 0x55 || data[13] != 0x80 || data[28] != 0x8F {
		t.Errorf("unexpected layout: % x", data)
	}
	if data[29] != 0 {
		t.Errorf("padding byte must be zero")
	}
	if h := uint16(data[30]) | uint16(data[31])<<8; h != f.Hash {
		t.Errorf("hash not stored little-endian")
	}
	if f.Hash != crc16CCITT(data[:30]) {
		t.Errorf("hash must cover the first 30 bytes")
	}

	var back RFFingerprint
	if err := back.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(f) {
		t.Errorf("round trip mismatch")
	}

	data[5] ^= 0xFF
	if err := back.UnmarshalBinary(data); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Expected ErrHashMismatch, got %v", err)
	}
	if err := back.UnmarshalBinary(data[:10]); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("Expected ErrInvalidLayout, got %v", err)
	}
}

func TestCRC16CCITTCheckValue(t *testing.T) {
	if got := crc16CCITT([]byte("123456789")); got != 0x29B1 {
		t.Errorf("Expected 0x29B1, got %#04x", got)
	}
}

func TestDistances(t *testing.T) {
	var a RFFingerprint
	b := RFFingerprint{
		DriftMean:         100,
		DriftVariance:     1000,
		RiseSlopeAvg:      4,
		FallSlopeAvg:      4,
		ClockStabilityPPM: 2,
	}
	b.RSSISignature[0] = 8

	// 60 (дрейф) + 2 (фронты) + 40 (ppm x100) + 2 (огибающая)
	if d := WeightedDistance(a, b); d != 104 {
		t.Errorf("Expected weighted distance 104, got %d", d)
	}
	if s := Similarity(a, b); s != 99 {
		t.Errorf("Expected similarity 99, got %d", s)
	}
	if d := EuclideanDistance(a, b); d != 1005 {
		t.Errorf("Expected euclidean 1005, got %d", d)
	}
	if d := ManhattanDistance(a, b); d != 1136 {
		t.Errorf("Expected manhattan 1136, got %d", d)
	}

	far := RFFingerprint{DriftMean: 1_000_000}
	if Similarity(a, far) != 0 {
		t.Errorf("distant fingerprints must have zero similarity")
	}
	huge := RFFingerprint{DriftMean: 0xFFFFFFFF, DriftVariance: 0xFFFFFFFF}
	if d := EuclideanDistance(a, huge); d == 0 {
		t.Errorf("saturated euclidean distance must not wrap to zero")
	}
}

type memPersister struct {
	devices map[string]Device
	fail    error
}

func newMemPersister() *memPersister {
	return &memPersister{devices: make(map[string]Device)}
}

func (m *memPersister) SaveDevice(_ context.Context, d Device) error {
	if m.fail != nil {
		return m.fail
	}
	m.devices[d.Name] = d
	return nil
}

func (m *memPersister) DeleteDevice(_ context.Context, name string) error {
	delete(m.devices, name)
	return nil
}

func (m *memPersister) LoadDevices(_ context.Context) ([]Device, error) {
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func TestDatabaseAddRemove(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(2, nil)
	p := newMemPersister()
	db.SetPersister(p)

	id, err := db.Add(ctx, RFFingerprint{DriftMean: 1}, "GarageDoorOpener-North")
	if err != nil || id != 0 {
		t.Fatalf("unexpected add result: %d, %v", id, err)
	}
	d, _ := db.Get(0)
	if d.Name != "GarageDoorOpene" || len(d.Name) != MaxNameLen {
		t.Errorf("name must be truncated to %d chars, got %q", MaxNameLen, d.Name)
	}
	if d.MatchCount != 1 {
		t.Errorf("new device starts with match count 1")
	}
	if _, ok := p.devices["GarageDoorOpene"]; !ok {
		t.Errorf("device must be persisted")
	}

	if _, err := db.Add(ctx, RFFingerprint{}, "GarageDoorOpener-South"); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Expected ErrDeviceExists for same truncated name, got %v", err)
	}
	if _, err := db.Add(ctx, RFFingerprint{}, ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}
	db.Add(ctx, RFFingerprint{DriftMean: 2}, "b")
	if _, err := db.Add(ctx, RFFingerprint{}, "c"); !errors.Is(err, ErrDatabaseFull) {
		t.Errorf("Expected ErrDatabaseFull, got %v", err)
	}

	if err := db.Remove(ctx, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if d, _ := db.Get(0); d.Name != "b" {
		t.Errorf("entries must shift down after removal, got %q", d.Name)
	}
	if err := db.Remove(ctx, 5); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if len(p.devices) != 1 {
		t.Errorf("removal must be persisted")
	}

	reloaded := NewDatabase(0, nil)
	reloaded.SetPersister(p)
	if err := reloaded.Load(ctx); err != nil || reloaded.Len() != 1 {
		t.Errorf("Expected 1 device after load, got %d (%v)", reloaded.Len(), err)
	}
}

func TestDatabasePersistFailure(t *testing.T) {
	db := NewDatabase(4, nil)
	p := newMemPersister()
	p.fail = errors.New("disk full")
	db.SetPersister(p)
	if _, err := db.Add(context.Background(), RFFingerprint{}, "x"); err == nil {
		t.Fatal("Expected persistence error")
	}
	if db.Len() != 0 {
		t.Errorf("failed add must not change the database")
	}
}

func TestMatchAndTemporal(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(0, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	base := capture(20, 100_000, -60)
	db.Add(ctx, base, "remote")

	res := db.Match(base)
	if !res.Matched || res.Confidence != 100 || res.Name != "remote" || res.DeviceID != 0 {
		t.Fatalf("unexpected match: %+v", res)
	}
	if res.DriftDetected || res.DriftPercent != 0 {
		t.Errorf("first sighting is the baseline, no drift expected")
	}
	d, _ := db.Get(0)
	if d.MatchCount != 2 {
		t.Errorf("Expected match count 2, got %d", d.MatchCount)
	}

	drifted := base
	drifted.DriftMean += 3000
	drifted = drifted.Sealed()
	now = now.Add(time.Hour)
	res = db.Match(drifted)
	if !res.Matched {
		t.Fatalf("moderately drifted fingerprint should still match: %+v", res)
	}
	if !res.DriftDetected || res.DriftPercent != 30 {
		t.Errorf("Expected 30%% drift flagged, got %d%% (%v)", res.DriftPercent, res.DriftDetected)
	}

	rec, ok := db.Temporal(0)
	if !ok {
		t.Fatal("temporal record missing")
	}
	if rec.MatchCount != 2 || len(rec.History()) != 2 || !rec.LastSeen.Equal(now) {
		t.Errorf("unexpected temporal record: %+v", rec)
	}
	if pct, flagged := db.CheckDrift(0, base); pct != 0 || flagged {
		t.Errorf("baseline compared to itself must not drift")
	}

	if res := db.Match(RFFingerprint{DriftMean: 900_000}); res.Matched || res.DeviceID != -1 {
		t.Errorf("unrelated fingerprint must not match: %+v", res)
	}
}

func TestBestDoesNotCountSighting(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(0, nil)
	base := capture(20, 100_000, -60)
	db.Add(ctx, base, "remote")

	for i := 0; i < 5; i++ {
		res := db.Best(base)
		if !res.Matched || res.Name != "remote" || res.Confidence != 100 {
			t.Fatalf("unexpected best match: %+v", res)
		}
	}
	d, _ := db.Get(0)
	if d.MatchCount != 1 {
		t.Errorf("Best must not change match count, got %d", d.MatchCount)
	}
	if _, ok := db.Temporal(0); ok {
		t.Errorf("Best must not start a temporal record")
	}

	db.Match(base)
	drifted := base
	drifted.DriftMean += 3000
	drifted = drifted.Sealed()
	res := db.Best(drifted)
	if !res.DriftDetected || res.DriftPercent != 30 {
		t.Errorf("Best must report drift against the baseline, got %d%%", res.DriftPercent)
	}
	rec, _ := db.Temporal(0)
	if len(rec.History()) != 1 || rec.DriftDetected {
		t.Errorf("Best must leave the temporal record untouched: %+v", rec)
	}
}

func TestHistoryRing(t *testing.T) {
	rec := newTemporalRecord("x", RFFingerprint{}, time.Time{})
	for i := 0; i < 12; i++ {
		rec.observe(RFFingerprint{DriftMean: uint32(i)}, time.Time{})
	}
	h := rec.History()
	if len(h) != HistoryLen {
		t.Fatalf("Expected %d entries, got %d", HistoryLen, len(h))
	}
	if h[0].DriftMean != 2 || h[9].DriftMean != 11 {
		t.Errorf("history must keep the latest entries in order: %d..%d", h[0].DriftMean, h[9].DriftMean)
	}
}

func TestCounterfeit(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(0, nil)
	alpha := capture(30, 100_000, -60)
	beta := capture(31, 140_000, -45)
	db.Add(ctx, alpha, "alpha")
	db.Add(ctx, beta, "beta")

	if c := db.DetectCounterfeit(alpha, "alpha"); c != 100 {
		t.Errorf("genuine device expected 100, got %d", c)
	}
	if c := db.DetectCounterfeit(beta, "alpha"); c != 0 {
		t.Errorf("fingerprint matching another device must be rejected, got %d", c)
	}
	if c := db.DetectCounterfeit(alpha, "gamma"); c != 0 {
		t.Errorf("unknown device must give 0, got %d", c)
	}
}

func TestLearning(t *testing.T) {
	db := NewDatabase(0, nil)
	e := NewEngine(Config{SampleCount: 50}, db, nil)
	if err := e.StartLearning(""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}
	if err := e.StartLearning("keyfob"); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateLearning || !e.IsCapturing() {
		t.Fatalf("Expected LEARNING, got %s", e.State())
	}
	newSource(40, 80_000, -55).feed(e, 50)
	if _, ok := db.FindByName("keyfob"); !ok {
		t.Fatalf("learned device must be registered")
	}

	res, err := e.Match()
	if err != nil || !res.Matched || res.Name != "keyfob" {
		t.Errorf("learned fingerprint should match itself: %+v (%v)", res, err)
	}

	if err := e.StartLearning("second"); err != nil {
		t.Fatal(err)
	}
	newSource(41, 60_000, -70).feed(e, 20)
	f, id, err := e.StopLearning(context.Background())
	if err != nil || id != 1 || !f.Valid() {
		t.Errorf("unexpected StopLearning result: %d, %v", id, err)
	}
	if _, _, err := e.StopLearning(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady outside learning, got %v", err)
	}
}

func BenchmarkSimilarity(b *testing.B) {
	x := capture(50, 100_000, -60)
	y := capture(51, 100_000, -60)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Similarity(x, y)
	}
}
