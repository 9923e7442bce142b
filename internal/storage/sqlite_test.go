package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
)

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func testFingerprint(seed uint32) fingerprint.RFFingerprint {
	f := fingerprint.RFFingerprint{
		DriftMean:         100_000 + seed,
		DriftVariance:     2500,
		RiseSlopeAvg:      11,
		FallSlopeAvg:      21,
		ClockStabilityPPM: 3,
	}
	for i := range f.RSSISignature {
		f.RSSISignature[i] = uint8(60 + i + int(seed))
	}
	return f.Sealed()
}

func TestSaveLoadDevices(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "garage", Fingerprint: testFingerprint(1), LastSeen: seen, MatchCount: 1}))
	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "gate", Fingerprint: testFingerprint(2), LastSeen: seen, MatchCount: 4}))

	devices, err := s.LoadDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "garage", devices[0].Name)
	assert.Equal(t, "gate", devices[1].Name)
	assert.True(t, devices[0].Fingerprint.Equal(testFingerprint(1)))
	assert.True(t, devices[0].LastSeen.Equal(seen))
	assert.Equal(t, uint32(4), devices[1].MatchCount)
}

func TestUpsertKeepsOrder(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "a", Fingerprint: testFingerprint(1), MatchCount: 1}))
	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "b", Fingerprint: testFingerprint(2), MatchCount: 1}))
	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "a", Fingerprint: testFingerprint(3), MatchCount: 9}))

	devices, err := s.LoadDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "a", devices[0].Name)
	assert.Equal(t, uint32(9), devices[0].MatchCount)
	assert.True(t, devices[0].Fingerprint.Equal(testFingerprint(3)))
}

func TestDeleteDevice(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDevice(ctx, fingerprint.Device{Name: "a", Fingerprint: testFingerprint(1)}))
	require.NoError(t, s.DeleteDevice(ctx, "a"))
	require.NoError(t, s.DeleteDevice(ctx, "missing"))

	devices, err := s.LoadDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRejectsUnsealedFingerprint(t *testing.T) {
	s, _ := openTestStore(t)
	f := testFingerprint(1)
	f.DriftMean++

	err := s.SaveDevice(context.Background(), fingerprint.Device{Name: "bad", Fingerprint: f})
	assert.ErrorIs(t, err, fingerprint.ErrHashMismatch)
}

func TestDatabaseSurvivesReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	db := fingerprint.NewDatabase(8, nil)
	db.SetPersister(s)
	_, err := db.Add(ctx, testFingerprint(1), "garage")
	require.NoError(t, err)
	_, err = db.Add(ctx, testFingerprint(2), "gate")
	require.NoError(t, err)
	require.NoError(t, db.Remove(ctx, 0))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	restored := fingerprint.NewDatabase(8, nil)
	restored.SetPersister(reopened)
	require.NoError(t, restored.Load(ctx))
	require.Equal(t, 1, restored.Len())

	d, ok := restored.Get(0)
	require.True(t, ok)
	assert.Equal(t, "gate", d.Name)
}
