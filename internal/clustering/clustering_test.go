package clustering

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

func pt(x, y float64) DataPoint {
	return DataPoint{X: fp.FromFloat(x), Y: fp.FromFloat(y)}
}

// twoBlobs генерирует две разнесенные группы точек
func twoBlobs(n int, seed int64) []DataPoint {
	r := rand.New(rand.NewSource(seed))
	points := make([]DataPoint, 0, n)
	for i := 0; i < n; i++ {
		cx, cy := 10.0, 10.0
		if i%2 == 1 {
			cx, cy = 100.0, 50.0
		}
		points = append(points, pt(cx+r.Float64()*4-2, cy+r.Float64()*4-2))
	}
	return points
}

func TestKMeansAssignmentProperties(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(200, 1)

	for k := 1; k <= KMax; k++ {
		res := e.KMeans(points, k)
		if len(res.Centroids) != k {
			t.Errorf("k=%d: expected %d centroids, got %d", k, k, len(res.Centroids))
		}
		total := 0
		for _, c := range res.Centroids {
			total += c.PointCount
		}
		if total != len(points) {
			t.Errorf("k=%d: point counts sum to %d, want %d", k, total, len(points))
		}
		if res.Iterations < 1 || res.Iterations > DefaultMaxIterations {
			t.Errorf("k=%d: unexpected iteration count %d", k, res.Iterations)
		}
		if res.Silhouette < -fp.One || res.Silhouette > fp.One {
			t.Errorf("k=%d: silhouette out of range: %.4f", k, res.Silhouette.Float())
		}
		for i, a := range res.Assignments {
			if a < 0 || a >= k {
				t.Fatalf("k=%d: point %d assigned to %d", k, i, a)
			}
		}
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(100, 2)
	res := e.KMeans(points, 2)

	if !res.Converged {
		t.Errorf("Expected convergence on separated data")
	}
	for i := 2; i < len(points); i++ {
		if res.Assignments[i] != res.Assignments[i%2] {
			t.Fatalf("point %d assigned to wrong cluster", i)
		}
	}
	if res.Silhouette.Float() < 0.9 {
		t.Errorf("Expected silhouette close to 1, got %.4f", res.Silhouette.Float())
	}
}

func TestKMeansDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(150, 3)
	a := e.KMeans(points, 3)
	b := e.KMeans(points, 3)
	for i := range a.Centroids {
		if a.Centroids[i] != b.Centroids[i] {
			t.Fatalf("centroid %d differs between runs", i)
		}
	}
	for i := range a.Assignments {
		if a.Assignments[i] != b.Assignments[i] {
			t.Fatalf("assignment %d differs between runs", i)
		}
	}
}

func TestKMeansDoesNotMutateInput(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(20, 4)
	orig := append([]DataPoint(nil), points...)
	e.KMeans(points, 2)
	for i := range points {
		if points[i] != orig[i] {
			t.Fatalf("input point %d was modified", i)
		}
	}
}

func TestKMeansEdgeK(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(10, 5)

	if res := e.KMeans(points, 0); res.K != DefaultK {
		t.Errorf("invalid k should fall back to %d, got %d", DefaultK, res.K)
	}
	if res := e.KMeans(points, 9); res.K != DefaultK {
		t.Errorf("k above max should fall back to %d, got %d", DefaultK, res.K)
	}
	if res := e.KMeans(points[:2], 4); res.K != 2 {
		t.Errorf("k must be capped by dataset size, got %d", res.K)
	}
	if res := e.KMeans(nil, 3); len(res.Centroids) != 0 {
		t.Errorf("empty dataset must produce no centroids")
	}
}

func TestKMeansTiesGoToLowestIndex(t *testing.T) {
	e := NewEngine(Config{MaxIterations: 1}, nil)
	// центроиды (0,0) и (2,0), точка (1,0) равноудалена
	points := []DataPoint{pt(0, 0), pt(2, 0), pt(1, 0)}
	res := e.KMeans(points, 2)
	if res.Assignments[2] != 0 {
		t.Errorf("tie should go to cluster 0, got %d", res.Assignments[2])
	}
}

func TestKMeansEmptyClusterKeepsCentroid(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	// одинаковые точки: второй кластер остается пустым
	points := []DataPoint{pt(5, 5), pt(5, 5), pt(5, 5)}
	res := e.KMeans(points, 2)
	if res.Centroids[1].X != fp.FromInt(5) || res.Centroids[1].Y != fp.FromInt(5) {
		t.Errorf("empty cluster centroid moved: %+v", res.Centroids[1])
	}
	if res.Centroids[1].PointCount != 0 {
		t.Errorf("Expected empty second cluster, got %d points", res.Centroids[1].PointCount)
	}
}

func TestSilhouetteUndefined(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	if s := e.KMeans(twoBlobs(10, 6), 1).Silhouette; s != 0 {
		t.Errorf("Expected 0 for k=1, got %.4f", s.Float())
	}
	if s := e.KMeans([]DataPoint{pt(1, 1)}, 2).Silhouette; s != 0 {
		t.Errorf("Expected 0 for a single point, got %.4f", s.Float())
	}
}

func TestDistances(t *testing.T) {
	a, b := pt(0, 0), pt(3, 4)
	if got := Euclidean(a, b); got != fp.FromInt(5) {
		t.Errorf("Expected euclidean 5, got %.4f", got.Float())
	}
	if got := Manhattan(a, b); got != fp.FromInt(7) {
		t.Errorf("Expected manhattan 7, got %.4f", got.Float())
	}
	if got := Cosine(a, b); got != fp.Max {
		t.Errorf("Expected Max for zero vector, got %v", got)
	}
	if got := Cosine(pt(1, 0), pt(0, 1)).Float(); math.Abs(got-1) > 0.001 {
		t.Errorf("Expected cosine distance 1 for orthogonal vectors, got %.4f", got)
	}
	if got := Cosine(pt(2, 2), pt(5, 5)).Float(); math.Abs(got) > 0.001 {
		t.Errorf("Expected cosine distance 0 for parallel vectors, got %.4f", got)
	}
	if got := Cosine(pt(1, 1), pt(-1, -1)).Float(); math.Abs(got-2) > 0.001 {
		t.Errorf("Expected cosine distance 2 for opposite vectors, got %.4f", got)
	}
	// насыщение на крайних значениях
	if got := Euclidean(DataPoint{X: fp.Min, Y: fp.Min}, DataPoint{X: fp.Max, Y: fp.Max}); got != fp.Max {
		t.Errorf("Expected saturation, got %v", got)
	}
}

func TestDTW(t *testing.T) {
	a := []fp.Fixed{fp.FromInt(1), fp.FromInt(2), fp.FromInt(3)}
	b := []fp.Fixed{fp.FromInt(2), fp.FromInt(2), fp.FromInt(5), fp.FromInt(100)}
	res := DTW(a, b)
	if res.PathLength != 3 {
		t.Errorf("Expected path length 3, got %d", res.PathLength)
	}
	if res.Distance != fp.One {
		t.Errorf("Expected mean difference 1, got %.4f", res.Distance.Float())
	}
	if DTW(nil, b).Distance != 0 {
		t.Errorf("Expected 0 for empty sequence")
	}

	long := make([]fp.Fixed, 300)
	if got := DTW(long, long).PathLength; got != DTWMaxLength {
		t.Errorf("Expected truncation to %d, got %d", DTWMaxLength, got)
	}

	pa := []models.Pulse{{WidthUS: 300}, {WidthUS: 900}}
	pb := []models.Pulse{{WidthUS: 350}, {WidthUS: 850}}
	if got := PulseDTW(pa, pb); got != fp.FromInt(50) {
		t.Errorf("Expected pulse DTW 50, got %.4f", got.Float())
	}
}

func TestUnsupported(t *testing.T) {
	if _, err := FullDTW(nil, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("FullDTW must be unsupported, got %v", err)
	}
	if _, err := Hierarchical(nil, MetricEuclidean); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Hierarchical must be unsupported, got %v", err)
	}
}

func TestOptimalK(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	k, scores := e.OptimalK(twoBlobs(60, 7), 2, 5)
	if k != 2 {
		t.Errorf("Expected optimal k 2, got %d (scores %v)", k, scores)
	}
	if len(scores) != 4 {
		t.Errorf("Expected 4 scores, got %d", len(scores))
	}
}

func TestFeatures(t *testing.T) {
	pulses := []models.Pulse{
		{WidthUS: 400, Level: models.LevelMark},
		{WidthUS: 1200, Level: models.LevelSpace},
		{WidthUS: 1200, Level: models.LevelMark},
		{WidthUS: 400, Level: models.LevelSpace},
		{WidthUS: 400, Level: models.LevelMark},
	}
	points := PulseFeatures(pulses)
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0] != pt(400, 1200) || points[1] != pt(1200, 400) {
		t.Errorf("unexpected features: %+v", points)
	}

	frame := models.NewFrame([]byte{1, 2, 3, 4}, 0, -60, 433920000)
	frame.DurationUS = 5000
	ff := FrameFeatures(frame)
	if len(ff) != 2 || ff[0] != pt(5000, 4) || ff[1] != pt(-60, 433) {
		t.Errorf("unexpected frame features: %+v", ff)
	}
	if FrameFeatures(models.Frame{}) != nil {
		t.Errorf("empty frame must produce no features")
	}
}

func TestNormalizeForDisplay(t *testing.T) {
	points := []DataPoint{pt(0, 0), pt(10, 10), pt(5, 5)}
	screen := NormalizeForDisplay(points, []int{0, 1, 0})
	if screen[0].X != 0 || screen[0].Y != DisplayHeight-1 {
		t.Errorf("min point should map to bottom-left, got %+v", screen[0])
	}
	if screen[1].X != DisplayWidth-1 || screen[1].Y != 0 {
		t.Errorf("max point should map to top-right, got %+v", screen[1])
	}
	if screen[1].Cluster != 1 {
		t.Errorf("cluster id not carried")
	}
	b := GetBounds(nil)
	if b.MaxX != fp.One || b.MaxY != fp.One {
		t.Errorf("unexpected empty bounds: %+v", b)
	}
}

func TestDatasetCapacity(t *testing.T) {
	d := NewDataset(3)
	if n := d.AddAll([]DataPoint{pt(1, 1), pt(2, 2), pt(3, 3), pt(4, 4)}); n != 3 {
		t.Errorf("Expected 3 stored points, got %d", n)
	}
	if d.Dropped() != 1 {
		t.Errorf("Expected 1 dropped point, got %d", d.Dropped())
	}
	if d.Points()[2] != pt(3, 3) {
		t.Errorf("newest point must be dropped, not oldest")
	}
}

func TestStreamingSync(t *testing.T) {
	s := NewStreaming(NewEngine(DefaultConfig(), nil), 2, 0, 0)
	points := twoBlobs(120, 8)
	for _, p := range points[:49] {
		s.Add(p)
	}
	if s.Runs() != 0 || len(s.Latest().Centroids) != 0 {
		t.Fatalf("no recluster expected before 50 points")
	}
	for _, p := range points[49:] {
		s.Add(p)
	}
	if s.Runs() != 2 {
		t.Errorf("Expected 2 reclusters for 120 points, got %d", s.Runs())
	}
	latest := s.Latest()
	total := 0
	for _, c := range latest.Centroids {
		total += c.PointCount
	}
	if total != 100 {
		t.Errorf("latest result should cover 100 points, got %d", total)
	}
	if got := s.Flush(); len(got.Assignments) != 120 {
		t.Errorf("flush should cover all 120 points, got %d", len(got.Assignments))
	}
}

func waitRuns(s *Streaming, n uint64) bool {
	deadline := time.Now().Add(2 * time.Second)
	for s.Runs() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return s.Runs() >= n
}

func TestStreamingPool(t *testing.T) {
	pool := NewPool(1, nil)
	defer pool.Close()

	engine := NewEngine(DefaultConfig(), nil)
	a := NewStreaming(engine, 2, 0, 0)
	b := NewStreaming(engine, 2, 0, 0)
	a.UsePool(pool)
	b.UsePool(pool)

	for _, p := range twoBlobs(50, 9) {
		a.Add(p)
		b.Add(p)
	}
	if !waitRuns(a, 1) || !waitRuns(b, 1) {
		t.Fatal("pool did not recluster both streams")
	}
	if len(a.Latest().Centroids) != 2 || len(b.Latest().Centroids) != 2 {
		t.Errorf("Expected 2 centroids per stream")
	}
}

func TestClosedPoolFallsBackToSync(t *testing.T) {
	pool := NewPool(1, nil)
	s := NewStreaming(NewEngine(DefaultConfig(), nil), 2, 0, 10)
	s.UsePool(pool)
	pool.Close()
	pool.Close()

	if pool.submit(s, twoBlobs(10, 1)) {
		t.Errorf("closed pool must reject snapshots")
	}
	for _, p := range twoBlobs(10, 2) {
		s.Add(p)
	}
	if got := len(s.Latest().Assignments); got != 10 {
		t.Errorf("Expected synchronous result over 10 points, got %d", got)
	}
}

func TestPoolSingleEntryPerStream(t *testing.T) {
	p := &Pool{pending: make(map[*Streaming][]DataPoint)}
	p.cond = sync.NewCond(&p.mu)
	s := NewStreaming(NewEngine(DefaultConfig(), nil), 2, 0, 0)
	other := NewStreaming(NewEngine(DefaultConfig(), nil), 2, 0, 0)

	p.submit(s, twoBlobs(10, 1))
	p.submit(other, twoBlobs(10, 1))
	p.submit(s, twoBlobs(30, 1))
	if p.Pending() != 2 {
		t.Fatalf("Expected 2 queued streams, got %d", p.Pending())
	}
	if len(p.pending[s]) != 30 {
		t.Errorf("newer snapshot must replace the waiting one, got %d points", len(p.pending[s]))
	}
	p.cancel(s)
	if p.Pending() != 1 || p.order[0] != other {
		t.Errorf("cancel must remove only the detached stream")
	}
}

func TestStaleResultIgnored(t *testing.T) {
	s := NewStreaming(NewEngine(DefaultConfig(), nil), 2, 0, 0)
	s.recluster(twoBlobs(40, 3))
	s.recluster(twoBlobs(20, 3))
	if got := len(s.Latest().Assignments); got != 40 {
		t.Errorf("result over a shorter snapshot must not replace a newer one, got %d", got)
	}
}

func BenchmarkKMeans(b *testing.B) {
	e := NewEngine(DefaultConfig(), nil)
	points := twoBlobs(500, 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.KMeans(points, 3)
	}
}
