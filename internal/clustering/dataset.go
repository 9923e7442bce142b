package clustering

import (
	"github.com/tworjaga/flipper-rf-lab/internal/models"
	"github.com/tworjaga/flipper-rf-lab/internal/ring"
)

// DefaultDatasetCapacity емкость набора точек по умолчанию
const DefaultDatasetCapacity = models.MaxPulseCount

// Dataset ограниченный набор точек; при заполнении новые точки отбрасываются
type Dataset struct {
	buf *ring.Buffer[DataPoint]
}

func NewDataset(capacity int) *Dataset {
	if capacity <= 0 {
		capacity = DefaultDatasetCapacity
	}
	return &Dataset{buf: ring.New[DataPoint](capacity, ring.DropNewest)}
}

// Add добавляет точку, false если набор заполнен
func (d *Dataset) Add(p DataPoint) bool {
	ok, _ := d.buf.Push(p)
	return ok
}

// AddAll добавляет точки и возвращает число сохраненных
func (d *Dataset) AddAll(points []DataPoint) int {
	stored := 0
	for _, p := range points {
		if d.Add(p) {
			stored++
		}
	}
	return stored
}

func (d *Dataset) Points() []DataPoint { return d.buf.Items() }
func (d *Dataset) Len() int            { return d.buf.Len() }
func (d *Dataset) Cap() int            { return d.buf.Cap() }
func (d *Dataset) Dropped() uint64     { return d.buf.Dropped() }
func (d *Dataset) Reset()              { d.buf.Reset() }
