package clustering

import (
	fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

// Размер экрана для отображения точек
const (
	DisplayWidth  = 128
	DisplayHeight = 64
)

// PulseFeatures строит точки из пар соседних импульсов (ширина метки, ширина паузы).
// Ширины больше 32767 мкс насыщаются
func PulseFeatures(pulses []models.Pulse) []DataPoint {
	if len(pulses) < 2 {
		return nil
	}
	out := make([]DataPoint, 0, len(pulses)/2)
	for i := 0; i+1 < len(pulses); i += 2 {
		out = append(out, DataPoint{
			X: fp.FromIntSat(int64(pulses[i].WidthUS)),
			Y: fp.FromIntSat(int64(pulses[i+1].WidthUS)),
		})
	}
	return out
}

// FrameFeatures дает две точки на кадр: (длительность, длина) и (RSSI, частота в МГц)
func FrameFeatures(frame models.Frame) []DataPoint {
	if frame.Length == 0 {
		return nil
	}
	return []DataPoint{
		{X: fp.FromIntSat(int64(frame.DurationUS)), Y: fp.FromInt(int(frame.Length))},
		{X: fp.FromInt(int(frame.RSSIdBm)), Y: fp.FromIntSat(int64(frame.FrequencyHz / 1_000_000))},
	}
}

// Bounds ограничивающий прямоугольник набора точек
type Bounds struct {
	MinX, MaxX, MinY, MaxY fp.Fixed
}

// GetBounds для пустого набора возвращает [0,1]x[0,1]
func GetBounds(points []DataPoint) Bounds {
	if len(points) == 0 {
		return Bounds{MaxX: fp.One, MaxY: fp.One}
	}
	b := Bounds{MinX: points[0].X, MaxX: points[0].X, MinY: points[0].Y, MaxY: points[0].Y}
	for _, p := range points[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MaxX = max(b.MaxX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}

// ScreenPoint точка в координатах экрана
type ScreenPoint struct {
	X       uint8 `json:"x"`
	Y       uint8 `json:"y"`
	Cluster int   `json:"cluster"`
}

// NormalizeForDisplay переводит точки в экран 128x64 (ось Y перевернута).
// assignments может быть nil
func NormalizeForDisplay(points []DataPoint, assignments []int) []ScreenPoint {
	b := GetBounds(points)
	rangeX := int64(b.MaxX) - int64(b.MinX)
	rangeY := int64(b.MaxY) - int64(b.MinY)
	if rangeX == 0 {
		rangeX = int64(fp.One)
	}
	if rangeY == 0 {
		rangeY = int64(fp.One)
	}
	out := make([]ScreenPoint, len(points))
	for i, p := range points {
		x := (int64(p.X) - int64(b.MinX)) * (DisplayWidth - 1) / rangeX
		y := (int64(p.Y) - int64(b.MinY)) * (DisplayHeight - 1) / rangeY
		out[i] = ScreenPoint{X: uint8(x), Y: uint8(DisplayHeight - 1 - y)}
		if i < len(assignments) {
			out[i].Cluster = assignments[i]
		}
	}
	return out
}
