package chart

// Style controls strokes and text.
type Style struct {
	Color    string
	Width    float64
	Dash     []float64
	FontSize float64
	// Anchor is "start", "middle" or "end" for text.
	Anchor string
}

// Canvas is the drawing surface the renderer paints on.
type Canvas interface {
	Size() (w, h float64)
	Clear(color string)
	FillRect(x, y, w, h float64, color string)
	StrokeRect(x, y, w, h float64, s Style)
	Line(x1, y1, x2, y2 float64, s Style)
	Text(x, y float64, text string, s Style)
}

// LayerMarker is implemented by canvases that group output per layer.
type LayerMarker interface {
	BeginLayer(name string)
	EndLayer()
}

const (
	LayerBackground = "background"
	LayerAxes       = "axes"
	LayerCandles    = "candles"
	LayerOverlays   = "overlays"
	LayerDrawings   = "drawings"
	LayerPreview    = "preview"
	LayerCrosshair  = "crosshair"
	LayerLivePrice  = "liveprice"
)

// Layers returns the paint order.
func Layers() []string {
	return []string{
		LayerBackground, LayerAxes, LayerCandles, LayerOverlays,
		LayerDrawings, LayerPreview, LayerCrosshair, LayerLivePrice,
	}
}

func inLayer(c Canvas, name string, fn func()) {
	if m, ok := c.(LayerMarker); ok {
		m.BeginLayer(name)
		defer m.EndLayer()
	}
	fn()
}
