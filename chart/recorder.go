package chart

import "fmt"

// Op is one recorded canvas call.
type Op struct {
	Layer string
	Kind  string
	Args  []float64
	Text  string
	Style Style
	Color string
}

func (o Op) String() string {
	return fmt.Sprintf("%s/%s %v %q", o.Layer, o.Kind, o.Args, o.Text)
}

// Recorder is a Canvas that keeps every call, for tests and headless
// inspection.
type Recorder struct {
	W, H  float64
	Ops   []Op
	layer string
}

func NewRecorder(w, h float64) *Recorder {
	return &Recorder{W: w, H: h}
}

func (r *Recorder) Size() (float64, float64) { return r.W, r.H }

func (r *Recorder) Clear(color string) {
	r.Ops = r.Ops[:0]
	r.add(Op{Kind: "clear", Color: color})
}

func (r *Recorder) FillRect(x, y, w, h float64, color string) {
	r.add(Op{Kind: "fill", Args: []float64{x, y, w, h}, Color: color})
}

func (r *Recorder) StrokeRect(x, y, w, h float64, s Style) {
	r.add(Op{Kind: "rect", Args: []float64{x, y, w, h}, Style: s})
}

func (r *Recorder) Line(x1, y1, x2, y2 float64, s Style) {
	r.add(Op{Kind: "line", Args: []float64{x1, y1, x2, y2}, Style: s})
}

func (r *Recorder) Text(x, y float64, text string, s Style) {
	r.add(Op{Kind: "text", Args: []float64{x, y}, Text: text, Style: s})
}

func (r *Recorder) BeginLayer(name string) { r.layer = name }
func (r *Recorder) EndLayer()              { r.layer = "" }

func (r *Recorder) add(op Op) {
	op.Layer = r.layer
	r.Ops = append(r.Ops, op)
}

// LayerOrder returns the distinct layers in the order they were first
// painted.
func (r *Recorder) LayerOrder() []string {
	var out []string
	seen := map[string]bool{}
	for _, op := range r.Ops {
		if op.Layer == "" || seen[op.Layer] {
			continue
		}
		seen[op.Layer] = true
		out = append(out, op.Layer)
	}
	return out
}

// InLayer returns the ops painted in layer.
func (r *Recorder) InLayer(layer string) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Layer == layer {
			out = append(out, op)
		}
	}
	return out
}

// Texts returns every text drawn in layer.
func (r *Recorder) Texts(layer string) []string {
	var out []string
	for _, op := range r.InLayer(layer) {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}
