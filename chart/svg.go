package chart

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
)

// SVGCanvas renders into an SVG document held in memory.
type SVGCanvas struct {
	w, h float64
	body bytes.Buffer
}

func NewSVGCanvas(w, h float64) *SVGCanvas {
	return &SVGCanvas{w: w, h: h}
}

func (s *SVGCanvas) Size() (float64, float64) { return s.w, s.h }

// Clear paints the whole canvas. Use Reset to discard earlier output.
func (s *SVGCanvas) Clear(color string) {
	s.FillRect(0, 0, s.w, s.h, color)
}

func (s *SVGCanvas) Reset() { s.body.Reset() }

func (s *SVGCanvas) FillRect(x, y, w, h float64, color string) {
	fmt.Fprintf(&s.body, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`+"\n",
		num(x), num(y), num(w), num(h), attr(color))
}

func (s *SVGCanvas) StrokeRect(x, y, w, h float64, st Style) {
	fmt.Fprintf(&s.body, `<rect x="%s" y="%s" width="%s" height="%s" fill="none"%s/>`+"\n",
		num(x), num(y), num(w), num(h), stroke(st))
}

func (s *SVGCanvas) Line(x1, y1, x2, y2 float64, st Style) {
	fmt.Fprintf(&s.body, `<line x1="%s" y1="%s" x2="%s" y2="%s"%s/>`+"\n",
		num(x1), num(y1), num(x2), num(y2), stroke(st))
}

func (s *SVGCanvas) Text(x, y float64, text string, st Style) {
	size := st.FontSize
	if size <= 0 {
		size = 11
	}
	anchor := st.Anchor
	if anchor == "" {
		anchor = "start"
	}
	fmt.Fprintf(&s.body, `<text x="%s" y="%s" fill="%s" font-size="%s" text-anchor="%s" font-family="monospace">%s</text>`+"\n",
		num(x), num(y), attr(st.Color), num(size), attr(anchor), html.EscapeString(text))
}

func (s *SVGCanvas) BeginLayer(name string) {
	fmt.Fprintf(&s.body, `<g id="%s">`+"\n", attr(name))
}

func (s *SVGCanvas) EndLayer() {
	s.body.WriteString("</g>\n")
}

// WriteTo writes the complete document.
func (s *SVGCanvas) WriteTo(w io.Writer) (int64, error) {
	var doc bytes.Buffer
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(s.w), num(s.h), num(s.w), num(s.h))
	doc.Write(s.body.Bytes())
	doc.WriteString("</svg>\n")
	return doc.WriteTo(w)
}

func (s *SVGCanvas) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func attr(v string) string {
	return html.EscapeString(v)
}

func stroke(st Style) string {
	width := st.Width
	if width <= 0 {
		width = 1
	}
	out := fmt.Sprintf(` stroke="%s" stroke-width="%s"`, attr(st.Color), num(width))
	if len(st.Dash) > 0 {
		parts := make([]string, len(st.Dash))
		for i, d := range st.Dash {
			parts[i] = num(d)
		}
		out += fmt.Sprintf(` stroke-dasharray="%s"`, strings.Join(parts, " "))
	}
	return out
}
