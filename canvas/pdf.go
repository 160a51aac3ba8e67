package canvas

import (
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/zlnvch/drawroom/shape"
)

// PDFSurface renders into a gofpdf document, one page per Clear.
// Units are points, so canvas pixels map 1:1 at scale 1.
type PDFSurface struct {
	pdf     *gofpdf.Fpdf
	scale   float64
	offsetX float64
	offsetY float64
}

func NewPDFSurface(width, height float64) *PDFSurface {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	return &PDFSurface{pdf: pdf, scale: 1}
}

func (p *PDFSurface) Clear() {
	p.pdf.AddPage()
}

func (p *PDFSurface) SetTransform(scale, offsetX, offsetY float64) {
	p.scale, p.offsetX, p.offsetY = scale, offsetX, offsetY
}

func (p *PDFSurface) x(v float64) float64 { return v*p.scale + p.offsetX }
func (p *PDFSurface) y(v float64) float64 { return v*p.scale + p.offsetY }

func (p *PDFSurface) pen(c string, lineWidth float64) {
	rgb := parseColor(c)
	p.pdf.SetDrawColor(int(rgb.R), int(rgb.G), int(rgb.B))
	p.pdf.SetLineWidth(lineWidth * p.scale)
}

func (p *PDFSurface) StrokeRect(x, y, width, height float64, color string, lineWidth float64) {
	p.pen(color, lineWidth)
	p.pdf.Rect(p.x(x), p.y(y), width*p.scale, height*p.scale, "D")
}

func (p *PDFSurface) StrokeEllipse(centerX, centerY, radiusX, radiusY float64, color string, lineWidth float64) {
	p.pen(color, lineWidth)
	p.pdf.Ellipse(p.x(centerX), p.y(centerY), radiusX*p.scale, radiusY*p.scale, 0, "D")
}

func (p *PDFSurface) StrokePolyline(points []shape.Point, color string, lineWidth float64) {
	if len(points) == 0 {
		return
	}
	p.pen(color, lineWidth)
	p.pdf.SetLineCapStyle("round")
	p.pdf.SetLineJoinStyle("round")
	p.pdf.MoveTo(p.x(points[0].X), p.y(points[0].Y))
	for _, pt := range points[1:] {
		p.pdf.LineTo(p.x(pt.X), p.y(pt.Y))
	}
	p.pdf.DrawPath("D")
}

func (p *PDFSurface) EraserIndicator(center shape.Point, radius float64) {
	p.pdf.SetDrawColor(int(eraserColor.R), int(eraserColor.G), int(eraserColor.B))
	p.pdf.SetLineWidth(1)
	p.pdf.Circle(p.x(center.X), p.y(center.Y), radius*p.scale, "D")
}

// WriteTo writes the finished document.
func (p *PDFSurface) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := p.pdf.Output(cw)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}
