package report

import (
	"image/color"

	"github.com/grailbio/base/errors"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/scgenomics/scrna/atlas"
	"github.com/scgenomics/scrna/singlecell"
)

// clusterColors returns one distinguishable color per cluster.
func clusterColors(n int) []color.Color {
	if n < 1 {
		n = 1
	}
	cs := colorful.FastHappyPalette(n)
	out := make([]color.Color, n)
	for i, c := range cs {
		out[i] = c
	}
	return out
}

// qcScatterPlot draws nUMI against nGene for every cell, with cells
// failing the mitochondrial threshold in red.
func qcScatterPlot(d *singlecell.Dataset, maxMito float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "QC: transcripts vs genes per cell"
	p.X.Label.Text = "nUMI"
	p.Y.Label.Text = "nGene"

	var ok, bad plotter.XYs
	for i := range d.Cells {
		c := &d.Cells[i]
		xy := plotter.XY{X: c.NUMI, Y: float64(c.NGene)}
		if c.MitoRatio < maxMito {
			ok = append(ok, xy)
		} else {
			bad = append(bad, xy)
		}
	}
	for _, set := range []struct {
		xys plotter.XYs
		col color.Color
	}{
		{ok, color.RGBA{B: 160, A: 255}},
		{bad, color.RGBA{R: 200, A: 255}},
	} {
		if len(set.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(set.xys)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(1.2)
		s.GlyphStyle.Color = set.col
		p.Add(s)
	}
	return p, nil
}

// elbowPlot draws percent variance per principal component and marks the
// retained dimensionality.
func elbowPlot(d *singlecell.Dataset) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "PCA variance explained"
	p.X.Label.Text = "component"
	p.Y.Label.Text = "% variance"

	xys := make(plotter.XYs, len(d.PCVariance))
	for i, v := range d.PCVariance {
		xys[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, err
	}
	p.Add(line, points)

	cut := plotter.XYs{
		{X: float64(d.NumPCs), Y: 0},
		{X: float64(d.NumPCs), Y: d.PCVariance[0]},
	}
	cutLine, err := plotter.NewLine(cut)
	if err != nil {
		return nil, err
	}
	cutLine.Color = color.RGBA{R: 200, A: 255}
	cutLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(cutLine)
	p.Legend.Add("cutoff", cutLine)
	return p, nil
}

// embeddingPlot draws a 2-D embedding colored by cluster.
func embeddingPlot(d *singlecell.Dataset, name string) (*plot.Plot, error) {
	emb := d.Embeddings[name]
	if emb == nil {
		return nil, errors.E(errors.Invalid, "no "+name+" embedding in dataset")
	}
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = name + "_1"
	p.Y.Label.Text = name + "_2"

	colors := clusterColors(d.NumClusters)
	byCluster := make([]plotter.XYs, d.NumClusters)
	for i, c := range d.Clusters {
		if c < 0 {
			continue
		}
		byCluster[c] = append(byCluster[c], plotter.XY{X: emb.Coords[i][0], Y: emb.Coords[i][1]})
	}
	for c, xys := range byCluster {
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Color = colors[c]
		p.Add(s)
	}
	return p, nil
}

// dotPlot draws per-cluster top markers: point size tracks the expressing
// fraction inside the cluster, darkness tracks the fold-change.
func dotPlot(markers []singlecell.Marker, nPerCluster int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "top markers per cluster"
	p.X.Label.Text = "gene"
	p.Y.Label.Text = "cluster"

	top := singlecell.TopMarkers(markers, nPerCluster)
	genePos := map[string]int{}
	var geneNames []string
	maxFC := 1e-9
	var pts []singlecell.Marker
	for cluster := 0; ; cluster++ {
		ms, ok := top[cluster]
		if !ok {
			break
		}
		for _, m := range ms {
			if _, ok := genePos[m.Gene]; !ok {
				genePos[m.Gene] = len(geneNames)
				geneNames = append(geneNames, m.Gene)
			}
			if m.AvgLog2FC > maxFC {
				maxFC = m.AvgLog2FC
			}
			pts = append(pts, m)
		}
	}
	xys := make(plotter.XYs, len(pts))
	for i, m := range pts {
		xys[i] = plotter.XY{X: float64(genePos[m.Gene]), Y: float64(m.Cluster)}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		m := pts[i]
		shade := uint8(255 * (1 - m.AvgLog2FC/maxFC*0.9))
		return draw.GlyphStyle{
			Color:  color.RGBA{R: shade, G: shade, B: 255, A: 255},
			Radius: vg.Points(1 + 4*m.Pct1),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(s)
	p.NominalX(geneNames...)
	return p, nil
}

// summaryGrid adapts a LabelSummary to the heatmap interface.
type summaryGrid struct{ s *atlas.LabelSummary }

func (g summaryGrid) Dims() (int, int)   { return len(g.s.Genes), len(g.s.Labels) }
func (g summaryGrid) X(c int) float64    { return float64(c) }
func (g summaryGrid) Y(r int) float64    { return float64(r) }
func (g summaryGrid) Z(c, r int) float64 { return g.s.Mean[r][c] }

// atlasHeatmap draws mean expression of the top genes of the most
// frequent coarse labels.
func atlasHeatmap(s *atlas.LabelSummary) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "top labels x top genes"
	p.X.Label.Text = "gene"
	p.Y.Label.Text = "label"
	h := plotter.NewHeatMap(summaryGrid{s}, palette.Heat(16, 1))
	p.Add(h)
	p.NominalX(s.Genes...)
	p.NominalY(s.Labels...)
	return p, nil
}
