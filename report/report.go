// Package report renders the pipeline's diagnostic plots and the final
// HTML report from a completed analysis session.
package report

import (
	"bytes"
	"context"
	"html/template"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/scgenomics/scrna/atlas"
	"github.com/scgenomics/scrna/singlecell"
)

// Input is everything the renderer needs from the analyze phase.
type Input struct {
	Result  *singlecell.Result
	Summary *atlas.LabelSummary
	// MaxMitoRatio echoes the QC threshold for the QC scatter coloring.
	MaxMitoRatio float64
}

// Render writes the diagnostic plot catalog and report.html under dir.
// Failure of any single artifact aborts the whole render.
func Render(ctx context.Context, dir string, in *Input) error {
	d := in.Result.Dataset
	plots := []struct {
		name  string
		build func() (*plot.Plot, error)
	}{
		{"qc_scatter.png", func() (*plot.Plot, error) { return qcScatterPlot(d, in.MaxMitoRatio) }},
		{"elbow.png", func() (*plot.Plot, error) { return elbowPlot(d) }},
		{"tsne.png", func() (*plot.Plot, error) { return embeddingPlot(d, "tsne") }},
		{"umap.png", func() (*plot.Plot, error) { return embeddingPlot(d, "umap") }},
		{"markers_dotplot.png", func() (*plot.Plot, error) { return dotPlot(in.Result.StrictMarkers, 5) }},
	}
	written := 0
	for _, pl := range plots {
		p, err := pl.build()
		if err != nil {
			return errors.E(err, "report: building "+pl.name)
		}
		if err := savePlot(ctx, p, file.Join(dir, pl.name)); err != nil {
			return err
		}
		written++
	}
	if in.Summary != nil && len(in.Summary.Labels) > 0 {
		p, err := atlasHeatmap(in.Summary)
		if err != nil {
			return errors.E(err, "report: building atlas_heatmap.png")
		}
		if err := savePlot(ctx, p, file.Join(dir, "atlas_heatmap.png")); err != nil {
			return err
		}
		written++
	}
	if err := renderHTML(ctx, file.Join(dir, "report.html"), in); err != nil {
		return err
	}
	written++
	log.Printf("report: wrote %d artifacts to %s", written, dir)
	return nil
}

// savePlot renders p to PNG through the file package so remote output
// directories work the same as local ones.
func savePlot(ctx context.Context, p *plot.Plot, path string) error {
	wt, err := p.WriterTo(6*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.E(err, "report: rendering "+path)
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "report: creating "+path)
	}
	if _, err := wt.WriteTo(out.Writer(ctx)); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "report: writing "+path)
	}
	return out.Close(ctx)
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>scRNA-seq analysis report</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 70em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 0.3em 0.7em; text-align: right; }
th { background: #eee; }
img { max-width: 45em; display: block; margin: 1em 0; }
</style></head><body>
<h1>scRNA-seq analysis report</h1>

<h2>Run summary</h2>
<table>
<tr><th>cells loaded</th><td>{{.Stats.CellsLoaded}}</td></tr>
<tr><th>genes loaded</th><td>{{.Stats.GenesLoaded}}</td></tr>
<tr><th>cells kept after QC</th><td>{{.Stats.CellsKept}}</td></tr>
<tr><th>variable features</th><td>{{.Stats.VariableGenes}}</td></tr>
<tr><th>PCA components used</th><td>{{.Stats.ComponentsUsed}}</td></tr>
<tr><th>clusters</th><td>{{.Stats.Clusters}}</td></tr>
<tr><th>cells annotated / pruned</th><td>{{.Stats.CellsAnnotated}} / {{.Stats.CellsPruned}}</td></tr>
</table>

<h2>Quality control</h2>
<img src="qc_scatter.png">

<h2>Dimensionality</h2>
<img src="elbow.png">

<h2>Embeddings</h2>
<img src="tsne.png">
<img src="umap.png">

<h2>Cluster sizes</h2>
<table><tr><th>cluster</th><th>cells</th></tr>
{{range .ClusterSizes}}<tr><td>{{.Cluster}}</td><td>{{.N}}</td></tr>
{{end}}</table>

<h2>Markers</h2>
<img src="markers_dotplot.png">
<table><tr><th>cluster</th><th>gene</th><th>avg_log2FC</th><th>pct.1</th><th>pct.2</th><th>p_val_adj</th></tr>
{{range .TopMarkers}}<tr><td>{{.Cluster}}</td><td>{{.Gene}}</td><td>{{printf "%.3f" .AvgLog2FC}}</td><td>{{printf "%.2f" .Pct1}}</td><td>{{printf "%.2f" .Pct2}}</td><td>{{printf "%.2e" .PAdj}}</td></tr>
{{end}}</table>

{{if .HasSummary}}
<h2>Reference annotation</h2>
<img src="atlas_heatmap.png">
{{end}}
</body></html>
`))

type clusterSize struct {
	Cluster, N int
}

func renderHTML(ctx context.Context, path string, in *Input) error {
	d := in.Result.Dataset

	sizes := make([]clusterSize, d.NumClusters)
	for c := range sizes {
		sizes[c].Cluster = c
	}
	for _, c := range d.Clusters {
		if c >= 0 {
			sizes[c].N++
		}
	}
	sort.Slice(sizes, func(a, b int) bool { return sizes[a].Cluster < sizes[b].Cluster })

	var topMarkers []singlecell.Marker
	top := singlecell.TopMarkers(in.Result.StrictMarkers, 3)
	for c := 0; c < d.NumClusters; c++ {
		topMarkers = append(topMarkers, top[c]...)
	}

	var buf bytes.Buffer
	err := reportTmpl.Execute(&buf, map[string]interface{}{
		"Stats":        in.Result.Stats,
		"ClusterSizes": sizes,
		"TopMarkers":   topMarkers,
		"HasSummary":   in.Summary != nil && len(in.Summary.Labels) > 0,
	})
	if err != nil {
		return errors.E(err, "report: executing template")
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "report: creating "+path)
	}
	if _, err := out.Writer(ctx).Write(buf.Bytes()); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "report: writing "+path)
	}
	return out.Close(ctx)
}
