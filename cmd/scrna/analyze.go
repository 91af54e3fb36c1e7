package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"

	"github.com/scgenomics/scrna/atlas"
	"github.com/scgenomics/scrna/encoding/mex"
	"github.com/scgenomics/scrna/singlecell"
)

type analyzeFlags struct {
	mexDir    *string
	sGenes    *string
	g2mGenes  *string
	atlasURL  *string
	session   *string
	outPrefix *string

	minUMI        *float64
	minGenes      *int
	minComplexity *float64
	maxMito       *float64
	numFeatures   *int
	resolution    *float64
	tsneIter      *int
}

func newCmdAnalyze() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "analyze",
		Short: "Run the analysis pipeline and write the session checkpoint",
	}
	def := singlecell.DefaultOpts
	flags := analyzeFlags{
		mexDir:        cmd.Flags.String("mex", "", "Input 10x MEX directory (matrix.mtx, features.tsv, barcodes.tsv, optionally gzipped)"),
		sGenes:        cmd.Flags.String("s-genes", "", "Path to the S-phase gene panel, one gene per line"),
		g2mGenes:      cmd.Flags.String("g2m-genes", "", "Path to the G2M-phase gene panel, one gene per line"),
		atlasURL:      cmd.Flags.String("atlas", "", "Reference atlas TSV URL or path; empty skips annotation"),
		session:       cmd.Flags.String("session", "scrna-session.rio", "Output session recordio path"),
		outPrefix:     cmd.Flags.String("out-prefix", "scrna", "Prefix for the TSV exports"),
		minUMI:        cmd.Flags.Float64("min-umi", def.QC.MinUMI, "Minimum UMI count per cell"),
		minGenes:      cmd.Flags.Int("min-genes", def.QC.MinGenes, "Minimum detected genes per cell"),
		minComplexity: cmd.Flags.Float64("min-complexity", def.QC.MinLogGenesPerUMI, "Minimum log10(nGene)/log10(nUMI) per cell"),
		maxMito:       cmd.Flags.Float64("max-mito", def.QC.MaxMitoRatio, "Maximum mitochondrial fraction per cell"),
		numFeatures:   cmd.Flags.Int("num-features", def.HVG.NumFeatures, "Number of variable features retained"),
		resolution:    cmd.Flags.Float64("resolution", def.Cluster.Resolution, "Clustering resolution"),
		tsneIter:      cmd.Flags.Int("tsne-iter", def.Embed.MaxIter, "t-SNE iteration budget"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("analyze takes no positional arguments, got %v", argv)
		}
		if *flags.mexDir == "" {
			return fmt.Errorf("-mex is required")
		}
		return analyze(vcontext.Background(), flags)
	})
	return cmd
}

func analyze(ctx context.Context, flags analyzeFlags) error {
	opts := singlecell.DefaultOpts
	opts.QC.MinUMI = *flags.minUMI
	opts.QC.MinGenes = *flags.minGenes
	opts.QC.MinLogGenesPerUMI = *flags.minComplexity
	opts.QC.MaxMitoRatio = *flags.maxMito
	opts.HVG.NumFeatures = *flags.numFeatures
	opts.Cluster.Resolution = *flags.resolution
	opts.Embed.MaxIter = *flags.tsneIter

	m, err := mex.Read(ctx, *flags.mexDir)
	if err != nil {
		return err
	}
	d, err := singlecell.NewDataset(m.Counts, m.Barcodes, m.Genes)
	if err != nil {
		return err
	}

	var panels singlecell.CellCyclePanels
	if *flags.sGenes != "" {
		if panels.S, err = loadGeneList(ctx, *flags.sGenes); err != nil {
			return err
		}
	}
	if *flags.g2mGenes != "" {
		if panels.G2M, err = loadGeneList(ctx, *flags.g2mGenes); err != nil {
			return err
		}
	}

	res, err := singlecell.Run(d, panels, opts)
	if err != nil {
		return err
	}

	var summary *atlas.LabelSummary
	if *flags.atlasURL != "" {
		ref, err := atlas.Fetch(ctx, *flags.atlasURL)
		if err != nil {
			return err
		}
		annotated, err := atlas.Annotate(res.Dataset, ref, atlas.DefaultOpts, &res.Stats)
		if err != nil {
			return err
		}
		res.Dataset = annotated
		summary = atlas.Summarize(res.Dataset, 10, 10)
	} else {
		log.Printf("no -atlas given; skipping reference annotation")
	}

	if err := writeMarkerTSV(ctx, *flags.outPrefix+".markers.strict.tsv", res.StrictMarkers); err != nil {
		return err
	}
	if err := writeMarkerTSV(ctx, *flags.outPrefix+".markers.loose.tsv", res.LooseMarkers); err != nil {
		return err
	}
	if err := writeCellTSV(ctx, *flags.outPrefix+".cells.tsv", res.Dataset); err != nil {
		return err
	}
	if err := writeSession(ctx, *flags.session, &session{Opts: opts, Result: res, Summary: summary}); err != nil {
		return err
	}
	log.Printf("analyze: wrote session to %s", *flags.session)
	return nil
}

// loadGeneList reads a newline-separated gene list, ignoring blank lines
// and # comments.
func loadGeneList(ctx context.Context, path string) ([]string, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "gene list "+path)
	}
	defer in.Close(ctx) // nolint: errcheck
	var genes []string
	sc := bufio.NewScanner(in.Reader(ctx))
	for sc.Scan() {
		g := strings.TrimSpace(sc.Text())
		if g == "" || strings.HasPrefix(g, "#") {
			continue
		}
		genes = append(genes, g)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "gene list "+path)
	}
	if len(genes) == 0 {
		return nil, errors.E(errors.Invalid, "gene list "+path+" is empty")
	}
	return genes, nil
}

func writeMarkerTSV(ctx context.Context, path string, markers []singlecell.Marker) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "marker tsv "+path)
	}
	w := tsv.NewRowWriter(out.Writer(ctx))
	for i := range markers {
		if err := w.Write(&markers[i]); err != nil {
			out.Close(ctx) // nolint: errcheck
			return errors.E(err, "marker tsv "+path)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "marker tsv "+path)
	}
	return out.Close(ctx)
}

// cellRow is the per-cell metadata export row.
type cellRow struct {
	Barcode        string  `tsv:"barcode"`
	NUMI           float64 `tsv:"nUMI"`
	NGene          int     `tsv:"nGene"`
	LogGenesPerUMI float64 `tsv:"log10GenesPerUMI"`
	MitoRatio      float64 `tsv:"mitoRatio"`
	Phase          string  `tsv:"phase"`
	Cluster        int     `tsv:"cluster"`
	MainLabel      string  `tsv:"main_label"`
	FineLabel      string  `tsv:"fine_label"`
}

func writeCellTSV(ctx context.Context, path string, d *singlecell.Dataset) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "cell tsv "+path)
	}
	w := tsv.NewRowWriter(out.Writer(ctx))
	for i := range d.Cells {
		c := &d.Cells[i]
		row := cellRow{
			Barcode:        c.Barcode,
			NUMI:           c.NUMI,
			NGene:          c.NGene,
			LogGenesPerUMI: c.LogGenesPerUMI,
			MitoRatio:      c.MitoRatio,
			Phase:          c.Phase,
			Cluster:        c.Cluster,
			MainLabel:      c.MainLabel,
			FineLabel:      c.FineLabel,
		}
		if err := w.Write(&row); err != nil {
			out.Close(ctx) // nolint: errcheck
			return errors.E(err, "cell tsv "+path)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "cell tsv "+path)
	}
	return out.Close(ctx)
}
