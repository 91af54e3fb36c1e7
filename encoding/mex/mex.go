// Package mex reads 10x Genomics feature-barcode matrices in market
// exchange (MEX) layout: a directory holding matrix.mtx, features.tsv and
// barcodes.tsv, each optionally gzip-compressed. Only features of type
// "Gene Expression" are retained; other modalities (antibody capture,
// CRISPR guides) are dropped at load time.
package mex

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/james-bowman/sparse"
	"github.com/klauspost/compress/gzip"
)

// GeneExpressionType is the feature type kept by Read.
const GeneExpressionType = "Gene Expression"

// Matrix is a loaded gene-expression matrix: counts are cells x genes.
type Matrix struct {
	Counts   *sparse.CSR
	Genes    []string
	GeneIDs  []string
	Barcodes []string
}

type feature struct {
	id, name, kind string
}

// Read loads the MEX triple from dir. Candidate file names are tried with
// and without a .gz suffix. Any missing or malformed member is a fatal,
// wrapped error; there is no partial result.
func Read(ctx context.Context, dir string) (*Matrix, error) {
	features, err := readFeatures(ctx, dir)
	if err != nil {
		return nil, err
	}
	barcodes, err := readBarcodes(ctx, dir)
	if err != nil {
		return nil, err
	}
	m, err := readMatrix(ctx, dir, features, barcodes)
	if err != nil {
		return nil, err
	}
	log.Printf("mex: read %d cells x %d genes from %s", len(m.Barcodes), len(m.Genes), dir)
	return m, nil
}

// open tries path and path+".gz", decompressing transparently.
func open(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	for _, candidate := range []string{name, name + ".gz"} {
		path := file.Join(dir, candidate)
		f, err := file.Open(ctx, path)
		if err != nil {
			continue
		}
		r := f.Reader(ctx)
		if strings.HasSuffix(candidate, ".gz") {
			gz, err := gzip.NewReader(r)
			if err != nil {
				f.Close(ctx) // nolint: errcheck
				return nil, errors.E(err, "gunzip "+path)
			}
			return &gzFileReader{gz: gz, f: f, ctx: ctx}, nil
		}
		return &fileReader{r: r, f: f, ctx: ctx}, nil
	}
	return nil, errors.E(errors.NotExist, "mex: "+name+"[.gz] not found in "+dir)
}

type fileReader struct {
	r   io.Reader
	f   file.File
	ctx context.Context
}

func (r *fileReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *fileReader) Close() error               { return r.f.Close(r.ctx) }

type gzFileReader struct {
	gz  *gzip.Reader
	f   file.File
	ctx context.Context
}

func (r *gzFileReader) Read(p []byte) (int, error) { return r.gz.Read(p) }
func (r *gzFileReader) Close() error {
	if err := r.gz.Close(); err != nil {
		r.f.Close(r.ctx) // nolint: errcheck
		return err
	}
	return r.f.Close(r.ctx)
}

func readFeatures(ctx context.Context, dir string) ([]feature, error) {
	// Older cellranger releases name this file genes.tsv and omit the
	// feature-type column.
	in, err := open(ctx, dir, "features.tsv")
	if err != nil {
		var err2 error
		if in, err2 = open(ctx, dir, "genes.tsv"); err2 != nil {
			return nil, err
		}
	}
	defer in.Close() // nolint: errcheck

	var features []feature
	sc := bufio.NewScanner(in)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) < 2 {
			return nil, errors.E(errors.Invalid, "mex: malformed feature row: "+sc.Text())
		}
		f := feature{id: cols[0], name: cols[1], kind: GeneExpressionType}
		if len(cols) >= 3 {
			f.kind = cols[2]
		}
		features = append(features, f)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "mex: reading features")
	}
	if len(features) == 0 {
		return nil, errors.E(errors.Invalid, "mex: empty feature list")
	}
	return features, nil
}

func readBarcodes(ctx context.Context, dir string) ([]string, error) {
	in, err := open(ctx, dir, "barcodes.tsv")
	if err != nil {
		return nil, err
	}
	defer in.Close() // nolint: errcheck

	var barcodes []string
	sc := bufio.NewScanner(in)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		barcodes = append(barcodes, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "mex: reading barcodes")
	}
	if len(barcodes) == 0 {
		return nil, errors.E(errors.Invalid, "mex: empty barcode list")
	}
	return barcodes, nil
}

// readMatrix parses the MatrixMarket body. The on-disk orientation is
// genes x cells; the returned matrix is transposed to cells x genes.
func readMatrix(ctx context.Context, dir string, features []feature, barcodes []string) (*Matrix, error) {
	in, err := open(ctx, dir, "matrix.mtx")
	if err != nil {
		return nil, err
	}
	defer in.Close() // nolint: errcheck

	keep := make([]int, len(features)) // feature row -> gene column, or -1
	m := &Matrix{Barcodes: barcodes}
	for i, f := range features {
		if f.kind == GeneExpressionType {
			keep[i] = len(m.Genes)
			m.Genes = append(m.Genes, f.name)
			m.GeneIDs = append(m.GeneIDs, f.id)
		} else {
			keep[i] = -1
		}
	}
	if len(m.Genes) == 0 {
		return nil, errors.E(errors.Invalid, "mex: no "+GeneExpressionType+" features present")
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(nil, 1<<20)
	headerSeen := false
	dok := sparse.NewDOK(len(barcodes), len(m.Genes))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) != 3 {
			return nil, errors.E(errors.Invalid, "mex: malformed matrix row: "+line)
		}
		if !headerSeen {
			// Size line: nrows ncols nnz.
			headerSeen = true
			nr, err1 := strconv.Atoi(cols[0])
			nc, err2 := strconv.Atoi(cols[1])
			if err1 != nil || err2 != nil {
				return nil, errors.E(errors.Invalid, "mex: malformed size line: "+line)
			}
			if nr != len(features) || nc != len(barcodes) {
				return nil, errors.E(errors.Invalid, "mex: matrix size does not match features/barcodes")
			}
			continue
		}
		row, err1 := strconv.Atoi(cols[0])
		col, err2 := strconv.Atoi(cols[1])
		val, err3 := strconv.ParseFloat(cols[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, errors.E(errors.Invalid, "mex: malformed entry: "+line)
		}
		if row < 1 || row > len(features) || col < 1 || col > len(barcodes) {
			return nil, errors.E(errors.Invalid, "mex: entry out of range: "+line)
		}
		g := keep[row-1]
		if g < 0 {
			continue
		}
		dok.Set(col-1, g, val)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "mex: reading matrix")
	}
	if !headerSeen {
		return nil, errors.E(errors.Invalid, "mex: missing matrix size line")
	}
	m.Counts = dok.ToCSR()
	return m, nil
}
