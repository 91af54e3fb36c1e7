// Package atlas annotates cells against a labeled reference expression
// atlas. The reference is fetched at run time, treated as a read-only
// collaborator: per-sample mean expression profiles tagged with a coarse
// ("main") and a fine label. Cells are classified by rank correlation
// against per-label mean profiles; low-confidence calls are pruned.
package atlas

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// Reference is a parsed atlas: one expression profile per reference
// sample, with both label granularities.
type Reference struct {
	Genes   []string
	Samples []Sample
}

// Sample is one reference profile.
type Sample struct {
	Name string
	Main string
	Fine string
	// Expr is parallel to Reference.Genes.
	Expr []float64
}

// Fetch retrieves and parses the reference atlas. http(s) URLs are fetched
// directly; anything else goes through the file package, so local and
// remote object-store paths both work. A fetch or parse failure is fatal
// to the annotation stage; there is no retry and no caching discipline.
func Fetch(ctx context.Context, url string) (*Reference, error) {
	var r io.Reader
	var closeFn func() error
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.E(err, "atlas: bad url "+url)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, errors.E(err, "atlas: fetching "+url)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() // nolint: errcheck
			return nil, errors.E(errors.NotExist, "atlas: "+url+" returned "+resp.Status)
		}
		r = resp.Body
		closeFn = resp.Body.Close
	} else {
		f, err := file.Open(ctx, url)
		if err != nil {
			return nil, errors.E(err, "atlas: opening "+url)
		}
		r = f.Reader(ctx)
		closeFn = func() error { return f.Close(ctx) }
	}
	defer closeFn() // nolint: errcheck

	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "atlas: gunzip "+url)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	ref, err := Parse(r)
	if err != nil {
		return nil, err
	}
	log.Printf("atlas: fetched %d samples x %d genes from %s", len(ref.Samples), len(ref.Genes), url)
	return ref, nil
}

// Parse reads the atlas TSV: three tagged header lines (#sample, #main,
// #fine) naming each reference column, then one row per gene with its
// mean expression in every sample.
func Parse(r io.Reader) (*Reference, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<22)

	var names, mains, fines []string
	readHeader := func(tag string) ([]string, error) {
		if !sc.Scan() {
			return nil, errors.E(errors.Invalid, "atlas: missing "+tag+" header")
		}
		cols := strings.Split(sc.Text(), "\t")
		if cols[0] != tag {
			return nil, errors.E(errors.Invalid, "atlas: expected "+tag+" header, got "+cols[0])
		}
		if len(cols) < 2 {
			return nil, errors.E(errors.Invalid, "atlas: empty "+tag+" header")
		}
		return cols[1:], nil
	}
	var err error
	if names, err = readHeader("#sample"); err != nil {
		return nil, err
	}
	if mains, err = readHeader("#main"); err != nil {
		return nil, err
	}
	if fines, err = readHeader("#fine"); err != nil {
		return nil, err
	}
	if len(mains) != len(names) || len(fines) != len(names) {
		return nil, errors.E(errors.Invalid, "atlas: header column counts disagree")
	}

	ref := &Reference{Samples: make([]Sample, len(names))}
	for i := range names {
		ref.Samples[i] = Sample{Name: names[i], Main: mains[i], Fine: fines[i]}
	}
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != len(names)+1 {
			return nil, errors.E(errors.Invalid, "atlas: malformed row for gene "+cols[0])
		}
		ref.Genes = append(ref.Genes, cols[0])
		for i := range names {
			v, err := strconv.ParseFloat(cols[i+1], 64)
			if err != nil {
				return nil, errors.E(errors.Invalid, "atlas: bad value for gene "+cols[0])
			}
			ref.Samples[i].Expr = append(ref.Samples[i].Expr, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "atlas: reading reference")
	}
	if len(ref.Genes) == 0 {
		return nil, errors.E(errors.Invalid, "atlas: reference has no genes")
	}
	return ref, nil
}
