package main

// This file defines writeSession and readSession. The analyze phase dumps
// the completed analysis into a recordio file, and the report phase reads
// it back, so the two invocations communicate through one checkpoint
// artifact.

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"

	"github.com/scgenomics/scrna/atlas"
	"github.com/scgenomics/scrna/singlecell"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "scrnaversion"
	fileVersion       = "SCRNA_V1"
)

// session is the complete analyze-phase output carried to the report
// phase.
type session struct {
	Opts    singlecell.Opts
	Result  *singlecell.Result
	Summary *atlas.LabelSummary
}

// sessionFileTrailer is stored in the trailer section of the recordio
// file, so the options are recoverable without decoding the body.
type sessionFileTrailer struct {
	Opts singlecell.Opts
}

func writeSession(ctx context.Context, path string, s *session) error {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "session create "+path)
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)

	body := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(body).Encode(s); err != nil {
		return errors.E(err, "session encode")
	}
	w.Append(body.Bytes())

	trailer := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(trailer).Encode(sessionFileTrailer{Opts: s.Opts}); err != nil {
		return errors.E(err, "session trailer encode")
	}
	w.SetTrailer(trailer.Bytes())
	if err := w.Finish(); err != nil {
		out.Close(ctx) // nolint: errcheck
		return errors.E(err, "session finish "+path)
	}
	return out.Close(ctx)
}

func readSession(ctx context.Context, path string) (*session, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "session open "+path)
	}
	defer in.Close(ctx) // nolint: errcheck
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if kv.Value.(string) != fileVersion {
				return nil, errors.E(errors.Invalid,
					"session file version mismatch: got "+kv.Value.(string)+", expect "+fileVersion)
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.E(errors.Invalid, fileVersionHeader+" not found in "+path)
	}
	if !r.Scan() {
		if err := r.Err(); err != nil {
			return nil, errors.E(err, "session read "+path)
		}
		return nil, errors.E(errors.Invalid, "session file "+path+" has no body")
	}
	s := &session{}
	if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(s); err != nil {
		return nil, errors.E(err, "session decode "+path)
	}
	return s, nil
}
