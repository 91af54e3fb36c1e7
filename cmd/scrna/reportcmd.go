package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"

	"github.com/scgenomics/scrna/report"
)

func newCmdReport() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "report",
		Short:    "Render plots and an HTML report from a session checkpoint",
		ArgsName: "session-path",
	}
	outDir := cmd.Flags.String("out-dir", "scrna-report", "Directory for the report artifacts")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("report takes exactly one session path, got %v", argv)
		}
		ctx := vcontext.Background()
		s, err := readSession(ctx, argv[0])
		if err != nil {
			return err
		}
		in := report.Input{
			Result:       s.Result,
			Summary:      s.Summary,
			MaxMitoRatio: s.Opts.QC.MaxMitoRatio,
		}
		if err := report.Render(ctx, *outDir, &in); err != nil {
			return err
		}
		log.Printf("report: wrote artifacts to %s", *outDir)
		return nil
	})
	return cmd
}
