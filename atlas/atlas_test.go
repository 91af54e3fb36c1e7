package atlas

import (
	"math"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func expectNear(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("got %v, want %v (tol %v)", got, want, tol)
	}
}

const testAtlas = "#sample\tref1\tref2\tref3\n" +
	"#main\tT cell\tT cell\tB cell\n" +
	"#fine\tCD4 T\tCD8 T\tNaive B\n" +
	"CD3E\t9.1\t8.7\t0.2\n" +
	"CD8A\t0.5\t7.9\t0.1\n" +
	"MS4A1\t0.1\t0.2\t9.5\n"

func TestParse(t *testing.T) {
	ref, err := Parse(strings.NewReader(testAtlas))
	assert.NoError(t, err)
	expect.EQ(t, ref.Genes, []string{"CD3E", "CD8A", "MS4A1"})
	assert.EQ(t, len(ref.Samples), 3)
	expect.EQ(t, ref.Samples[0], Sample{Name: "ref1", Main: "T cell", Fine: "CD4 T", Expr: []float64{9.1, 0.5, 0.1}})
	expect.EQ(t, ref.Samples[2].Main, "B cell")
	expect.EQ(t, ref.Samples[2].Expr, []float64{0.2, 0.1, 9.5})
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name, in string
	}{
		{"empty", ""},
		{"wrong-header-order", "#main\ta\n#sample\tb\n#fine\tc\nG\t1\n"},
		{"column-count", "#sample\ta\tb\n#main\tx\ty\n#fine\tu\tv\nG\t1\n"},
		{"bad-value", "#sample\ta\n#main\tx\n#fine\tu\nG\tnotanumber\n"},
		{"no-genes", "#sample\ta\n#main\tx\n#fine\tu\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			assert.NotNil(t, err)
		})
	}
}
