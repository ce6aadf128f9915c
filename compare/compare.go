// Package compare checks two VLSV snapshots for numerical equality within a
// relative tolerance. Arrays whose values depend on how the simulation
// distributed its cells over processes are skipped, and file sizes are
// never compared.
package compare

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/robert-malhotra/go-vlsv/vlsv"
)

// Option configures a comparison.
type Option func(*options)

type options struct {
	cfg    Config
	logger logrus.FieldLogger
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTolerance sets the relative tolerance.
func WithTolerance(tol float64) Option {
	return func(o *options) { o.cfg.Tolerance = tol }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Kind says what a compared name is.
type Kind string

const (
	Parameter Kind = "parameter"
	Variable  Kind = "variable"
)

// Difference is one name that does not match.
type Difference struct {
	Name   string
	Kind   Kind
	Reason string
	// MaxRelDiff is the largest relative difference over all values, and
	// Mismatches the number of values outside the tolerance.
	MaxRelDiff float64
	Mismatches int
}

func (d Difference) String() string {
	if d.Mismatches == 0 {
		return fmt.Sprintf("%s %s: %s", d.Kind, d.Name, d.Reason)
	}
	return fmt.Sprintf("%s %s: %s (%d values, max relative difference %.3g)",
		d.Kind, d.Name, d.Reason, d.Mismatches, d.MaxRelDiff)
}

// Report is the outcome of a comparison.
type Report struct {
	File1, File2 string
	Compared     []string
	Skipped      []string
	Differences  []Difference
}

// Equal reports whether no differences were found.
func (r *Report) Equal() bool {
	return len(r.Differences) == 0
}

// WriteTo writes a human readable summary.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", r.File1, r.File2)
	fmt.Fprintf(&b, "compared %d, skipped %d\n", len(r.Compared), len(r.Skipped))
	if r.Equal() {
		b.WriteString("files are identical within tolerance\n")
	}
	for _, d := range r.Differences {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Files compares the snapshots at two paths.
func Files(path1, path2 string, opts ...Option) (*Report, error) {
	o := &options{cfg: DefaultConfig(), logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}

	a, err := vlsv.Open(path1, vlsv.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	defer a.Close()
	b, err := vlsv.Open(path2, vlsv.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return compare(a, b, o)
}

// MetaData compares two open snapshots.
func MetaData(a, b *vlsv.MetaData, opts ...Option) (*Report, error) {
	o := &options{cfg: DefaultConfig(), logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return compare(a, b, o)
}

func compare(a, b *vlsv.MetaData, o *options) (*Report, error) {
	r := &Report{File1: a.Path(), File2: b.Path()}
	c := &comparer{cfg: o.cfg, log: o.logger}

	for _, name := range union(a.Parameters(), b.Parameters()) {
		if c.skip(name) {
			r.Skipped = append(r.Skipped, name)
			continue
		}
		r.Compared = append(r.Compared, name)
		if d, ok, err := c.parameter(a, b, name); err != nil {
			return nil, err
		} else if !ok {
			r.Differences = append(r.Differences, d)
		}
	}

	var vars []string
	for _, name := range union(a.Variables(), b.Variables()) {
		if c.skip(name) {
			r.Skipped = append(r.Skipped, name)
			continue
		}
		vars = append(vars, name)
	}
	r.Compared = append(r.Compared, vars...)

	diffs := make([]*Difference, len(vars))
	var g errgroup.Group
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}
	for i, name := range vars {
		i, name := i, name
		g.Go(func() error {
			d, ok, err := c.variable(a, b, name)
			if err != nil {
				return err
			}
			if !ok {
				diffs[i] = &d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, d := range diffs {
		if d != nil {
			r.Differences = append(r.Differences, *d)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"compared":    len(r.Compared),
		"skipped":     len(r.Skipped),
		"differences": len(r.Differences),
	}).Debug("compared vlsv files")
	return r, nil
}

type comparer struct {
	cfg Config
	log logrus.FieldLogger
}

func (c *comparer) skip(name string) bool {
	for _, s := range c.cfg.Skip {
		if name == s {
			return true
		}
	}
	for _, s := range c.cfg.SkipSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func (c *comparer) parameter(a, b *vlsv.MetaData, name string) (Difference, bool, error) {
	d := Difference{Name: name, Kind: Parameter}
	if !a.HasParameter(name) || !b.HasParameter(name) {
		d.Reason = missingReason(a.HasParameter(name))
		return d, false, nil
	}
	x, err := a.ReadParameter(name)
	if err != nil {
		return d, false, err
	}
	y, err := b.ReadParameter(name)
	if err != nil {
		return d, false, err
	}
	return c.values(d, []float64{x}, []float64{y})
}

func (c *comparer) variable(a, b *vlsv.MetaData, name string) (Difference, bool, error) {
	d := Difference{Name: name, Kind: Variable}
	if !a.HasVariable(name) || !b.HasVariable(name) {
		d.Reason = missingReason(a.HasVariable(name))
		return d, false, nil
	}
	x, err := readFloats(a, name)
	if err != nil {
		return d, false, err
	}
	y, err := readFloats(b, name)
	if err != nil {
		return d, false, err
	}
	c.log.WithFields(logrus.Fields{"variable": name, "values": len(x)}).Debug("comparing variable")
	return c.values(d, x, y)
}

func readFloats(md *vlsv.MetaData, name string) ([]float64, error) {
	arr, err := md.ReadVariable(name, true)
	if err != nil {
		return nil, err
	}
	return arr.Float64()
}

func missingReason(inFirst bool) string {
	if inFirst {
		return "missing in second file"
	}
	return "missing in first file"
}

// values compares x and y element-wise; the bool result reports equality.
func (c *comparer) values(d Difference, x, y []float64) (Difference, bool, error) {
	if len(x) != len(y) {
		d.Reason = fmt.Sprintf("length differs (%d vs %d)", len(x), len(y))
		return d, false, nil
	}
	for i := range x {
		if math.IsNaN(x[i]) && math.IsNaN(y[i]) {
			continue
		}
		if scalar.EqualWithinAbsOrRel(x[i], y[i], c.cfg.AbsTolerance, c.cfg.Tolerance) {
			continue
		}
		d.Mismatches++
		if rd := relDiff(x[i], y[i]); rd > d.MaxRelDiff || math.IsNaN(rd) {
			d.MaxRelDiff = rd
		}
	}
	if d.Mismatches > 0 {
		d.Reason = "values differ"
		return d, false, nil
	}
	return d, true, nil
}

func relDiff(x, y float64) float64 {
	den := math.Max(math.Abs(x), math.Abs(y))
	if den == 0 {
		return 0
	}
	return math.Abs(x-y) / den
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
