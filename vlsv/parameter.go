package vlsv

import (
	"fmt"

	"github.com/robert-malhotra/go-vlsv/internal/dtype"
	"github.com/robert-malhotra/go-vlsv/internal/footer"
)

// ReadParameter returns the value of a scalar parameter.
func (md *MetaData) ReadParameter(name string) (float64, error) {
	if err := md.check(); err != nil {
		return 0, err
	}
	return md.readParameter(name)
}

func (md *MetaData) readParameter(name string) (float64, error) {
	e, ok := md.footer.Find(footer.TagParameter, name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingParameter, name)
	}
	return md.readScalar(e)
}

func (md *MetaData) readScalar(e *footer.Entry) (float64, error) {
	if e.ArraySize < 1 {
		return 0, fmt.Errorf("%w: %s is empty", ErrFormat, e)
	}
	data, err := md.readRecords(e, 0, 1)
	if err != nil {
		return 0, err
	}
	v, err := dtype.Decode[float64](e.Type, md.footer.ByteOrder, data, 1)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFormat, e, err)
	}
	return v[0], nil
}

// lookupParameter adapts readParameter to the lookups mesh construction uses.
func (md *MetaData) lookupParameter(name string) (float64, bool) {
	v, err := md.readParameter(name)
	return v, err == nil
}

// HasParameter reports whether a parameter is stored.
func (md *MetaData) HasParameter(name string) bool {
	return md.footer.Has(footer.TagParameter, name)
}

// Parameters returns the names of all parameters, sorted.
func (md *MetaData) Parameters() []string {
	return names(md.footer.ByTag(footer.TagParameter))
}

// Time returns the simulation time of the snapshot, from the parameter
// "time" or, in older files, "t".
func (md *MetaData) Time() (float64, error) {
	if err := md.check(); err != nil {
		return 0, err
	}
	if md.HasParameter("time") {
		return md.readParameter("time")
	}
	if md.HasParameter("t") {
		return md.readParameter("t")
	}
	return 0, fmt.Errorf("%w: %q", ErrMissingParameter, "time")
}

// Version returns the file format version from the VERSION tag.
func (md *MetaData) Version() (float64, error) {
	if err := md.check(); err != nil {
		return 0, err
	}
	e, ok := md.footer.Find(footer.TagVersion, "")
	if !ok {
		return 0, fmt.Errorf("%w: no %s tag", ErrNotFound, footer.TagVersion)
	}
	return md.readScalar(e)
}

// Config returns the simulation configuration text stored in the CONFIG
// tag, if any.
func (md *MetaData) Config() (string, error) {
	if err := md.check(); err != nil {
		return "", err
	}
	e, ok := md.footer.Find(footer.TagConfig, "")
	if !ok {
		if es := md.footer.ByTag(footer.TagConfig); len(es) > 0 {
			e, ok = es[0], true
		}
	}
	if !ok {
		return "", fmt.Errorf("%w: no %s tag", ErrNotFound, footer.TagConfig)
	}
	if e.Type.Size != 1 {
		return "", fmt.Errorf("%w: %s holds %s, want bytes", ErrFormat, e, e.Type)
	}
	data, err := md.readRecords(e, 0, int64(e.ArraySize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
