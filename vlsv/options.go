package vlsv

import "github.com/sirupsen/logrus"

// Default mesh names written by Vlasiator.
const (
	DefaultSpatialMesh     = "SpatialGrid"
	DefaultFieldSolverMesh = "fsgrid"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger          logrus.FieldLogger
	spatialMesh     string
	fieldSolverMesh string
	concurrency     int
}

func defaultOptions() *options {
	return &options{
		logger:          logrus.StandardLogger(),
		spatialMesh:     DefaultSpatialMesh,
		fieldSolverMesh: DefaultFieldSolverMesh,
		concurrency:     4,
	}
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSpatialMesh sets the name of the adaptively refined mesh.
func WithSpatialMesh(name string) Option {
	return func(o *options) {
		if name != "" {
			o.spatialMesh = name
		}
	}
}

// WithFieldSolverMesh sets the name of the uniform field-solver mesh.
func WithFieldSolverMesh(name string) Option {
	return func(o *options) {
		if name != "" {
			o.fieldSolverMesh = name
		}
	}
}

// WithConcurrency bounds the number of reads ReadVariables issues at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}
