// vlsvinfo inspects VLSV snapshots: their catalog, mesh, cell values, line
// profiles and velocity distributions, and compares two snapshots.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robert-malhotra/go-vlsv/vlsv"
)

const (
	cliName        = "vlsvinfo"
	cliDescription = "inspect and compare VLSV files"
	logLevelEnv    = "VLSV_LOG_LEVEL"
)

var (
	logLevel string
	log      = logrus.New()
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogger(cmd.ErrOrStderr())
		},
	}
	level := os.Getenv(logLevelEnv)
	if level == "" {
		level = "warning"
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", level,
		"log level (panic, fatal, error, warning, info, debug, trace); defaults to $"+logLevelEnv)

	root.AddCommand(
		newVarsCommand(),
		newMeshCommand(),
		newCellCommand(),
		newLineCommand(),
		newVDFCommand(),
		newCompareCommand(),
	)
	return root
}

func setupLogger(w io.Writer) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.RFC3339Nano,
		FullTimestamp:   true,
	})
	return nil
}

func main() {
	cobra.EnablePrefixMatching = true
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %s\n", cliName, err)
		os.Exit(1)
	}
}

// open opens a snapshot with the command's logger and mesh names.
func open(cmd *cobra.Command, path string) (*vlsv.MetaData, error) {
	opts := []vlsv.Option{vlsv.WithLogger(log)}
	if f := cmd.Flags().Lookup("mesh"); f != nil && f.Changed {
		opts = append(opts, vlsv.WithSpatialMesh(f.Value.String()))
	}
	return vlsv.Open(path, opts...)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parsePoint(args []string) (r3.Vec, error) {
	v, err := parseFloats(args)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
