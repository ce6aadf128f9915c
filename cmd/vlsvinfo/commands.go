package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-vlsv/compare"
	"github.com/robert-malhotra/go-vlsv/vlsv"
)

func newVarsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars FILE",
		Short: "list parameters, variables and populations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer md.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PARAMETER\tVALUE")
			for _, p := range md.Parameters() {
				v, err := md.ReadParameter(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%g\n", p, v)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "VARIABLE\tMESH\tTYPE\tRECORDS\tVECTOR\tUNIT")
			for _, name := range md.Variables() {
				info, err := md.VariableInfo(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					info.Name, info.Mesh, info.Type, info.Len, info.VectorSize, info.Unit)
			}
			if pops := md.Populations(); len(pops) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintf(w, "POPULATIONS\t%s\n", strings.Join(pops, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("mesh", vlsv.DefaultSpatialMesh, "name of the spatial mesh")
	return cmd
}

func newMeshCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesh FILE",
		Short: "describe the spatial and field-solver meshes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer md.Close()

			out := cmd.OutOrStdout()
			d := md.SpatialMesh()
			if d == nil {
				fmt.Fprintln(out, "no spatial mesh")
			} else {
				fmt.Fprintf(out, "spatial mesh %q\n", d.Name)
				fmt.Fprintf(out, "  extent:    %v .. %v\n", d.Min, d.Max)
				fmt.Fprintf(out, "  cells:     %v at level 0\n", d.Cells)
				fmt.Fprintf(out, "  max level: %d\n", d.MaxLevel)
				fmt.Fprintf(out, "  periodic:  %v\n", d.Periodic)
				fmt.Fprintf(out, "  stored:    %d cells\n", len(md.CellIDs(false)))
			}
			if fs := md.FieldSolverMesh(); fs != nil {
				fmt.Fprintf(out, "field-solver mesh %q\n", fs.Name)
				fmt.Fprintf(out, "  extent:    %v .. %v\n", fs.Min, fs.Max)
				fmt.Fprintf(out, "  cells:     %v\n", fs.Cells)
			}
			for _, pop := range md.Populations() {
				vm, err := md.VelocityMesh(pop)
				if err != nil {
					return err
				}
				cells, err := md.CellsWithDistribution(pop)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "population %q\n", pop)
				fmt.Fprintf(out, "  extent:    %v .. %v\n", vm.Min, vm.Max)
				fmt.Fprintf(out, "  blocks:    %v of %v cells\n", vm.Blocks, vm.WID)
				fmt.Fprintf(out, "  stored in: %d spatial cells\n", len(cells))
			}
			return nil
		},
	}
	cmd.Flags().String("mesh", vlsv.DefaultSpatialMesh, "name of the spatial mesh")
	return cmd
}

func newCellCommand() *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "cell FILE X Y Z",
		Short: "locate the cell containing a point and print its values",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[1:])
			if err != nil {
				return err
			}
			md, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer md.Close()

			id, err := md.CellID(p)
			if err != nil {
				return err
			}
			level, err := md.AMRLevel(id)
			if err != nil {
				return err
			}
			c, err := md.CellCoordinates(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cell %d, level %d, centre %v\n", id, level, c)
			nb, err := md.CellNeighbors(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  neighbours %v\n", nb)
			for _, name := range vars {
				arr, err := md.ReadVariableSelect(name, []uint64{id})
				if err != nil {
					return err
				}
				v, err := arr.Record(0)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s = %v\n", name, formatValues(v))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&vars, "var", nil, "variables to print")
	cmd.Flags().String("mesh", vlsv.DefaultSpatialMesh, "name of the spatial mesh")
	return cmd
}

func newLineCommand() *cobra.Command {
	var varName string
	cmd := &cobra.Command{
		Use:   "line FILE X1 Y1 Z1 X2 Y2 Z2",
		Short: "list the cells crossed by a segment",
		Args:  cobra.ExactArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			p1, err := parsePoint(args[1:4])
			if err != nil {
				return err
			}
			p2, err := parsePoint(args[4:7])
			if err != nil {
				return err
			}
			md, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer md.Close()

			cells, err := md.CellsInLine(p1, p2)
			if err != nil {
				return err
			}
			var arr *vlsv.Array
			if varName != "" {
				ids := make([]uint64, len(cells))
				for i, c := range cells {
					ids[i] = c.ID
				}
				if arr, err = md.ReadVariableSelect(varName, ids); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "CELL\tDISTANCE\tX\tY\tZ"
			if arr != nil {
				header += "\t" + strings.ToUpper(varName)
			}
			fmt.Fprintln(w, header)
			for i, c := range cells {
				fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%g", c.ID, c.Distance, c.Coord.X, c.Coord.Y, c.Coord.Z)
				if arr != nil {
					v, err := arr.Record(i)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "\t%s", formatValues(v))
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&varName, "var", "", "variable to sample along the line")
	cmd.Flags().String("mesh", vlsv.DefaultSpatialMesh, "name of the spatial mesh")
	return cmd
}

func newVDFCommand() *cobra.Command {
	var (
		pop     string
		nearest bool
	)
	cmd := &cobra.Command{
		Use:   "vdf FILE CELLID",
		Short: "print the velocity distribution of a spatial cell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("cell id: %w", err)
			}
			md, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer md.Close()

			if nearest {
				nid, err := md.NearestCellWithDistribution(id, pop)
				if err != nil {
					return err
				}
				if nid != id {
					log.WithField("cell_id", id).WithField("nearest", nid).Info("using nearest cell with a distribution")
				}
				id = nid
			}
			vdf, err := md.ReadVelocityCells(id, pop)
			if err != nil {
				return err
			}
			coords, err := md.VelocityCellCoordinates(pop, vdf.VCellIDs)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VCELL\tVX\tVY\tVZ\tVALUE")
			for i, v := range vdf.VCellIDs {
				c := coords[i]
				fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%g\n", v, c.X, c.Y, c.Z, vdf.Values[i])
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pop, "pop", "proton", "population")
	cmd.Flags().BoolVar(&nearest, "nearest", false, "fall back to the nearest cell with a distribution")
	cmd.Flags().String("mesh", vlsv.DefaultSpatialMesh, "name of the spatial mesh")
	return cmd
}

func newCompareCommand() *cobra.Command {
	var (
		tol        float64
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "compare FILE1 FILE2",
		Short: "compare two snapshots within a relative tolerance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := compare.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = compare.LoadConfig(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("tol") {
				cfg.Tolerance = tol
			}
			r, err := compare.Files(args[0], args[1], compare.WithConfig(cfg), compare.WithLogger(log))
			if err != nil {
				return err
			}
			if _, err := r.WriteTo(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !r.Equal() {
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tol, "tol", compare.DefaultConfig().Tolerance, "relative tolerance")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML comparison settings")
	return cmd
}

func formatValues(v []float64) string {
	if len(v) == 1 {
		return strconv.FormatFloat(v[0], 'g', -1, 64)
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
