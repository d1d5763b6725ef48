// objtool inspects and converts OBJ meshes.
//
//	objtool stats    [-fan] [-noswap] file.obj
//	objtool rescale  [-scale 0.001] in.obj out.obj
//	objtool glb      [-fan] [-noswap] in.obj out.glb
//	objtool simplify [-factor 0.5] [-fan] in.obj out.obj
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"cadverse/internal/mesh"
	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/types"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: objtool <stats|rescale|glb|simplify> [flags] args...")
	os.Exit(2)
}

func main() {
	if err := logger.Init(types.LogConf{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "stats":
		err = runStats(args)
	case "rescale":
		err = runRescale(args)
	case "glb":
		err = runGLB(args)
	case "simplify":
		err = runSimplify(args)
	default:
		usage()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("objtool failed")
	}
}

func parseFlags(fs *flag.FlagSet) (fan, noswap *bool) {
	fan = fs.Bool("fan", false, "triangulate n-gons as a fan")
	noswap = fs.Bool("noswap", false, "keep source Y/Z axes")
	return
}

func load(path string, fan, noswap bool) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := types.MeshConf{SwapYZ: !noswap, FaceMode: "first"}
	if fan {
		conf.FaceMode = "fan"
	}
	opts, err := mesh.OptionsFromConf(conf)
	if err != nil {
		return nil, err
	}
	return mesh.ReadOBJ(f, opts...)
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fan, noswap := parseFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	m, err := load(fs.Arg(0), *fan, *noswap)
	if err != nil {
		return err
	}
	fmt.Printf("vertices:  %d\n", len(m.Vertices))
	fmt.Printf("triangles: %d\n", len(m.Triangles))
	fmt.Printf("bounds:    min %v max %v\n", m.Bounds.Min, m.Bounds.Max)
	fmt.Printf("size:      %v\n", m.Bounds.Size())
	if err := m.Validate(); err != nil {
		fmt.Printf("invalid:   %v\n", err)
	}
	return nil
}

func runRescale(args []string) error {
	fs := flag.NewFlagSet("rescale", flag.ExitOnError)
	scale := fs.Float64("scale", mesh.MillimetersToMeters, "coordinate multiplier")
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	out := mesh.RescaleOBJ(string(data), *scale)
	if err := os.WriteFile(fs.Arg(1), []byte(out), 0644); err != nil {
		return err
	}
	logger.Info().Str("in", fs.Arg(0)).Str("out", fs.Arg(1)).Float64("scale", *scale).Msg("Rescaled")
	return nil
}

func runGLB(args []string) error {
	fs := flag.NewFlagSet("glb", flag.ExitOnError)
	fan, noswap := parseFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}

	m, err := load(fs.Arg(0), *fan, *noswap)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(fs.Arg(0), ".obj")
	return writeFile(fs.Arg(1), func(w io.Writer) error { return mesh.EncodeGLB(w, m, name) })
}

func runSimplify(args []string) error {
	fs := flag.NewFlagSet("simplify", flag.ExitOnError)
	factor := fs.Float64("factor", 0.5, "target fraction of triangles")
	fan := fs.Bool("fan", false, "triangulate n-gons as a fan")
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
	}

	// source axes are kept so the output is a drop-in replacement
	m, err := load(fs.Arg(0), *fan, true)
	if err != nil {
		return err
	}
	s := mesh.Simplify(m, *factor)
	logger.Info().Int("before", len(m.Triangles)).Int("after", len(s.Triangles)).Msg("Simplified")
	return writeFile(fs.Arg(1), func(w io.Writer) error { return mesh.WriteOBJ(w, s) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
