package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rv32aot/core/aot"
	"github.com/rv32aot/core/aotruntime"
	"github.com/rv32aot/core/config"
	"github.com/rv32aot/core/consistency"
	"github.com/rv32aot/core/interp"
	"github.com/rv32aot/core/isa"
	"github.com/rv32aot/core/segment"
	"github.com/rv32aot/core/state"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		mode        = flag.String("mode", "", "Execution mode: basic, metered, aot, consistency (default: config's execution.mode)")
		configPath  = flag.String("config", "", "Path to TOML config file (default: platform config dir)")
		entryFlag   = flag.String("entry", "", "Entry point address, hex or decimal (default: config's execution.default_entry)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")

		segmentCheckInsns = flag.Uint64("segment-check-insns", 0, "Segmentation controller consultation cadence (0: use config)")
		maxTraceHeight    = flag.Uint64("max-trace-height", 0, "Segmentation max trace height (0: use config)")
		maxCells          = flag.Uint64("max-cells", 0, "Segmentation max total cells (0: use config)")
		maxInteractions   = flag.Uint64("max-interactions", 0, "Segmentation max total interactions (0: use config)")
		keepTemp          = flag.Bool("keep-temp", false, "Keep the AOT build's temporary assembly/object/library directory")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("rv32aot %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp || flag.NArg() == 0 {
		printHelp()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	code, err := os.ReadFile(programPath) // #nosec G304 -- user-supplied program path, the CLI's entire purpose
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read guest program %s: %v\n", programPath, err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Execution.Mode = *mode
	}
	if *entryFlag != "" {
		cfg.Execution.DefaultEntry = *entryFlag
	}
	if *segmentCheckInsns != 0 {
		cfg.Segmentation.CheckCadence = *segmentCheckInsns
	}
	if *maxTraceHeight != 0 {
		cfg.Segmentation.MaxTraceHeight = *maxTraceHeight
	}
	if *maxCells != 0 {
		cfg.Segmentation.MaxCells = *maxCells
	}
	if *maxInteractions != 0 {
		cfg.Segmentation.MaxInteractions = *maxInteractions
	}
	if *keepTemp {
		cfg.Build.KeepArtifacts = true
	}

	entryPC, err := parseEntry(cfg.Execution.DefaultEntry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	prog, err := isa.DecodeProgram(code, entryPC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: decoding guest program: %v\n", err)
		os.Exit(1)
	}

	if *verboseMode {
		fmt.Printf("Loaded %d instructions at entry 0x%08x, mode=%s\n", prog.Len(), entryPC, cfg.Execution.Mode)
	}

	if err := run(cfg, prog, *verboseMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func parseEntry(s string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "0x%x", &v); err == nil {
		return v, nil
	}
	if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
		return v, nil
	}
	return 0, fmt.Errorf("invalid entry address %q", s)
}

func run(cfg *config.Config, prog *isa.Program, verbose bool) error {
	switch cfg.Execution.Mode {
	case "basic":
		s := state.New(prog.EntryPC, nil, cfg.Execution.Seed, cfg.Execution.NumPublicValues)
		if err := interp.RunBasic(prog, s, cfg.Execution.MaxInstructions); err != nil {
			return err
		}
		reportOutcome("basic", s, verbose)
		return nil

	case "metered":
		s := state.New(prog.EntryPC, nil, cfg.Execution.Seed, cfg.Execution.NumPublicValues)
		limits := segment.Limits{
			MaxTraceHeight:  cfg.Segmentation.MaxTraceHeight,
			MaxCells:        cfg.Segmentation.MaxCells,
			MaxInteractions: cfg.Segmentation.MaxInteractions,
		}
		ctrl, err := segment.NewController(limits, segment.AIRMetadata{}, cfg.Segmentation.CheckCadence)
		if err != nil {
			return fmt.Errorf("building segmentation controller: %w", err)
		}
		if err := interp.RunMetered(prog, s, ctrl, interp.ZeroTraceSampler{}, 0); err != nil {
			return err
		}
		reportOutcome("metered", s, verbose)
		if verbose {
			fmt.Printf("segments committed: %d\n", len(ctrl.Segments()))
		}
		return nil

	case "aot":
		builder := aotruntime.NewBuilder(cfg.Build.Assembler, cfg.Build.CCompiler, cfg.Build.ObjFormat, cfg.Build.KeepArtifacts)
		rt, err := aotruntime.CompileAndBuild(builder, aot.NewCompiler(aot.DefaultEmitters()...), prog, "")
		if err != nil {
			return fmt.Errorf("compiling AOT runtime: %w", err)
		}
		defer rt.Close()

		s := state.New(prog.EntryPC, nil, cfg.Execution.Seed, cfg.Execution.NumPublicValues)
		if err := rt.Execute(prog, s); err != nil {
			return err
		}
		reportOutcome("aot", s, verbose)
		if cfg.Build.KeepArtifacts {
			fmt.Printf("build artifacts kept at: %s\n", rt.Dir())
		}
		return nil

	case "consistency":
		outcomes, err := consistency.Run(prog, nil, cfg.Execution.Seed, cfg.Execution.NumPublicValues)
		if err != nil {
			return fmt.Errorf("running consistency gate: %w", err)
		}
		if verbose {
			for _, o := range outcomes {
				fmt.Printf("%-9s instret=%d pc=0x%08x\n", o.Mode, o.Instret, o.PC)
			}
		}
		if err := consistency.Compare(outcomes); err != nil {
			return err
		}
		fmt.Println("consistency: basic, metered, preflight, and aot agree")
		return nil

	default:
		return fmt.Errorf("unknown mode %q (want basic, metered, aot, or consistency)", cfg.Execution.Mode)
	}
}

func reportOutcome(mode string, s *state.State, verbose bool) {
	fmt.Printf("%s: instret=%d pc=0x%08x\n", mode, s.Instret, s.PC)
	if verbose && s.Output.Len() > 0 {
		fmt.Printf("output: %q\n", s.Output.String())
	}
}

func printHelp() {
	fmt.Printf(`rv32aot %s

Usage: rv32aot [options] <guest-program-file>

The guest program file is a flat little-endian binary of 32-bit RV32IM
instruction words; see isa.DecodeProgram.

Options:
  -help                  Show this help message
  -version               Show version information
  -mode MODE              Execution mode: basic, metered, aot, consistency
  -config FILE            Path to TOML config file (default: platform config dir)
  -entry ADDR              Entry point address, hex (0x8000) or decimal
  -verbose                 Enable verbose output

Segmentation overrides (metered mode; 0 means "use config"):
  -segment-check-insns N  Consultation cadence in retired instructions
  -max-trace-height N     Max trace height per AIR
  -max-cells N            Max total cells across AIRs
  -max-interactions N     Max total interactions across AIRs

AOT build options:
  -keep-temp              Keep the AOT build's temporary directory

Examples:
  rv32aot examples/fib.bin
  rv32aot -mode=aot -verbose examples/fib.bin
  rv32aot -mode=consistency examples/fib.bin
`, Version)
}
