package main

import (
	"flag"
	"fmt"
	"os"
)

// main.go is the c67hook command-line front end: a small diagnostic tool
// over the hooking engine, in the same flag-driven style as a typical Go
// compiler front end (flat flag.String/flag.Bool declarations followed
// by flag.Parse and a dispatch on the first positional argument).
func main() {
	archFlag := flag.String("arch", "amd64", "target architecture (386, amd64, arm, arm64)")
	loadOffsetFlag := flag.String("load-offset", "0", "runtime load offset to rebase parsed addresses against (hex)")
	versionFlag := flag.Bool("V", false, "print version information and exit")
	versionLongFlag := flag.Bool("version", false, "print version information and exit")
	verboseFlag := flag.Bool("v", false, "verbose mode")
	verboseLongFlag := flag.Bool("verbose", false, "verbose mode")
	flag.Parse()

	if *versionFlag || *versionLongFlag {
		fmt.Println("c67hook 1.0.0")
		return
	}
	if *verboseFlag || *verboseLongFlag {
		VerboseMode = true
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "inspect":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: c67hook inspect <image-file>")
			os.Exit(1)
		}
		err = runInspect(args[1], *loadOffsetFlag)
	case "info":
		err = runInfo(*archFlag)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "c67hook: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: c67hook [flags] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  inspect <image-file>   parse .mldyn/.mlhook metadata from a PE or ELF image")
	fmt.Fprintln(os.Stderr, "  info                   print the resolved architecture's jump/trap sizes")
	flag.PrintDefaults()
}

// runInspect reads an image file from disk and runs it through the same
// ParseMetadata path LoadModule uses, printing the resulting dynamic
// table: a standalone way to exercise the metadata loader without
// attaching to a live process.
func runInspect(path, loadOffsetStr string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var loadOffset uint64
	if _, serr := fmt.Sscanf(loadOffsetStr, "0x%x", &loadOffset); serr != nil {
		fmt.Sscanf(loadOffsetStr, "%x", &loadOffset)
	}

	dyn, hooks, err := ParseMetadata(Address(loadOffset), image)
	if err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}

	fmt.Printf("%-18s %-32s %s\n", "address", "symbol", "record")
	for _, e := range dyn {
		fmt.Printf("%-18s %-32s %s\n", e.Address, e.Sym, e.Record)
	}
	fmt.Printf("\ndispatchers=%d hooks=%d locking=%d\n",
		len(hooks.Dispatchers), len(hooks.Hooks), len(hooks.LockingHooks))
	return nil
}

func runInfo(archStr string) error {
	arch, err := parseArchFlag(archStr)
	if err != nil {
		return err
	}
	codec, err := NewArchCodec(arch)
	if err != nil {
		return err
	}
	fmt.Printf("arch: %s\n", archStr)
	fmt.Printf("max instruction size: %d\n", codec.MaxInsnSize())
	fmt.Printf("max jump size: %d\n", codec.MaxJumpSize())
	fmt.Printf("trap sequence: % x\n", codec.GetTrapData())
	return nil
}

func parseArchFlag(s string) (Arch, error) {
	switch s {
	case "386":
		return ArchX86_32, nil
	case "amd64", "x86_64":
		return ArchX86_64, nil
	case "arm":
		return ArchARM32, nil
	case "arm64", "aarch64":
		return ArchAArch64, nil
	default:
		return 0, fmt.Errorf("unsupported -arch %q", s)
	}
}
