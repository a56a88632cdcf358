package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"recast/pkg/archive"
	"recast/pkg/codec"
	"recast/pkg/config"
	"recast/pkg/core"
	"recast/pkg/logger"
)

// Exit codes. Fatal I/O errors exit with core.FatalError's code, 2.
const (
	exitUsage       = 1
	exitEntryErrors = 3
)

// exitError carries a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func usageError(format string, args ...interface{}) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	var err error
	operation := os.Args[1]
	switch operation {
	case "translate":
		err = handleTranslate(os.Args[2:])
	case "convert":
		err = handleConvert(os.Args[2:])
	case "formats":
		err = handleFormats(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintln(os.Stderr, "Invalid operation:", operation)
		printUsage()
		os.Exit(exitUsage)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitUsage
}

// printUsage prints the command-line usage information
func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  recast translate [flags] input.tar.gz output.tar.gz")
	fmt.Fprintln(os.Stderr, "  recast convert [flags] [-i input] [-o output]")
	fmt.Fprintln(os.Stderr, "  recast formats [--config file]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Run 'recast <command> --help' for the flags of a command.")
}

// parseFlags registers the shared flags on a new set and parses args.
// It returns a nil set when help was printed.
func parseFlags(name, usage string, args []string, extra func(*pflag.FlagSet)) (*pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	config.RegisterFlags(fs)
	if extra != nil {
		extra(fs)
	}
	fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printFlags(fs, usage)
			return nil, nil
		}
		return nil, usageError("%s: %w", name, err)
	}
	if help, _ := fs.GetBool("help"); help {
		printFlags(fs, usage)
		return nil, nil
	}
	return fs, nil
}

func printFlags(fs *pflag.FlagSet, usage string) {
	fmt.Fprintf(os.Stderr, "Usage:\n  %s\n\nFlags:\n%s", usage, fs.FlagUsages())
}

// setup loads the configuration and the logger for a command.
func setup(fs *pflag.FlagSet) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return nil, nil, &exitError{code: exitUsage, err: err}
	}
	return cfg, logger.New(&cfg.Log, nil), nil
}

// handleTranslate handles the archive translation operation
func handleTranslate(args []string) error {
	const usage = "recast translate [flags] input.tar.gz output.tar.gz"
	fs, err := parseFlags("translate", usage, args, nil)
	if err != nil || fs == nil {
		return err
	}
	if fs.NArg() != 2 {
		printFlags(fs, usage)
		return usageError("translate: expected input and output archives, got %d arguments", fs.NArg())
	}

	cfg, log, err := setup(fs)
	if err != nil {
		return err
	}
	tr, err := cfg.Translator()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	opts, err := cfg.Options()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := core.New(core.FromTranslator(tr), opts, log).Translate(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	printSummary(summary)

	if cfg.Strict && summary.Errors > 0 {
		return &exitError{
			code: exitEntryErrors,
			err:  fmt.Errorf("%s entries failed to translate", humanize.Comma(int64(summary.Errors))),
		}
	}
	return nil
}

func printSummary(s core.Summary) {
	fmt.Fprintf(os.Stderr, "Translated %s entries: %s written, %s errors, %s skipped, %s in %s (%s)\n",
		humanize.Comma(int64(s.Submitted)),
		humanize.Comma(int64(s.Written)),
		humanize.Comma(int64(s.Errors)),
		humanize.Comma(int64(s.Skipped)),
		humanize.IBytes(s.BytesIn),
		s.Duration.Round(time.Millisecond),
		humanize.IBytes(s.ArchiveBytes))
	for _, f := range s.Failures {
		fmt.Fprintf(os.Stderr, "  %s (%s): %v\n", f.Name, f.Stage, f.Err)
	}
}

// handleConvert handles the single-record conversion operation
func handleConvert(args []string) error {
	const usage = "recast convert [flags] [-i input] [-o output]"
	var input, output string
	fs, err := parseFlags("convert", usage, args, func(fs *pflag.FlagSet) {
		fs.StringVarP(&input, "input", "i", "", "record to read (default: stdin)")
		fs.StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	})
	if err != nil || fs == nil {
		return err
	}
	if fs.NArg() != 0 {
		return usageError("convert: unexpected argument %q", fs.Arg(0))
	}

	cfg, log, err := setup(fs)
	if err != nil {
		return err
	}
	tr, err := cfg.Translator()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	data, err := readInput(input)
	if err != nil {
		return &core.FatalError{Op: "read input", Err: err}
	}
	out, err := tr.Convert(data)
	if err != nil {
		log.WithError(err).Error("problem converting record", map[string]interface{}{
			logger.FieldEntry: displayName(input),
		})
		return &exitError{code: exitEntryErrors, err: err}
	}
	if err := writeOutput(output, out); err != nil {
		return &core.FatalError{Op: "write output", Err: err}
	}
	log.Debug("record converted", map[string]interface{}{
		logger.FieldEntry: displayName(input),
		"from":            tr.From().String(),
		"to":              tr.To().String(),
		"size":            humanize.IBytes(uint64(len(out))),
	})
	return nil
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// handleFormats lists record formats, schemas and compressions
func handleFormats(args []string) error {
	fs, err := parseFlags("formats", "recast formats [--config file]", args, nil)
	if err != nil || fs == nil {
		return err
	}
	cfg, _, err := setup(fs)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	fmt.Println("Record formats:")
	for _, f := range codec.Formats {
		fmt.Printf("  %-6s %s\n", f, f.Extension())
	}
	fmt.Println("Schemas:")
	for _, name := range reg.Names() {
		s, _ := reg.Lookup(name)
		var rules []string
		if s.Root != "" {
			rules = append(rules, "root="+s.Root)
		}
		if s.Namespace != "" {
			rules = append(rules, "namespace="+s.Namespace)
		}
		if len(s.Required) > 0 {
			rules = append(rules, "required="+strings.Join(s.Required, ","))
		}
		fmt.Printf("  %-12s %s\n", name, strings.Join(rules, " "))
	}
	fmt.Println("Compressions:")
	for _, c := range []archive.Compression{archive.CompressionGzip, archive.CompressionZstd, archive.CompressionLZ4, archive.CompressionNone} {
		fmt.Printf("  %s\n", c)
	}
	return nil
}
