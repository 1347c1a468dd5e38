package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/blang/semver"
	"github.com/joho/godotenv"
	selfupdate "github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/restyrun/resty/internal/discover"
	"github.com/restyrun/resty/internal/format"
	"github.com/restyrun/resty/internal/rerr"
	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/scaffold"
	"github.com/restyrun/resty/internal/suite"
	"github.com/restyrun/resty/internal/tuilive"
)

// selfUpdateSlug is the GitHub "owner/repo" slug go-github-selfupdate checks
// for newer releases. No pack source exercises this library directly; this
// is adopted from its own documented usage, not adapted from a file.
const selfUpdateSlug = "restyrun/resty"

var (
	// Version info, injected at build time via -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile      string
	paths        []string
	tests        []string
	filters      []string
	runAll       bool
	recursive    bool
	list         bool
	dryRun       bool
	outputFormat string
	saveFile     string
	timeoutSecs  float64
	mockGlobal   bool
	color        bool
	watch        bool
	copyOut      bool
	rateLimit    float64
	verbose      bool
)

func main() {
	suite.Version = version
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForError(err))
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resty [paths...]",
		Short: "resty - a scriptable REST API test runner",
		Long: `resty runs .resty/.rest test files against live APIs or mocked
responses, resolving variables across environment, included, file, and
captured layers, and reports results as text, markdown, JSON, JUnit XML,
or HTML.`,
		RunE: runTests,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .resty/config.yaml)")

	root.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate only; do not execute")
	root.Flags().BoolVarP(&list, "list", "l", false, "list discovered test file paths (files are not parsed)")
	root.Flags().BoolVarP(&runAll, "all", "a", false, "run every discovered test")
	root.Flags().BoolVar(&runAll, "run-all", false, "run every discovered test")
	root.Flags().BoolVarP(&recursive, "recursive", "r", true, "recurse into subdirectories")
	root.Flags().StringArrayVarP(&paths, "path", "p", nil, "add a path (repeatable)")
	root.Flags().StringArrayVarP(&tests, "test", "t", nil, "run specific test by exact name (repeatable)")
	root.Flags().StringArrayVarP(&filters, "filter", "f", nil, "run tests whose names contain the pattern (repeatable)")
	root.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text|markdown|json|xml|html")
	root.Flags().StringVarP(&saveFile, "save", "s", "", "save results to file")
	root.Flags().Int("parallel", 0, "reserved; no semantics required")
	root.Flags().Float64Var(&timeoutSecs, "timeout", 0, "per-request timeout in seconds")
	root.Flags().BoolVar(&mockGlobal, "mock", false, "enable mocking globally (mock-first, then network)")
	root.Flags().BoolVarP(&color, "color", "c", true, "accepted but has no effect; text output styling follows terminal detection")
	root.Flags().BoolVar(&verbose, "verbose", false, "accepted but has no effect; no report format prints variable snapshots")
	root.Flags().BoolVar(&watch, "watch", false, "keep a live dashboard open, re-running on file changes")
	root.Flags().BoolVar(&copyOut, "copy", false, "copy the rendered report to the clipboard")
	root.Flags().Float64Var(&rateLimit, "rate-limit", 0, "max outbound network requests per second (0 disables)")

	root.AddCommand(versionCmd(), listCmd(), initCmd(), importCmd(), generateCmd(), selfUpdateCmd())
	return root
}

func selfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "update resty in place to the latest GitHub release",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := semver.Parse(strings.TrimPrefix(version, "v"))
			if err != nil {
				return fmt.Errorf("running version %q is not valid semver; build with -ldflags to set it: %w", version, err)
			}
			latest, err := selfupdate.UpdateSelf(current, selfUpdateSlug)
			if err != nil {
				return fmt.Errorf("self-update failed: %w", err)
			}
			if latest.Version.LTE(current) {
				fmt.Println("resty is already up to date")
				return nil
			}
			fmt.Printf("updated resty to %s\n", latest.Version)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("resty %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "list discovered test file paths without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			list = true
			return runTests(cmd, args)
		},
	}
	return cmd
}

func initCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "interactively scaffold a starter test file and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = "."
			}
			_, err := scaffold.RunSetupWizard(dir)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to scaffold into")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "import", Short: "import test files from another format"}
	var outDir string
	postmanCmd := &cobra.Command{
		Use:   "postman <collection.json>",
		Short: "generate .resty files from a Postman collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := scaffold.ImportPostman(args[0], outDir)
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Println("wrote", p)
			}
			return nil
		},
	}
	postmanCmd.Flags().StringVar(&outDir, "out", ".", "directory to write generated files into")
	cmd.AddCommand(postmanCmd)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "generate", Short: "generate test scaffolds from an API description"}
	var outDir string
	openapiCmd := &cobra.Command{
		Use:   "openapi <spec.yaml>",
		Short: "generate a .resty file from an OpenAPI v3 document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := scaffold.GenerateOpenAPI(args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	openapiCmd.Flags().StringVar(&outDir, "out", ".", "directory to write the generated file into")
	cmd.AddCommand(openapiCmd)
	return cmd
}

func runTests(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}
	initViper()

	allPaths := append([]string{}, args...)
	allPaths = append(allPaths, paths...)
	if len(allPaths) == 0 {
		allPaths = []string{"."}
	}

	files, err := discover.Files(allPaths, recursive)
	if err != nil {
		return rerr.Wrap(rerr.KindIncludeFileNotFound, "failed to discover test files", err)
	}

	if list {
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}

	globalMock := mockGlobal || envFlagEnabled("RESTY_MOCK")

	opts := suite.Options{
		DefaultTimeout: 30 * time.Second,
		GlobalMock:     globalMock,
		RateLimitRPS:   rateLimit,
		Select:         tests,
		Filters:        filters,
		DryRun:         dryRun,
	}
	if timeoutSecs > 0 {
		opts.TimeoutOverride = time.Duration(timeoutSecs * float64(time.Second))
	}

	if watch {
		return tuilive.Run(files, func(ctx context.Context, path string) result.FileSuite {
			return suite.Run(ctx, path, opts)
		})
	}

	ctx := context.Background()
	summary := result.Summary{}
	for _, f := range files {
		summary.Files = append(summary.Files, suite.Run(ctx, f, opts))
	}

	formatter, err := format.ByName(outputFormat)
	if err != nil {
		return rerr.Wrap(rerr.KindInvalidTest, "invalid --output value", err)
	}

	out := os.Stdout
	if saveFile != "" {
		f, err := os.Create(saveFile)
		if err != nil {
			return fmt.Errorf("failed to create --save file: %w", err)
		}
		defer f.Close()
		if err := formatter.Format(f, summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved results to %s\n", saveFile)
	}
	if err := formatter.Format(out, summary); err != nil {
		return err
	}

	if copyOut {
		if err := copyReportToClipboard(formatter, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to copy report to clipboard: %v\n", err)
		}
	}

	totals := summary.Totals()
	if totals.Failed > 0 {
		return exitError{code: 1, msg: fmt.Sprintf("%d of %d tests failed", totals.Failed, totals.Total)}
	}
	return nil
}

// copyReportToClipboard re-renders the report to a buffer so --copy never
// interferes with what was written to stdout or --save.
func copyReportToClipboard(f format.Formatter, summary result.Summary) error {
	var buf strings.Builder
	if err := f.Format(&buf, summary); err != nil {
		return err
	}
	return clipboard.WriteAll(buf.String())
}

func envFlagEnabled(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".resty")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// exitError carries a specific process exit code through cobra's error
// path, which otherwise always exits 1.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

func exitCodeForError(err error) int {
	var ee exitError
	if e, ok := err.(exitError); ok {
		ee = e
		return ee.code
	}
	var rerrErr *rerr.Error
	if e, ok := err.(*rerr.Error); ok {
		rerrErr = e
		return rerr.ExitCode(rerrErr.Kind)
	}
	return 2
}
