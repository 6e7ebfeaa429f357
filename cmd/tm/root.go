// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/LexLattice/true-modules/internal/config"
	"github.com/LexLattice/true-modules/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string
	// explain renders a remediation page alongside the error line.
	explain bool

	// cfg is the loaded configuration, available to all subcommands.
	cfg = config.DefaultConfig()

	// logger writes to stderr so stdout stays reserved for command output.
	logger = log.New(os.Stderr)

	// rootCmd is the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "tm",
		Short: "Compose module variants into a working workspace",
		Long: TitleStyle.Render("tm") + SubtitleStyle.Render(" - true modules composer") + `

tm takes a compose plan naming module variants, resolves exactly one
provider per capability port, validates every declared requirement, and
materializes an output workspace. Copies are content-addressed, so
re-running an unchanged plan is a no-op.

` + SubtitleStyle.Render("Examples:") + `
  tm compose --compose plan.json --modules-root ./catalog --out ./build
  tm validate --compose plan.json --modules-root ./catalog
  tm ports --compose plan.json --modules-root ./catalog
  tm cache status --out ./build
  tm config init`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/tm/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&explain, "explain", false, "show remediation guidance for failures")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// composerIdentity is recorded in report.json's context.
func composerIdentity() string {
	return fmt.Sprintf("tm@%s", Version)
}

// Execute runs the CLI. Called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(printErrorLine),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// printErrorLine emits the process error contract: one line on stderr,
// prefixed by the failing code. Callers match on the code verbatim, so no
// styling is applied to the line itself. With --explain, the matching
// remediation page follows.
func printErrorLine(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintf(w, "tm error: %s %s\n", issue.CodeOf(err), err.Error())

	if !explain {
		return
	}
	entry := issue.Get(issue.CodeOf(err))
	if entry == nil {
		return
	}
	page, renderErr := entry.Render("dark")
	if renderErr != nil {
		logger.Warn("failed to render remediation page", "code", issue.CodeOf(err), "error", renderErr)
		return
	}
	fmt.Fprint(w, page)
}

// formatErrorForDisplay prefers the actionable form with suggestions when the
// error carries one.
func formatErrorForDisplay(err error, verbose bool) string {
	var actionable *issue.ActionableError
	if errors.As(err, &actionable) {
		return actionable.Format(verbose)
	}
	return err.Error()
}

// initRootConfig loads the config file and applies UI settings.
func initRootConfig() {
	opts := config.LoadOptions{}
	if cfgFile != "" {
		opts.ConfigFilePath = cfgFile
	}

	loaded, err := config.NewProvider().Load(context.Background(), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	} else {
		cfg = loaded
	}

	if !verbose && cfg.UI.Verbose {
		verbose = true
	}
	if !explain && cfg.UI.Explain {
		explain = true
	}
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}
