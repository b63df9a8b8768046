// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
)

// usageError marks an argument-misuse failure: exit 2 with a printed
// usage line, distinct from a runtime crapError (exit 1).
type usageError struct{}

func (usageError) Error() string { return "usage error" }

var compressFlag int

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crap-clone <root> <module>",
		Short: "Reconstruct a CVS module's history as a git fast-import stream",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				fmt.Fprintln(os.Stderr, cmd.UsageString())
				return usageError{}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if compressFlag < 0 || compressFlag > 9 {
				fmt.Fprintln(os.Stderr, cmd.UsageString())
				return usageError{}
			}
			return run(args[0], args[1], compressFlag, cmd.Flags().Changed("compress"))
		},
	}
	cmd.Flags().IntVarP(&compressFlag, "compress", "z", 0, "transport compression level (0-9, 0 disables)")
	return cmd
}

// run resolves the effective compression level with the precedence
// SPEC_FULL.md's configuration layer promises: an explicitly-passed -z
// flag wins outright, otherwise the compression/env/config-file value
// loadConfig already resolved through viper applies.
func run(root, module string, compressFlag int, compressFlagSet bool) error {
	cfg := loadConfig()
	ctl := newControl(cfg.Verbose, terminal.IsTerminal(int(os.Stdout.Fd())))

	compressionLevel := cfg.Compression
	if compressFlagSet {
		compressionLevel = compressFlag
	}

	t, err := dial(ctl, root, compressionLevel, cfg.CVSRsh)
	if err != nil {
		return err
	}
	defer t.close()

	db := newDatabase().withControl(ctl)

	lp := newLogParser(db, t, ctl)
	if err := lp.run(module); err != nil {
		return err
	}

	b := newBuilder(db, cfg.CoalesceWindow, ctl)
	if err := b.build(); err != nil {
		return err
	}

	newAnalyzer(db, ctl).analyze()

	em := newEmitter(db, ctl, nil, nil, os.Stdout, cfg.TrunkLabel)
	fo := newFetchOptimizer(db, ctl, t, os.Stdout, module, em.nextMark)
	fp := newFixupPlanner(db, ctl)
	em.fetch = fo
	em.fixup = fp

	sch := newScheduler(db, em, ctl)
	if err := sch.run(); err != nil {
		return err
	}
	if err := em.finalizeFixups(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "progress done")
	summarize(os.Stderr, db, fo)
	return nil
}

// summarize writes the final exact-vs-fixup tag/branch counts and the
// transactions/versions totals (crap-clone.c's end-of-run report).
func summarize(w *os.File, db *database, fo *fetchOptimizer) {
	var exactTags, fixupTags, exactBranches, fixupBranches int
	for _, t := range db.tags {
		switch {
		case t.kind == csBranch && t.fixup:
			fixupBranches++
		case t.kind == csBranch:
			exactBranches++
		case t.fixup:
			fixupTags++
		default:
			exactTags++
		}
	}
	fmt.Fprintf(w, "%d exact branches, %d fix-up branches, %d exact tags, %d fix-up tags\n",
		exactBranches, fixupBranches, exactTags, fixupTags)
	fmt.Fprintf(w, "%d transactions, %d versions\n", fo.transactions, fo.versions)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
