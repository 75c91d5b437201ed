// Command sipbag writes SIPs into BagIt bags and checks the bags written.
//
//	sipbag [-c config.toml] export [--patch-of id] [--all-previous] [--overwrite] [--dry-run] sip.json...
//	sipbag [-c config.toml] export [--patch-of id] [--all-previous] --dir <directory> [--id <sip id>]
//	sipbag [-c config.toml] verify <bag directory>...
//	sipbag [-c config.toml] layout <sip id>...
//
// Each SIP is described by a JSON document, see sip.ReadDescriptor. The
// file keys in a descriptor are looked up in the "source" location of the
// configuration, or are local paths if there is none. With --dir, the files
// below a local directory are archived as one SIP instead.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/sip"
)

var (
	configFile string
	config     *Config
	exportOpts exportOptions
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sipbag",
	Short:        "Archive SIPs as BagIt bags",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = ReadConfig(configFile)
		if err != nil {
			return err
		}
		if config.SentryDSN != "" {
			return raven.SetDSN(config.SentryDSN)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <sip.json>...",
	Short: "Write the bags of the given SIPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var ds []*sip.Descriptor
		var err error
		switch {
		case exportOpts.Dir != "" && len(args) > 0:
			return errors.New("give either --dir or descriptors")
		case exportOpts.Dir != "":
			ds, err = directoryDescriptor(exportOpts.Dir, exportOpts.ID)
		case len(args) == 0:
			return errors.New("no SIP descriptors given")
		default:
			ds, err = readDescriptors(args, opener(parselocation(config.Source)))
		}
		if err != nil {
			return err
		}
		a, err := config.Archiver()
		if err != nil {
			return err
		}
		defer a.Layouts.Close()
		return export(a, ds, exportOpts, config.Parallel, cmd.OutOrStdout())
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <bag directory>...",
	Short: "Check bags against their manifests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, dir := range args {
			if err := bagit.Verify(dir); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", dir, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", dir)
		}
		if failed > 0 {
			return errors.Errorf("%d of %d bags failed", failed, len(args))
		}
		return nil
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <sip id>...",
	Short: "Print the recorded layout of archived SIPs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := config.Archiver()
		if err != nil {
			return err
		}
		defer a.Layouts.Close()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, id := range args {
			l, err := a.Layout(id)
			if err != nil {
				return err
			}
			if l == nil {
				return errors.Errorf("sip %s has not been archived", id)
			}
			if err := enc.Encode(l); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file")

	f := exportCmd.Flags()
	f.StringVar(&exportOpts.PatchOf, "patch-of", "", "id of the SIP this one is a revision of")
	f.BoolVar(&exportOpts.AllPrevious, "all-previous", false, "reference files from every earlier revision")
	f.BoolVar(&exportOpts.Overwrite, "overwrite", false, "replace bags already written")
	f.BoolVar(&exportOpts.DryRun, "dry-run", false, "print the layouts without writing anything")
	f.StringVar(&exportOpts.Dir, "dir", "", "archive the files below this directory as one SIP")
	f.StringVar(&exportOpts.ID, "id", "", "id of the SIP made with --dir (default a new UUID)")

	rootCmd.AddCommand(exportCmd, verifyCmd, layoutCmd)
}
