package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/class-verify/internal/registry"
	"github.com/class-verify/internal/scenario"
	"github.com/class-verify/internal/sharedcache"
	"github.com/class-verify/internal/verifier"
	"github.com/class-verify/pkg/filter"
	"github.com/class-verify/pkg/writer"
)

var (
	// Verify command flags
	scenarioFile string
	reportFile   string
	workers      int
	prettyOutput bool
	noCache      bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay a class-loading scenario through the verification engine",
	Long: `Replay a scenario file and report the outcome of every event.

A scenario declares class loaders and an ordered stream of events:

  verify : run one class's verification pass with its recorded snippets
  load   : define a class in a loader and validate its deferred constraints

Consecutive verify events run concurrently when --workers is greater than
one. The report lists each verification pass (status, snippet count, cache
usage, pending deferred checks) and each load (whether its deferred
constraints held).`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	binName := BinName()
	verifyCmd.Example = `  # Replay a scenario and print the report
  ` + binName + ` verify -i ./scenario.json

  # Write a pretty-printed report to a file
  ` + binName + ` verify -i ./scenario.json -o ./report.json --pretty

  # Run verification passes on four workers, without the shared cache
  ` + binName + ` verify -i ./scenario.json -w 4 --no-cache`

	verifyCmd.Flags().StringVarP(&scenarioFile, "input", "i", "", "Input scenario file (required)")
	verifyCmd.Flags().StringVarP(&reportFile, "output", "o", "", "Report output file (defaults to stdout)")
	verifyCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Concurrent verification passes")
	verifyCmd.Flags().BoolVar(&prettyOutput, "pretty", false, "Pretty-print the JSON report")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the shared snippet cache")
	verifyCmd.MarkFlagRequired("input")
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	conf := GetConfig()

	s, err := scenario.Load(scenarioFile)
	if err != nil {
		return err
	}

	var cache sharedcache.Cache
	if conf.Cache.Enabled && !noCache {
		cache, err = sharedcache.NewCache(&conf.Cache, conf.Telemetry.Enabled)
		if err != nil {
			return fmt.Errorf("failed to initialize shared cache: %w", err)
		}
		defer cache.Close()
		log.Info("shared cache enabled (type: %s)", conf.Cache.Type)
	}

	classFilter := filter.NewClassFilter()
	classFilter.AddPatterns(conf.Cache.ExcludePatterns)

	reg := registry.NewRegistry(log)
	engine := verifier.NewEngine(reg, cache, classFilter, verifier.Config{
		MaxSnippets:    conf.Verifier.MaxSnippets,
		MaxBufferBytes: conf.Verifier.MaxBufferBytes,
		MaxRecords:     conf.Verifier.MaxRecords,
		MaxParentNodes: conf.Verifier.MaxParentNodes,
	}, log)

	runner := scenario.NewRunner(engine, reg, log)
	runner.Workers = workers

	log.Info("replaying scenario %s (%d events)", scenarioFile, len(s.Events))
	report := runner.Run(cmd.Context(), s)

	w := writer.NewJSONWriter[*scenario.Report]()
	if prettyOutput {
		w = writer.NewPrettyJSONWriter[*scenario.Report]()
	}
	if reportFile != "" {
		if err := w.WriteToFile(report, reportFile); err != nil {
			return err
		}
		log.Info("report written to %s", reportFile)
	} else {
		if err := w.Write(report, os.Stdout); err != nil {
			return err
		}
	}

	log.Info("scenario complete: %d verifications, %d loads, %d failures",
		len(report.Verifications), len(report.Loads), report.Failures)
	if report.Failures > 0 {
		return fmt.Errorf("%d scenario events failed verification", report.Failures)
	}
	return nil
}
