package check

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsh-team/nodeworker/internal/config"
	"github.com/jsh-team/nodeworker/internal/nodeworker"
	"github.com/jsh-team/nodeworker/internal/storage"
)

// Finding is one output file that still carries placeholder tokens.
type Finding struct {
	File    string
	Handles []nodeworker.Handle
}

// Scan reads every script below dir and reports the ones holding tokens.
func Scan(dir string) ([]Finding, int, error) {
	scripts, err := storage.ReadScripts(dir)
	if err != nil {
		return nil, 0, err
	}

	var findings []Finding
	for _, f := range scripts {
		matches := nodeworker.Scan(string(f.Content))
		if len(matches) == 0 {
			continue
		}
		finding := Finding{File: f.Name}
		for _, m := range matches {
			finding.Handles = append(finding.Handles, m.Handle)
		}
		findings = append(findings, finding)
	}
	return findings, len(scripts), nil
}

func runCheck(dir string) error {
	findings, scanned, err := Scan(dir)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Printf("%d script(s) checked, no unresolved worker placeholders\n", scanned)
		return nil
	}

	fmt.Printf("%-50s %-8s %s\n", "FILE", "TOKENS", "HANDLES")
	fmt.Println(strings.Repeat("-", 80))
	for _, f := range findings {
		handles := make([]string, 0, len(f.Handles))
		for _, h := range f.Handles {
			handles = append(handles, string(h))
		}
		fmt.Printf("%-50s %-8d %s\n", f.File, len(f.Handles), strings.Join(handles, ","))
	}
	return fmt.Errorf("%d of %d script(s) still contain worker placeholders", len(findings), scanned)
}

// CheckCmd scans an output directory for placeholder tokens left behind
var CheckCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Report output files that still contain worker placeholders",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else {
			cfg, err := config.Load(config.New(), config.ConfigPath)
			if err != nil {
				return err
			}
			dir = cfg.Outdir
		}
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("cannot check %s: %w", dir, err)
		}
		return runCheck(dir)
	},
}
