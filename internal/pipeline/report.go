package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// reportFilename is the Finalize summary written alongside projected
// node files.
const reportFilename = "processing_report.md"

// writeReport renders a short Markdown summary of one run's cycle counts
// and writes it to outputDir/processing_report.md.
func writeReport(outputDir string, s stats, cfg Config) error {
	if outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create output dir %q: %w", outputDir, err)
	}

	content := fmt.Sprintf(`# Processing report

- Cycles processed: %d
- Nodes created: %d
- Nodes appended: %d
- Context limit: %d

`, s.cycles, s.nodesCreated, s.nodesAppended, cfg.ContextLimit)

	path := filepath.Join(outputDir, reportFilename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("pipeline: write processing report: %w", err)
	}
	return nil
}
