package export

import (
	"fmt"
	"strings"

	"github.com/TheMichaelB/synoexport/internal/models"
)

// RenderSummary formats the end-of-run counters for terminal output.
func RenderSummary(stats *models.ExportStats) string {
	var b strings.Builder

	b.WriteString("===== Download Results Summary =====\n")
	fmt.Fprintf(&b, "Office files found:    %d\n", stats.Found)
	fmt.Fprintf(&b, "Downloaded:            %d\n", stats.Downloaded)
	fmt.Fprintf(&b, "Skipped (unchanged):   %d\n", stats.SkippedUnchanged)
	fmt.Fprintf(&b, "Skipped (encrypted):   %d\n", stats.SkippedEncrypted)
	if stats.SkippedOther > 0 {
		fmt.Fprintf(&b, "Skipped (non-office):  %d\n", stats.SkippedOther)
	}
	fmt.Fprintf(&b, "Deleted locally:       %d\n", stats.Deleted)
	fmt.Fprintf(&b, "Failed:                %d\n", stats.Failed)
	b.WriteString("====================================")

	return b.String()
}
