package repo

import (
	"strings"
	"testing"
)

func TestJobColumnsGuardNullableText(t *testing.T) {
	// error_message (and progress_message, under a permissive schema) are
	// nullable; scanJob reads them into plain strings, so the select list must
	// coalesce them or every read of a healthy row fails.
	for _, col := range []string{"coalesce(error_message, '')", "coalesce(progress_message, '')"} {
		if !strings.Contains(jobColumns, col) {
			t.Fatalf("job column list missing %s:\n%s", col, jobColumns)
		}
	}
}
