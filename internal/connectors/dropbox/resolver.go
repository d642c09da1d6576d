package dropbox

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// ResolvePath returns the Dropbox path to restore. Dropbox restores by
// path, so the archived item's original path is preferred, falling back
// to the path recorded in its metadata.
func ResolvePath(cmd domain.RestoreCommand) (string, error) {
	for _, p := range []string{cmd.OriginalPath, cmd.Meta("path_lower"), cmd.Meta("path")} {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: no dropbox path for item %q", domain.ErrInvalidInput, cmd.ExternalID)
}
