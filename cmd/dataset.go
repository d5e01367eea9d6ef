package cmd

import (
	"fmt"

	"github.com/KaramelBytes/predobs-cli/internal/canonical"
	"github.com/KaramelBytes/predobs-cli/internal/dataset"
	"go.uber.org/zap"
)

// loadCanonical merges canonical CSV files. Sources are keyed by base name,
// so two files sharing a name would silently merge; that is rejected.
func loadCanonical(paths []string) (*dataset.Table, error) {
	seen := map[string]string{}
	for _, p := range paths {
		name := canonical.SourceName(p)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s map to the same source %q; rename one", prev, p, name)
		}
		seen[name] = p
	}
	t, err := canonical.Load(logger, paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded canonical files", zap.Strings("paths", paths), zap.Int("rows", t.Len()))
	return t, nil
}
