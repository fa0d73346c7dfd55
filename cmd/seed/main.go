package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/infra"
	"github.com/xela07ax/soc-dashboard/internal/source"
)

// seed раскладывает встроенные примеры по путям, которые потом можно
// указать в sources.* как файловые источники.
func main() {
	targets := map[source.Resource]*string{
		source.ResourceDecisions: pflag.String("ia", "audit/ia_decisions.json", "output path for IA decisions"),
		source.ResourceResponses: pflag.String("responses", "audit/response_actions.json", "output path for response actions"),
		source.ResourceHistory:   pflag.String("history", "audit/scan_history.json", "output path for scan history"),
	}
	force := pflag.BoolP("force", "f", false, "overwrite existing files")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	logger, err := infra.NewLogger(infra.LoggerConfig{Level: *level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	failed := 0
	for _, res := range source.Resources {
		path := *targets[res]
		written, err := seed(res, path, *force)
		switch {
		case err != nil:
			failed++
			logger.Error("seed failed", zap.String("resource", string(res)), zap.String("path", path), zap.Error(err))
		case written:
			logger.Info("sample written", zap.String("resource", string(res)), zap.String("path", path))
		default:
			logger.Info("file exists, skipped (use --force)", zap.String("path", path))
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func seed(res source.Resource, path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}

	data, err := source.Sample(res)
	if err != nil {
		return false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
