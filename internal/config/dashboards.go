package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// reloadDebounce collapses the bursts of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

type dashboardsFile struct {
	Dashboards []models.DashboardConfig `yaml:"dashboards"`
}

// LoadDashboards reads the dashboard definitions file.
func LoadDashboards(path string) ([]models.DashboardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboards %s: %w", path, err)
	}
	return ParseDashboards(data)
}

// ParseDashboards decodes and validates definitions. Grid defaults are
// applied; widget rects are left for the layout engine to place.
func ParseDashboards(data []byte) ([]models.DashboardConfig, error) {
	var f dashboardsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.NewConfigurationError("dashboards", err.Error())
	}

	seen := make(map[string]struct{}, len(f.Dashboards))
	for i := range f.Dashboards {
		d := &f.Dashboards[i]
		if d.ID == "" {
			return nil, errs.NewConfigurationError("dashboards", fmt.Sprintf("dashboard %d has no id", i))
		}
		if _, dup := seen[d.ID]; dup {
			return nil, errs.NewConfigurationError("dashboards", fmt.Sprintf("duplicate dashboard id %q", d.ID))
		}
		seen[d.ID] = struct{}{}
		d.ApplyDefaults()

		widgets := make(map[string]struct{}, len(d.Widgets))
		for j, w := range d.Widgets {
			if w.Type == "" {
				return nil, errs.NewConfigurationError("widgets", fmt.Sprintf("dashboard %q widget %d has no type", d.ID, j))
			}
			if w.ID == "" {
				continue
			}
			if _, dup := widgets[w.ID]; dup {
				return nil, errs.NewConfigurationError("widgets", fmt.Sprintf("dashboard %q has duplicate widget id %q", d.ID, w.ID))
			}
			widgets[w.ID] = struct{}{}
		}
	}
	return f.Dashboards, nil
}

// EncodeDashboards is the inverse of ParseDashboards.
func EncodeDashboards(dashboards []models.DashboardConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(dashboardsFile{Dashboards: dashboards}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Watch calls onChange with the re-parsed definitions whenever the file is
// written, until ctx is done. A file that fails to parse is logged and the
// previous definitions stay in force.
func Watch(ctx context.Context, path string, log *slog.Logger, onChange func([]models.DashboardConfig)) error {
	log = logger.OrDiscard(log)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watching the directory survives editors that replace the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				dashboards, err := LoadDashboards(path)
				if err != nil {
					log.Error("dashboard reload failed", "path", path, "error", err)
					return
				}
				log.Info("dashboards reloaded", "path", path, "count", len(dashboards))
				onChange(dashboards)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}
