package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/wifi-surveillance/internal/sampler"
	"github.com/roman-kulish/wifi-surveillance/internal/storage"
	"github.com/roman-kulish/wifi-surveillance/internal/wifi/iw"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStore(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(fmt.Sprintf("failed to close storage: %s", err.Error()))
		}
	}()

	scanner, err := iw.New(&iw.Config{Iface: config.Iface, ForceScan: true})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	// Not enforced: a timeout exceeding the interval only delays the
	// cadence when scans overrun
	if config.Timeout > config.Interval {
		logger.Warn("scan timeout exceeds the interval, overrunning scans will delay the cadence",
			slog.Float64("interval", config.Interval),
			slog.Float64("timeout", config.Timeout))
	}

	s := sampler.New(scanner, store, config.Iface, config.ScanInterval(), config.ScanTimeout(),
		sampler.WithLogger(logger),
		sampler.WithTargets(config.Targets),
		sampler.WithTags(config.NodeID, config.Location),
		sampler.WithFullScanInterval(config.FullScanInterval()),
		sampler.WithFlushEvery(config.FlushEvery),
	)

	return s.Run(ctx)
}

func createStore(config *Config, logger *slog.Logger) (storage.Store, error) {
	switch config.Store {
	case StoreSqlite:
		return storage.NewSqliteStore(config.Out, storage.SessionInfo{
			Iface:    config.Iface,
			Node:     config.NodeID,
			Location: config.Location,
			Config:   config,
		}), nil

	case StoreCSV:
		store, err := storage.NewCSVStore(config.Out)
		if err != nil {
			return nil, err
		}

		if size, err := store.Size(); err == nil && size > 0 {
			logger.Info("appending to existing log",
				slog.String("path", config.Out),
				slog.String("size", humanize.Bytes(uint64(size))))
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Store)
	}
}
