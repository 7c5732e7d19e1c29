package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/wifi-surveillance/internal/storage"
)

// Run lists the sessions of a SQLite log or exports one session to the
// canonical CSV schema. Format conversion only, no analysis.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	reader, err := storage.NewReader(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if cErr := reader.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if config.List {
		return listSessions(ctx, reader)
	}

	return exportSession(ctx, reader, config, logger)
}

func listSessions(ctx context.Context, reader *storage.Reader) error {
	sessions, err := reader.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tIFACE\tNODE\tLOCATION")
	for _, s := range sessions {
		var node, location string
		if s.Node != nil {
			node = *s.Node
		}
		if s.Location != nil {
			location = *s.Location
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.StartTime.UTC().Format(storage.TimestampLayout), s.Iface, node, location)
	}
	return w.Flush()
}

func exportSession(ctx context.Context, reader *storage.Reader, config *Config, logger *slog.Logger) (err error) {
	sess, err := reader.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %d: %w", config.SessionID, err)
	}

	var options []func(*storage.ReadingIterator)
	if config.From != nil {
		options = append(options, storage.WithStartTime(*config.From))
	}
	if config.To != nil {
		options = append(options, storage.WithEndTime(*config.To))
	}

	iter, err := reader.Readings(ctx, config.SessionID, options...)
	if err != nil {
		return fmt.Errorf("failed to read session %d: %w", config.SessionID, err)
	}
	defer func() {
		if cErr := iter.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	f, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write(storage.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var rows int64
	for iter.Next() {
		if err = w.Write(iter.Current().Row()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		rows++
	}
	if err = iter.Err(); err != nil {
		return fmt.Errorf("failed reading session %d: %w", config.SessionID, err)
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	var size uint64
	if stat, sErr := f.Stat(); sErr == nil {
		size = uint64(stat.Size())
	}

	logger.Info("session exported",
		slog.Int64("session", sess.ID),
		slog.String("iface", sess.Iface),
		slog.String("started", sess.StartTime.UTC().Format(storage.TimestampLayout)),
		slog.String("rows", humanize.Comma(rows)),
		slog.String("size", humanize.Bytes(size)),
		slog.String("path", config.OutputFile))
	return nil
}
