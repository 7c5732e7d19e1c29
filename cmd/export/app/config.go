package app

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

type Config struct {
	DBPath     string
	SessionID  int64
	OutputFile string
	List       bool
	From       *time.Time
	To         *time.Time
	Verbose    bool
}

func NewConfigFromCLI() (*Config, error) {
	c := &Config{}

	var from, to string
	flag.StringVar(&c.DBPath, "db", "", "Path to the SQLite log database")
	flag.Int64Var(&c.SessionID, "s", 0, "Session ID to export")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output CSV file")
	flag.BoolVar(&c.List, "list", false, "List sessions instead of exporting")
	flag.StringVar(&from, "from", "", "Only export readings at or after this RFC3339 timestamp")
	flag.StringVar(&to, "to", "", "Only export readings at or before this RFC3339 timestamp")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if !c.List && c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if !c.List && c.OutputFile == "" {
		err = errors.New("output file is required")
	}

	if err == nil && from != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, from); err != nil {
			err = fmt.Errorf("invalid -from timestamp: %w", err)
		} else {
			c.From = &t
		}
	}
	if err == nil && to != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, to); err != nil {
			err = fmt.Errorf("invalid -to timestamp: %w", err)
		} else {
			c.To = &t
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	return c, nil
}
