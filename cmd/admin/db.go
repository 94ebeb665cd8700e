package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"terrascape.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	order := fs.String("order", indexdb.OrderSlowest, "chunks order: slowest|recent|skipped|position")
	limit := fs.Int("limit", 20, "result limit")
	name := fs.String("name", "tuning", "config name (config query)")
	_ = fs.Parse(args)

	q := "chunks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "chunks.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch q {
	case "chunks":
		rows, err := r.Chunks(ctx, *order, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, row := range rows {
			printJSON(row)
		}

	case "chunk":
		// admin db chunk <cx> <cy>
		if fs.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "usage: admin db chunk <cx> <cy>")
			os.Exit(2)
		}
		cx, err1 := strconv.Atoi(fs.Arg(1))
		cy, err2 := strconv.Atoi(fs.Arg(2))
		if err1 != nil || err2 != nil {
			fmt.Fprintln(os.Stderr, "bad chunk coordinates")
			os.Exit(2)
		}
		row, ok, err := r.Chunk(ctx, cx, cy)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "chunk (%d,%d) not indexed\n", cx, cy)
			os.Exit(1)
		}
		printJSON(row)

	case "counts":
		counts, err := r.EventCounts(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(counts)

	case "config":
		digest, raw, err := r.Config(ctx, *name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		fmt.Printf("# %s sha256=%s\n%s\n", *name, digest, raw)

	default:
		fmt.Fprintln(os.Stderr, "unknown db query:", q)
		os.Exit(2)
	}
}
