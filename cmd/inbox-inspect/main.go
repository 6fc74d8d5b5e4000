// inbox-inspect opens a pebble data directory offline and prints record
// counts, a thread's items, or runs a dry-run retention sweep. Operator
// tooling; never run it against a live server's open database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"inboxd/internal/retention"
	"inboxd/pkg/logger"
	"inboxd/pkg/store"
)

func main() {
	dbPath := flag.String("db", "", "pebble DB path to open")
	threadID := flag.String("thread", "", "print items of this thread")
	sweep := flag.Bool("sweep", false, "dry-run the retention sweep")
	flag.Parse()
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.Init("warn", "text")
	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *threadID != "":
		items, err := st.ListThreadItems(*threadID, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, it := range items {
			_ = enc.Encode(it)
		}
	case *sweep:
		if err := retention.RunOnce(st, true, time.Now().UTC()); err != nil {
			fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
			os.Exit(1)
		}
	default:
		stats, err := st.CountStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "stats failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("threads: %d\nitems: %d\nconversations: %d\n", stats.Threads, stats.Items, stats.Conversations)
	}
}
