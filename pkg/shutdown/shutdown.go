// Package shutdown handles controlled aborts: on a fatal startup or
// runtime failure it writes a crash dump under the data directory so the
// failure survives the process, then exits.
package shutdown

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"inboxd/pkg/logger"
)

// Abort logs the fatal error, writes a crash dump and exits. The delay
// gives log sinks time to flush.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 3
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, derr := writeCrashDump(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	if delay > 0 {
		time.Sleep(time.Duration(delay) * time.Second)
	}
	os.Exit(2)
}

// writeCrashDump persists the failure reason plus all goroutine stacks
// under <dbPath>/state/crash (or ./crash without a db path).
func writeCrashDump(dbPath, reason string, cause error) (string, error) {
	crashDir := "./crash"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
	}
	if err := os.MkdirAll(crashDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create crash dir: %w", err)
	}

	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	f, err := os.OpenFile(dumpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create crash file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "time: %s\nreason: %s\n", time.Now().UTC().Format(time.RFC3339Nano), reason)
	if cause != nil {
		fmt.Fprintf(f, "error: %v\n", cause)
	}
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(f, "\ngoroutines:\n%s\n", buf[:n])
	return dumpPath, nil
}
