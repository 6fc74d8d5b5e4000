package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

func genID(prefix string) string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("%s-%d-%d", prefix, n, s)
}

// GenItemID generates a unique inbox item ID from the current UTC
// nanosecond timestamp and an atomic sequence number.
func GenItemID() string { return genID("item") }

// GenThreadID generates a unique thread ID.
func GenThreadID() string { return genID("thread") }

// GenConversationID generates a unique conversation ID.
func GenConversationID() string { return genID("conv") }
