// Package banner prints the startup banner with the effective runtime
// configuration and a short endpoint cheat sheet.
package banner

import (
	"fmt"
)

const banner = `
██╗███╗   ██╗██████╗  ██████╗ ██╗  ██╗██████╗
██║████╗  ██║██╔══██╗██╔═══██╗╚██╗██╔╝██╔══██╗
██║██╔██╗ ██║██████╔╝██║   ██║ ╚███╔╝ ██║  ██║
██║██║╚██╗██║██╔══██╗██║   ██║ ██╔██╗ ██║  ██║
██║██║ ╚████║██████╔╝╚██████╔╝██╔╝ ██╗██████╔╝
╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═════╝
`

// Print writes the banner and runtime info to stdout.
func Print(addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/inbox                - Ingest a message/notification")
	fmt.Println("GET  /v1/inbox?threadId=      - List a thread's items")
	fmt.Println("POST /v1/chat/typing          - Send a typing signal")
	fmt.Println("POST /v1/chat/read            - Mark a conversation read")
	fmt.Println("GET  /v1/stream?address=      - Subscribe to live events (SSE)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/inbox' -d '{\"address\":\"addr-a\",\"content\":{\"key\":\"chat.message\",\"args\":{\"text\":\"hello\"}}}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/stream?address=addr-a'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure INBOXD_ENCRYPTION_SECRET to encrypt content at rest")
}
