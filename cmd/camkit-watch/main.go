// camkit-watch subscribes to a running camkitd preview stream and reports
// frame throughput. Useful for checking a daemon without opening a browser.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8090", "camkitd address")
	saveDir := flag.String("save", "", "Directory to save received frames (optional)")
	duration := flag.Duration("for", 0, "Stop after this long (0 = until Ctrl+C)")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/ws/preview", *addr)
	fmt.Println("📹 camkit preview watcher")
	fmt.Printf("Connecting to %s...\n", url)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		fmt.Println("\nIs camkitd running? Start it with: camkitd -addr", *addr)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("✅ Connected!")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	frames := 0
	bytes := 0
	start := time.Now()

	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			frames++
			bytes += len(data)
			if frames%30 == 0 {
				elapsed := time.Since(start).Seconds()
				fmt.Printf("\r  %d frames, %.1f fps, %.1f KB/frame   ",
					frames, float64(frames)/elapsed, float64(bytes)/float64(frames)/1024)
			}
			if *saveDir != "" {
				name := filepath.Join(*saveDir, fmt.Sprintf("frame_%06d.jpg", frames))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					fmt.Printf("\n❌ Save failed: %v\n", err)
					return
				}
			}
		}
	}()

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-sigChan:
	case <-timeout:
	case <-done:
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	elapsed := time.Since(start).Seconds()
	fmt.Printf("\n\n📊 %d frames in %.1fs (%.1f fps)\n", frames, elapsed, float64(frames)/elapsed)
}
