package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"

	"msgboard/domain"
	"msgboard/ingress"
)

// Manual load client: pumps submissions straight at the relay's TCP
// port, one connection per message, and prints a summary. Success here
// means the payload reached the socket; the protocol carries no
// acknowledgment, so persisted counts live in the relay's telemetry.
func main() {
	addr := flag.String("addr", "localhost:5000", "relay server address")
	clients := flag.Int("clients", 10, "number of concurrent clients")
	perClient := flag.Int("messages", 100, "messages per client")
	timeout := flag.Duration("timeout", 5*time.Second, "dial and write timeout per message")
	flag.Parse()

	// Logs are disabled: per-message output would dominate the run.
	forwarder := ingress.NewForwarder(slog.New(slog.DiscardHandler), *addr, *timeout, *timeout)

	var successCount atomic.Uint64
	var failureCount atomic.Uint64

	ctx := context.Background()
	start := time.Now()
	var wg sync.WaitGroup

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			for j := 0; j < *perClient; j++ {
				sub := domain.Submission{
					Username: fmt.Sprintf("tester-%d", clientID),
					Message:  fmt.Sprintf("load message %d from client %d", j, clientID),
				}
				if err := forwarder.Send(ctx, sub); err != nil {
					failureCount.Add(1)
				} else {
					successCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	sent := successCount.Load()
	failed := failureCount.Load()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.Append([]string{"Relay address", *addr})
	table.Append([]string{"Clients", fmt.Sprintf("%d", *clients)})
	table.Append([]string{"Messages delivered", fmt.Sprintf("%d", sent)})
	table.Append([]string{"Messages failed", fmt.Sprintf("%d", failed)})
	table.Append([]string{"Duration", duration.String()})
	table.Append([]string{"Throughput", fmt.Sprintf("%.2f msg/sec", float64(sent)/duration.Seconds())})

	fmt.Printf("\n--- LOAD RUN RESULTS ---\n")
	table.Render()
	fmt.Printf("------------------------\n")
	fmt.Println("Delivered means written to the socket; check the relay telemetry or the viewer for persisted counts.")
}
