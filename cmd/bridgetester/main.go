// Command bridgetester probes a running mq2wsbridge instance by publishing
// timestamped messages onto its inbound queue and measuring round-trip
// delivery back out the WebSocket side (looped back at the far end).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"mq2wsbridge/bridge"
	"mq2wsbridge/bridge/tester"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		visual    = flag.BoolP("visual", "v", false, "also render the table after each probe is sent")
		number    = flag.IntP("number", "n", 8, "number of probe messages to send")
		delay     = flag.Float64P("delay", "d", 1.0, "seconds to wait between sending each probe")
		exclusive = flag.BoolP("exclusive", "x", false, "claim the reply queue, acking any message seen")
		endDelay  = flag.Float64P("end-delay", "e", 30, "seconds to keep listening for replies after the last send")
		graph     = flag.BoolP("graph", "g", false, "render a dot-graph instead of a table")
		report    = flag.StringP("report", "r", "", "write unreconciled message IDs to this file")
		focused   = flag.BoolP("focused", "f", false, "suppress noise from replies this run did not send")
		configPath = flag.StringP("config", "c", "mq2wsbridge.ini", "path to the bridge's INI configuration file")
	)
	flag.Parse()

	settings, err := bridge.LoadFromINI(*configPath)
	if err != nil {
		return err
	}

	t := tester.New(settings.Broker.QueueToWS, settings.Broker.QueueFromWS, "bridgetester")
	t.Exclusive, t.Focused = *exclusive, *focused
	if err := t.Connect(settings.Broker.URL); err != nil {
		return err
	}
	defer t.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeDone := make(chan error, 1)
	go func() { consumeDone <- t.Consume(ctx) }()

	for i := 0; i < *number; i++ {
		id, err := t.SendProbe()
		if err != nil {
			return err
		}
		fmt.Printf("sent probe %s (%d/%d)\n", id, i+1, *number)
		if *visual {
			tester.DisplayTable(os.Stdout, t.Records())
		}
		time.Sleep(time.Duration(*delay * float64(time.Second)))
	}

	time.Sleep(time.Duration(*endDelay * float64(time.Second)))
	cancel()
	<-consumeDone

	records := t.Records()
	if *graph {
		tester.DisplayGraph(os.Stdout, records)
	} else {
		tester.DisplayTable(os.Stdout, records)
	}

	reconciled := t.ReconciledCount()
	fmt.Printf("reconciled %d/%d probes\n", reconciled, len(records))

	if *report != "" {
		if err := tester.WriteUnreconciledReport(*report, t.UnreconciledIDs()); err != nil {
			return err
		}
	}
	return nil
}
