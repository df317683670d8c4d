package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const serverService = "_pulse-server._tcp"

// discover browses the local network for daemons announced by module-zeroconf-publish
// and prints a server string for each.
func discover(ctx context.Context, timeout time.Duration) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, serverService, "local.", entries); err != nil {
		return fmt.Errorf("failed to browse: %w", err)
	}

	found := 0
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return report(found)
			}

			fmt.Printf("%s\n\tServer: %s\n", entry.Instance, serverString(entry))
			for _, txt := range entry.Text {
				fmt.Printf("\t%s\n", txt)
			}
			found++
		case <-ctx.Done():
			return report(found)
		}
	}
}

func report(found int) error {
	if found == 0 {
		fmt.Println("No servers found.")
	}

	return nil
}

func serverString(entry *zeroconf.ServiceEntry) string {
	host := entry.HostName
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	}

	return "tcp:" + net.JoinHostPort(host, strconv.Itoa(entry.Port))
}
