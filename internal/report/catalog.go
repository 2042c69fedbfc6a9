package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/huddle/internal/catalog"
)

// FormatCatalog writes provider entries as a table.
func FormatCatalog(w io.Writer, entries []catalog.Entry) {
	fmt.Fprintf(w, "%-16s %-8s %-10s %-34s %s\n", "PROVIDER", "ACCESS", "AVAILABLE", "CAPABILITIES", "ENDPOINT")
	for _, e := range entries {
		available := "yes"
		if !e.Available {
			available = "no"
		}
		caps := strings.Join(e.Capabilities, ",")
		if caps == "" {
			caps = "-"
		}
		endpoint := e.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}
		fmt.Fprintf(w, "%-16s %-8s %-10s %-34s %s\n", e.ProviderName, e.AccessMode, available, caps, endpoint)
	}
}
