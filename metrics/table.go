package metrics

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// WriteTable renders the current counters as a table.
func WriteTable(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Counter", "Value", "Rate"})

	for _, counter := range Snapshot() {
		tw.Append([]string{
			counter.Name,
			humanize.Comma(counter.Value),
			fmt.Sprintf("%s/s", humanize.FormatFloat("#,###.##", counter.PerSecond())),
		})
	}
	tw.Render()
}
