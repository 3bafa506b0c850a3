package match

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/0x5487/orderbook-core/protocol"
)

// Depth returns up to limit levels per side formatted through the tick size.
func (e *MatchingEngine) Depth(limit uint32) (*protocol.GetDepthResponse, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	return &protocol.GetDepthResponse{
		UpdateID: e.clock.Load(),
		Asks:     depthItems(sideView(e.asks, false, int(limit)), e.tickSize),
		Bids:     depthItems(sideView(e.bids, false, int(limit)), e.tickSize),
	}, nil
}

func depthItems(levels []LevelView, tick TickSize) []*protocol.DepthItem {
	items := make([]*protocol.DepthItem, 0, len(levels))
	for _, lvl := range levels {
		items = append(items, &protocol.DepthItem{
			Price: tick.Format(lvl.Price),
			Size:  fmt.Sprintf("%d", lvl.Quantity),
			Count: lvl.Count,
		})
	}
	return items
}

// PrintBook renders a snapshot as a ladder: asks from worst to best above bids from best to worst.
func PrintBook(w io.Writer, snap *Snapshot, tick TickSize) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "SIDE\tPRICE\tQUANTITY\tORDERS\t")
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		lvl := snap.Asks[i]
		fmt.Fprintf(tw, "ask\t%s\t%d\t%d\t\n", tick.Format(lvl.Price), lvl.Quantity, lvl.Count)
	}

	fmt.Fprintf(tw, "%s\t\t\t\t\n", strings.Repeat("-", 4))

	for _, lvl := range snap.Bids {
		fmt.Fprintf(tw, "bid\t%s\t%d\t%d\t\n", tick.Format(lvl.Price), lvl.Quantity, lvl.Count)
	}

	return tw.Flush()
}
