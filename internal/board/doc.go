// Package board keeps the canonical registry of boards seen through every
// transport channel.
//
// Each discovery pass enumerates the configured channels concurrently. Every
// endpoint is connected (or its cached session reused), asked for its device
// info and resolved to a stable identity key: the firmware-reported serial
// number, or "<kind>:<fallback id>" when the board reports none. The same
// physical board seen over USB and over the web workflow therefore lands in
// one Board record with one entry per channel.
//
// # Lifecycle
//
//	unseen ──▶ provisional ──▶ ready
//
// The registry mutex is held only while looking up or creating an entry,
// never across device I/O. The goroutine that creates an entry fills in its
// display metadata at creation time and closes the entry's ready channel
// once its own channel data is recorded. Other channels resolving the same
// identity wait on that channel before touching the entry, so a half-built
// Board is never published.
//
// # Rescans
//
// Only one pass runs at a time. Rescan joins an in-flight pass and waits for
// it; TryRescan starts one in the background or reports that one is already
// running. A full rescan clears the registry first; incremental passes
// update boards in place. Device info is re-read on every pass, and when a
// different board answers at an endpoint the previous owner loses that
// channel. Run drives the periodic schedule.
//
// # Usage
//
//	reg := board.NewRegistry([]transport.Channel{usbCh, webCh}, board.Options{
//	    Interval:       10 * time.Second,
//	    SettleDelay:    2 * time.Second,
//	    ConnectTimeout: 5 * time.Second,
//	})
//	reg.SetSink(hub)
//	go reg.Run(ctx)
//
//	err := reg.TryDo(ctx, key, func(ctx context.Context) error {
//	    sess, b, err := reg.Session(ctx, key, true)
//	    ...
//	})
package board
