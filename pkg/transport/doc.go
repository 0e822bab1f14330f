// Package transport defines the stream carrier interfaces used by the netplay
// client and the Socket that layers non-blocking send/receive semantics on top
// of them.
//
// Key concepts:
//   - Transport: dials/listens for Conns of a specific Kind (tcp, quic, mem, winpipe)
//   - Conn: a reliable ordered byte stream with read/write deadlines
//   - Socket: retrying sends, polled receives, an application send buffer and
//     a sticky connection state
//
// Would-block is expressed with short deadlines: an expired deadline means no
// progress could be made right now, not that the connection failed.
package transport
