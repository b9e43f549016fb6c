// Package protocol implements the netshell wire protocol.
//
// Every message on the stream is a 4-byte little-endian command tag followed by
// the payload of the event type that owns the tag:
//
//	[uint32 tag][payload]
//
// Payload primitives:
//   - fixed-width integers: little-endian
//   - bool: one byte, 0 or 1
//   - string: int32 byte length followed by UTF-8 bytes
//   - nullable string: one presence byte, then a string when present
//   - operation id: 16 raw bytes (a UUID)
//
// Tags are split into two disjoint ranges: client-originated events live in
// 0x0001xxxx and server-originated events in 0x8001xxxx. Tags are explicit
// constants and never depend on declaration order.
//
// Decode distinguishes a peer that closed the stream between messages (io.EOF)
// from one that closed it inside a message or sent an unknown tag
// (*ProtocolError). The latter is fatal to the connection.
package protocol
