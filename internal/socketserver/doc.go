// Package socketserver implements the netshell game server.
//
// # Architecture
//
//   - Server: accepts TLS connections (and optionally websocket connections),
//     runs one tick loop per world, and watches the config file
//   - Hub: the table of live sessions with the connection limit
//   - Session: one connection, with its receive loop, writer goroutine and
//     lifecycle state
//   - Dispatcher: authenticates logins and routes sessions to their world
//
// # Protocol
//
// Every event is a little-endian uint32 command tag followed by its payload;
// see package protocol. The first event a client sends must be a login.
// Before login, requests that carry an operation id are answered with their
// completion event and nothing else happens. After login, commands are queued
// on the world, input and edit responses are kept until the waiting process
// takes them, and token forge requests are answered for admins only.
//
// # Lifecycle
//
// A session moves NotStarted, Starting (TLS handshake and login), Active,
// Dispose, Disposed. Dispose is idempotent: it cancels the session context,
// tells the world the player left, closes the stream and removes the session
// from the hub.
//
// Usage
//
//	disp := socketserver.NewDispatcher(auth.New(db), w)
//	srv, err := socketserver.NewServer(cfg, socketserver.Deps{Dispatcher: disp})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package socketserver
