// Package socketclient is the client side of the netshell protocol.
//
// A Connection runs a receive loop into an inbox and a writer goroutine for
// outbound events. Request/response flows correlate on operation ids:
//
//	conn, err := socketclient.Dial(ctx, "localhost:42069", tlsCfg)
//	if err != nil {
//	    return err
//	}
//	defer conn.Dispose()
//
//	if _, err := conn.Login(ctx, "alice", pass, nil); err != nil {
//	    return err
//	}
//	_, events, err := conn.Command(ctx, 80, "ls /")
package socketclient
