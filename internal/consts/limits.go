// Package consts holds the named limits and timeouts shared by the server,
// the client connection and the world scheduler.
package consts

import "time"

// Wire limits
const (
	// MaxStringBytes bounds a single length-prefixed string on the wire
	MaxStringBytes = 1024 * 1024
	// MaxArgvLength bounds the number of words accepted in one command line
	MaxArgvLength = 256
	// WriteBufferSize is the size of the buffered writer used for one flush
	WriteBufferSize = 64 * 1024
	// ReadBufferSize is the size of the buffered reader on each stream
	ReadBufferSize = 16 * 1024
)

// Session timeouts
const (
	// PreLoginReadTimeout is how long an unauthenticated client may stay idle
	PreLoginReadTimeout = 30 * time.Second
	// PostLoginReadTimeout is how long an authenticated client may stay idle
	PostLoginReadTimeout = 12 * time.Hour
	// PayloadReadTimeout bounds reading the payload once a tag has arrived
	PayloadReadTimeout = 10 * time.Second
	// WriteTimeout bounds one flush to the network
	WriteTimeout = 10 * time.Second
	// HandshakeTimeout bounds the TLS handshake
	HandshakeTimeout = 10 * time.Second
	// DisposePollInterval is how often Dispose re-checks a session that is mid-handshake
	DisposePollInterval = 10 * time.Millisecond
	// WaitPollInterval is the default poll interval for Inbox.WaitFor
	WaitPollInterval = 10 * time.Millisecond
)

// Scheduler defaults
const (
	// DefaultTickInterval is the wall-clock interval between world ticks
	DefaultTickInterval = 50 * time.Millisecond
	// MaxTickCatchup is how many tick intervals a single delta may cover
	MaxTickCatchup = 2
	// DefaultConWidth is used when a client reports a non-positive console width
	DefaultConWidth = 80
)

// Server defaults
const (
	// DefaultMaxConnections bounds concurrently connected sessions
	DefaultMaxConnections = 256
	// DefaultListenAddr is the default TLS listen address
	DefaultListenAddr = ":42069"
	// PlayerAddressPrefix is the /16 that player systems are allocated from
	PlayerAddressPrefix = "10.42"
)

// Storage retry limits
const (
	// DefaultMaxRetries is the number of attempts for a busy database
	DefaultMaxRetries = 5
	// RetryBaseDelay is the initial backoff between busy retries
	RetryBaseDelay = 20 * time.Millisecond
)
