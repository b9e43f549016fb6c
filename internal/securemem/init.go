package securemem

import "github.com/awnumar/memguard"

func init() {
	Init()
}

// Init installs memguard's interrupt handler, which purges every enclave on
// SIGINT before exiting.
func Init() {
	memguard.CatchInterrupt()
}

// Purge destroys every live secret. Call it on shutdown.
func Purge() {
	memguard.Purge()
}

// Wipe zeroes data in place
func Wipe(data []byte) {
	memguard.WipeBytes(data)
}
