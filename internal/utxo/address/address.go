// Package address derives and parses Bitcoin-family addresses on top of each
// chain's native library.
package address

// UTXOAddress is a chain-agnostic address for Bitcoin-family chains.
type UTXOAddress interface {
	// String returns the chain-specific encoding, e.g. "1...", "bc1q...",
	// "bitcoincash:q...", "L...".
	String() string

	// ScriptAddress returns the 20-byte key or script hash.
	ScriptAddress() []byte

	// PayToAddrScript builds the scriptPubKey paying to this address.
	PayToAddrScript() ([]byte, error)
}
