// Package api defines the request and response messages of the NotaPoint
// RPC services. Messages travel as JSON; money is a decimal string
// ("4.49") and timestamps are Unix seconds.
package api
