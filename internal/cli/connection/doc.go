// Package connection provides the RESP client used by minikv-cli.
//
// A Client holds one TCP connection and sends commands as RESP arrays of
// bulk strings, reading one reply per command. The Manager tracks the
// current client for interactive sessions.
package connection
