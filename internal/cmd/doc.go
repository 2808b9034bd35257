// Package cmd implements the chanbridge command line.
//
//	chanbridge serve     run the bridge, pty devices and admin API
//	chanbridge channels  print the channel table
//	chanbridge peer      run a WebSocket echo peer
//	chanbridge status    show channel state from a running bridge
//	chanbridge unthrottle INDEX
package cmd
