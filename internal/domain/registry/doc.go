// Package registry holds the channel table: the mapping from a small device
// index to a named transport channel.
//
// The table is supplied by configuration, can be swapped as a whole until the
// bridge activates it, and is read-only afterwards. Duplicate indices are a
// configuration error rather than silent aliasing.
//
// Table files look like:
//
//	keep_open: false
//	channels:
//	  - index: 0
//	    name: SMD_DS
//	  - index: 27
//	    name: SMD_GPSNMEA
//	    keep_open: true
//
// TOML tables use [[channels]] entries with the same keys.
package registry
