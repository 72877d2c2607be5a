// Package rdb reads and writes the RDB snapshot format.
//
// File layout:
//
//	"REDIS" <4 version digits>
//	{ 0xFA <name> <value> }                    metadata
//	{ 0xFE <db> 0xFB <size> <expires>          database section
//	    { [0xFC <ms:8 LE> | 0xFD <s:4 LE>]
//	      <type> <key> <value> } }
//	0xFF <checksum:8>
//
// Only plain string values (type 0x00) are supported. Strings are
// length-prefixed with the size encoding, or stored as 8, 16 or 32 bit
// little-endian integers. LZF-compressed strings are rejected.
//
// The decoder never verifies the trailing checksum. The encoder writes a
// CRC-64/Jones checksum as Redis does.
package rdb
