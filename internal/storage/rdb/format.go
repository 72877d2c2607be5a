package rdb

import (
	"encoding/base64"
	"hash/crc64"
)

const magic = "REDIS"

// Version is the format version written by the encoder.
const Version = "0011"

// Opcodes.
const (
	opAux          = 0xFA
	opResizeDB     = 0xFB
	opExpireTimeMs = 0xFC
	opExpireTime   = 0xFD
	opSelectDB     = 0xFE
	opEOF          = 0xFF
)

// typeString is the only supported value type.
const typeString = 0x00

// Size encoding, selected by the top two bits of the first byte.
const (
	len6Bit  = 0x00
	len14Bit = 0x40
	len32Bit = 0x80
	len64Bit = 0x81
	lenEnc   = 0xC0
)

// Special string encodings, selected by the low six bits when the top
// two bits are 11.
const (
	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

// jonesTable is the reflected table for the CRC-64/Jones polynomial
// 0xad93d23594c935a9.
var jonesTable = crc64.MakeTable(0x95ac9329ac4bc9b5)

// updateChecksum extends crc over p with zero init and no final xor, which
// is how Redis computes the trailer. crc64.Update inverts on entry and
// exit, so it cannot be used directly.
func updateChecksum(crc uint64, p []byte) uint64 {
	for _, b := range p {
		crc = jonesTable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

const emptySnapshotB64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// EmptySnapshot returns a minimal valid snapshot with metadata and no
// keys, as produced by Redis 7.2 for an empty dataset.
func EmptySnapshot() []byte {
	b, err := base64.StdEncoding.DecodeString(emptySnapshotB64)
	if err != nil {
		panic("rdb: invalid built-in empty snapshot: " + err.Error())
	}
	return b
}
