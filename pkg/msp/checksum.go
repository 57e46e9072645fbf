package msp

// ChecksumXOR folds data into sum with exclusive-or.
func ChecksumXOR(data []byte, sum byte) byte {
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Checksum computes the v1 frame checksum over the length byte, the
// command byte and the payload, in that order.
func Checksum(length, cmd byte, payload []byte) byte {
	return ChecksumXOR(payload, length^cmd)
}

// VerifyChecksum reports whether claimed matches the computed v1 checksum.
func VerifyChecksum(length, cmd byte, payload []byte, claimed byte) bool {
	return Checksum(length, cmd, payload) == claimed
}

// ChecksumCRC8 folds data into crc using CRC-8/DVB-S2 (poly 0xd5), the
// integrity check of v2 frames.
func ChecksumCRC8(data []byte, crc byte) byte {
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0xd5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
