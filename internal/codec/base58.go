package codec

import (
	"bytes"

	"github.com/btctx/engine/internal/bterr"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index [256]int8

func init() {
	for i := range base58Index {
		base58Index[i] = -1
	}
	for i, c := range base58Alphabet {
		base58Index[byte(c)] = int8(i)
	}
}

// Base58Encode encodes data in plain (non-checksummed) Base58.
func Base58Encode(data []byte) string {
	zeros := 0
	for _, b := range data {
		if b != 0 {
			break
		}
		zeros++
	}

	size := len(data)*138/100 + 1
	buf := make([]byte, size)
	for _, b := range data {
		carry := int(b)
		for i := size - 1; i >= 0; i-- {
			carry += 256 * int(buf[i])
			buf[i] = byte(carry % 58)
			carry /= 58
		}
	}

	i := 0
	for i < size && buf[i] == 0 {
		i++
	}

	result := make([]byte, zeros+size-i)
	for j := 0; j < zeros; j++ {
		result[j] = '1'
	}
	for j := zeros; i < size; i, j = i+1, j+1 {
		result[j] = base58Alphabet[buf[i]]
	}
	return string(result)
}

// Base58Decode decodes a plain Base58 string back to bytes.
func Base58Decode(s string) ([]byte, error) {
	zeros := 0
	for _, c := range s {
		if c != '1' {
			break
		}
		zeros++
	}

	size := len(s)*733/1000 + 1
	buf := make([]byte, size)
	for _, c := range s {
		idx := base58Index[byte(c)]
		if idx < 0 {
			return nil, bterr.New(bterr.InvalidAddress, "invalid base58 character")
		}
		carry := int(idx)
		for i := size - 1; i >= 0; i-- {
			carry += 58 * int(buf[i])
			buf[i] = byte(carry % 256)
			carry /= 256
		}
	}

	i := 0
	for i < size && buf[i] == 0 {
		i++
	}

	result := make([]byte, zeros+size-i)
	for j := zeros; i < size; i, j = i+1, j+1 {
		result[j] = buf[i]
	}
	return result, nil
}

// Base58CheckEncode encodes payload || sha256d(payload)[:4] in Base58.
func Base58CheckEncode(payload []byte) string {
	checksum := Sha256d(payload)[:4]
	full := make([]byte, 0, len(payload)+4)
	full = append(full, payload...)
	full = append(full, checksum...)
	return Base58Encode(full)
}

// Base58CheckDecode decodes and verifies a Base58Check string, returning the
// payload (version byte + data) with the checksum stripped.
func Base58CheckDecode(s string) ([]byte, error) {
	full, err := Base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(full) < 5 {
		return nil, bterr.New(bterr.InvalidAddress, "base58check payload too short")
	}
	payload := full[:len(full)-4]
	checksum := full[len(full)-4:]
	expected := Sha256d(payload)[:4]
	if !bytes.Equal(checksum, expected) {
		return nil, bterr.New(bterr.InvalidAddress, "base58check checksum mismatch")
	}
	return payload, nil
}
