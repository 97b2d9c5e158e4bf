package redsys

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// deriveOrderKey produces the per-order signing key: the order number
// encrypted with 3DES-CBC under the merchant secret, zero IV, zero
// padded to the cipher block size. This is the scheme the bank's
// HMAC_SHA256_V1 signature version prescribes.
func deriveOrderKey(merchantKeyB64, orderNumber string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(merchantKeyB64)
	if err != nil {
		return nil, fmt.Errorf("merchant key is not valid base64: %w", err)
	}
	if len(key) != 24 {
		return nil, fmt.Errorf("merchant key must be 24 bytes, got %d", len(key))
	}

	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := zeroPad([]byte(orderNumber), des.BlockSize)
	iv := make([]byte, des.BlockSize)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return ciphertext, nil
}

// sign computes the base64 HMAC-SHA256 of the encoded merchant
// parameters under the per-order key.
func sign(merchantKeyB64, orderNumber, encodedParams string) (string, error) {
	orderKey, err := deriveOrderKey(merchantKeyB64, orderNumber)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, orderKey)
	mac.Write([]byte(encodedParams))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// signaturesEqual compares two signatures in constant time, tolerating
// the URL-safe alphabet the bank uses on notifications.
func signaturesEqual(a, b string) bool {
	return hmac.Equal([]byte(normalizeB64(a)), []byte(normalizeB64(b)))
}

func normalizeB64(s string) string {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	return s
}

func zeroPad(data []byte, blockSize int) []byte {
	rem := len(data) % blockSize
	if rem == 0 && len(data) > 0 {
		return data
	}
	padded := make([]byte, len(data)+blockSize-rem)
	copy(padded, data)
	return padded
}
