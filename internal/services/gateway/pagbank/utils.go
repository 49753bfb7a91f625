package pagbank

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

func randomReference() (string, error) {
	min := big.NewInt(100000000000000000)
	max := big.NewInt(999999999999999999)
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	n.Add(n, min)
	return n.String(), nil
}

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifySignature checks a webhook body against its signature header.
func VerifySignature(body []byte, receivedHMAC, secret string) bool {
	expectedHMAC := Hmac256(body, []byte(secret))
	return hmac.Equal([]byte(receivedHMAC), []byte(expectedHMAC))
}

// HashSecret stores a webhook secret in non-recoverable form.
func HashSecret(secret []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareSecret checks a plaintext secret against its stored hash.
func CompareSecret(storedHash, secret []byte) bool {
	if err := bcrypt.CompareHashAndPassword(storedHash, secret); err != nil {
		return false
	}
	return true
}
