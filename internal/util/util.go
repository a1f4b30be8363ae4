package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
)

const tokenBytes = 4

// RandomToken returns a short random hex string. Collisions are not checked.
func RandomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// ParseID parses a decimal identifier stored as text. Empty and zero values are rejected.
func ParseID(str string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}

	return id, true
}

func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
