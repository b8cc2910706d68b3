package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/marianofino/pocket-mqtt/src/security/crypto"
)

// tokenWindow is the acceptance window for a bootstrap token: the token is
// valid only while 0 <= now - timestampMs <= tokenWindow.
const tokenWindow = 60 * time.Second

// GenerateToken produces a bootstrap token for name, timestamped at now:
// "{timestampMs}:{hex(SHA-256(name || pepper || timestampMs))}".
func GenerateToken(name string, pepper crypto.Pepper, now time.Time) string {
	tsStr := strconv.FormatInt(now.UnixMilli(), 10)
	return tsStr + ":" + digest(name, pepper, tsStr)
}

func digest(name string, pepper crypto.Pepper, tsStr string) string {
	h := sha256.Sum256([]byte(name + pepper.String() + tsStr))
	return hex.EncodeToString(h[:])
}

// verifyToken parses and validates a bootstrap token against name, as of
// now. It never distinguishes malformed-vs-expired-vs-wrong-hash to the
// caller beyond the single ErrUnauthorized/ErrMalformed split required by
// §4.8's failure taxonomy.
func verifyToken(token, name string, pepper crypto.Pepper, now time.Time) error {
	tsStr, hashHex, ok := strings.Cut(token, ":")
	if !ok {
		return ErrMalformed
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil || ts < 0 {
		return ErrMalformed
	}

	elapsed := now.UnixMilli() - ts
	if elapsed < 0 || elapsed > tokenWindow.Milliseconds() {
		return ErrUnauthorized
	}

	expected := digest(name, pepper, tsStr)
	if !crypto.ConstantTimeEqualString(expected, hashHex) {
		return ErrUnauthorized
	}

	return nil
}
