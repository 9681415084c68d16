package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Changing them only affects new hashes; Verify reads
// the parameters embedded in each stored hash.
const (
	timeCost   uint32 = 3
	memoryCost uint32 = 64 * 1024
	threads    uint8  = 2
	keyLen     uint32 = 32
	saltLen           = 16
)

var errMalformedHash = errors.New("malformed password hash")

// Hash returns an argon2id hash string embedding parameters and salt.
func Hash(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, timeCost, memoryCost, threads, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memoryCost,
		timeCost,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks plain against an encoded argon2id hash in constant time.
func Verify(plain, encoded string) (bool, error) {
	salt, key, m, t, p, err := decode(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(plain), salt, t, m, p, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func decode(encoded string) (salt, key []byte, m, t uint32, p uint8, err error) {
	var version int
	var pRaw uint32

	rest := encoded
	var saltB64, keyB64 string
	if _, err = fmt.Sscanf(rest, "$argon2id$v=%d$m=%d,t=%d,p=%d$", &version, &m, &t, &pRaw); err != nil {
		return nil, nil, 0, 0, 0, errMalformedHash
	}
	if version != argon2.Version || pRaw == 0 || pRaw > 255 {
		return nil, nil, 0, 0, 0, errMalformedHash
	}

	// The two trailing segments are base64 without padding; Sscanf cannot
	// split on '$', so locate them manually.
	idx := lastIndexN(encoded, '$', 2)
	if idx < 0 {
		return nil, nil, 0, 0, 0, errMalformedHash
	}
	saltB64 = encoded[idx+1 : lastIndexN(encoded, '$', 1)]
	keyB64 = encoded[lastIndexN(encoded, '$', 1)+1:]

	if salt, err = base64.RawStdEncoding.DecodeString(saltB64); err != nil {
		return nil, nil, 0, 0, 0, errMalformedHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(keyB64); err != nil {
		return nil, nil, 0, 0, 0, errMalformedHash
	}
	if len(salt) == 0 || len(key) == 0 {
		return nil, nil, 0, 0, 0, errMalformedHash
	}
	return salt, key, m, t, uint8(pRaw), nil
}

// lastIndexN returns the index of the nth '$' counting from the end, or -1.
func lastIndexN(s string, sep byte, n int) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			n--
			if n == 0 {
				return i
			}
		}
	}
	return -1
}
