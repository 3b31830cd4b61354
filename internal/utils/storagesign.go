package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// SignStorageUpload produces the HMAC token that authorizes one direct PUT
// of the given storage key until expiry. The filesystem backend uses this
// to honor the signed-credential contract without an object store.
func SignStorageUpload(secret, key string, expires time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s\n%d", key, expires.Unix())
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyStorageUpload checks a token issued by SignStorageUpload. Expired
// credentials fail regardless of signature validity.
func VerifyStorageUpload(secret, key, expiresUnix, token string, now time.Time) bool {
	exp, err := strconv.ParseInt(expiresUnix, 10, 64)
	if err != nil {
		return false
	}
	if now.After(time.Unix(exp, 0)) {
		return false
	}

	want := SignStorageUpload(secret, key, time.Unix(exp, 0))
	return hmac.Equal([]byte(want), []byte(token))
}
