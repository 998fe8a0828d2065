package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature checks the provider's x-signature header,
// formatted as "ts=<unix>,v1=<hex hmac>". The signed template is
// "id:<dataID>;ts:<ts>;" keyed with the webhook secret. An empty secret
// disables verification (the webhook endpoint then relies on the
// authoritative payment lookup alone, which never trusts payload data).
func VerifyWebhookSignature(secret, header, dataID string) bool {
	if secret == "" {
		return true
	}
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	template := "id:" + dataID + ";ts:" + ts + ";"
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(template))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(v1)), []byte(expected))
}
