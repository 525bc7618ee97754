// Package oauth1 implements the OAuth1.0a signing recipe and the two
// token exchanges of the three-legged login flow.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kgashok/PlumConfusedOpensource/models"
)

const (
	paramConsumerKey     = "oauth_consumer_key"
	paramNonce           = "oauth_nonce"
	paramSignature       = "oauth_signature"
	paramSignatureMethod = "oauth_signature_method"
	paramTimestamp       = "oauth_timestamp"
	paramToken           = "oauth_token"
	paramVersion         = "oauth_version"

	signatureMethodHMACSHA1 = "HMAC-SHA1"
	oauthVersion10          = "1.0"

	// nonceBytes yields 32 hex characters per nonce.
	nonceBytes = 16
)

// Signer computes OAuth1.0a HMAC-SHA1 authorization headers. The zero
// value with a Consumer set is ready to use; Noncer and Clock exist so
// tests can pin entropy and time for reproducible signatures.
type Signer struct {
	Consumer models.ConsumerCredential

	// Noncer returns a fresh single-use nonce. Defaults to 32 hex chars
	// from crypto/rand.
	Noncer func() (string, error)
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// AuthorizationHeader signs one outbound request and returns the value for
// the Authorization header. extra carries request parameters that must be
// included in the signature base string (form body parameters and any
// oauth_* protocol parameters such as oauth_callback or oauth_verifier);
// query parameters are taken from rawurl itself. token and tokenSecret are
// empty before a user token exists.
//
// Every call draws a fresh nonce and timestamp; a rejected request must be
// re-signed, never replayed.
func (s *Signer) AuthorizationHeader(method, rawurl string, extra url.Values, token, tokenSecret string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}

	nonce, err := s.nonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ts := s.now().Unix()

	oauthParams := map[string]string{
		paramConsumerKey:     s.Consumer.Key,
		paramNonce:           nonce,
		paramSignatureMethod: signatureMethodHMACSHA1,
		paramTimestamp:       strconv.FormatInt(ts, 10),
		paramVersion:         oauthVersion10,
	}
	if token != "" {
		oauthParams[paramToken] = token
	}
	for k, vs := range extra {
		if strings.HasPrefix(k, "oauth_") && len(vs) > 0 {
			oauthParams[k] = vs[0]
		}
	}

	base := signatureBase(method, u, oauthParams, extra)
	oauthParams[paramSignature] = s.sign(base, tokenSecret)

	return headerValue(oauthParams), nil
}

// sign computes base64(HMAC-SHA1(key, base)) with the standard
// consumerSecret&tokenSecret key (tokenSecret empty before user consent).
func (s *Signer) sign(base, tokenSecret string) string {
	key := percentEncode(s.Consumer.Secret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Signer) nonce() (string, error) {
	if s.Noncer != nil {
		return s.Noncer()
	}
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Signer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// signatureBase builds METHOD&enc(baseURL)&enc(normalizedParams) over the
// oauth protocol parameters, the extra request parameters and the URL's
// query string.
func signatureBase(method string, u *url.URL, oauthParams map[string]string, extra url.Values) string {
	type pair struct{ key, value string }
	var pairs []pair

	for k, v := range oauthParams {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range extra {
		if strings.HasPrefix(k, "oauth_") {
			continue // already included via oauthParams
		}
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}

	return strings.ToUpper(method) + "&" + percentEncode(baseURL(u)) + "&" + percentEncode(b.String())
}

// baseURL normalizes scheme://host/path: lowercase scheme and host, default
// ports stripped, query and fragment dropped.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath()
}

// headerValue renders the oauth_* parameters as a comma-separated OAuth
// Authorization header with percent-encoded values, keys sorted.
func headerValue(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(percentEncode(k))
		b.WriteString(`="`)
		b.WriteString(percentEncode(oauthParams[k]))
		b.WriteString(`"`)
	}
	return b.String()
}

// percentEncode implements the RFC 3986 encoding OAuth1.0a requires: only
// ALPHA / DIGIT / "-" / "." / "_" / "~" pass through, everything else
// becomes uppercase %XX (space is %20, never "+").
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
}
