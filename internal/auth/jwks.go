package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	jwksCacheTTL      = time.Hour
	jwksForceThrottle = 60 * time.Second
)

type jwksDoc struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// jwksCache fetches and caches an issuer's JSON Web Key Set. A missing kid
// triggers at most one forced refresh per jwksForceThrottle window, per
// spec §4.8 ("prevents IdP stampedes on unknown keys").
type jwksCache struct {
	url    string
	client *http.Client

	mu                sync.RWMutex
	keys              map[string]*rsa.PublicKey
	lastFetch         time.Time
	lastForcedRefresh time.Time
}

func newJWKSCache(url string) *jwksCache {
	return &jwksCache{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		keys:   make(map[string]*rsa.PublicKey),
	}
}

func (c *jwksCache) keyForKid(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	stale := time.Since(c.lastFetch) >= jwksCacheTTL
	c.mu.RUnlock()

	if ok && !stale {
		return key, nil
	}

	forced := !ok
	if err := c.refresh(forced); err != nil {
		if ok {
			// Stale but present: serve it rather than fail a valid token on a
			// transient IdP outage.
			return key, nil
		}
		return nil, err
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kid %q not present in JWKS after refresh", kid)
	}
	return key, nil
}

// refresh fetches the JWKS document. When forced, it is throttled to at
// most once per jwksForceThrottle so an unknown kid can't be used to
// stampede the IdP.
func (c *jwksCache) refresh(forced bool) error {
	c.mu.Lock()
	if forced {
		if time.Since(c.lastForcedRefresh) < jwksForceThrottle {
			c.mu.Unlock()
			return errors.New("forced jwks refresh throttled")
		}
		c.lastForcedRefresh = time.Now()
	}
	c.mu.Unlock()

	resp, err := c.client.Get(c.url)
	if err != nil {
		return fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading jwks response: %w", err)
	}

	var doc jwksDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks response had no usable RSA keys")
	}

	c.mu.Lock()
	c.keys = keys
	c.lastFetch = time.Now()
	c.mu.Unlock()

	return nil
}

func rsaPublicKeyFromJWK(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
