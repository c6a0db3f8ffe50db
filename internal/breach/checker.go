// Package breach checks passwords against a k-anonymity breach range API.
// Only the first five hex characters of the SHA-1 digest leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PrefixLen is the number of hex characters sent to the range API.
const PrefixLen = 5

const maxRangeBody = 1 << 20

// Options configures a Checker.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

// Checker implements the leaked-password lookup. It fails open: any
// transport error, non-200 answer or cancelled context reports the password
// as not leaked and logs a warning.
type Checker struct {
	opts   Options
	client *http.Client
	cache  RangeCache
	log    zerolog.Logger
}

// NewChecker returns a Checker. cache may be nil.
func NewChecker(opts Options, cache RangeCache, log zerolog.Logger) *Checker {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Checker{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		cache:  cache,
		log:    log.With().Str("component", "breach").Logger(),
	}
}

// IsLeaked reports whether plaintext appears in the breach corpus.
func (c *Checker) IsLeaked(ctx context.Context, plaintext string) bool {
	if !c.opts.Enabled {
		return false
	}
	prefix, suffix := splitDigest(plaintext)

	body, err := c.rangeFor(ctx, prefix)
	if err != nil {
		c.log.Warn().Err(err).Msg("breach lookup failed, treating password as not leaked")
		return false
	}
	return containsSuffix(body, suffix)
}

func (c *Checker) rangeFor(ctx context.Context, prefix string) (string, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, prefix); ok {
			return body, nil
		}
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/range/"+prefix, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("range api answered %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRangeBody+1))
	if err != nil {
		return "", err
	}
	// A truncated range is neither matched nor cached.
	if len(raw) > maxRangeBody {
		return "", fmt.Errorf("range body exceeds %d bytes", maxRangeBody)
	}
	body := string(raw)

	if c.cache != nil {
		c.cache.Set(ctx, prefix, body)
	}
	return body, nil
}

// splitDigest returns the upper-case SHA-1 hex digest of plaintext split
// into the range prefix and the suffix to match locally.
func splitDigest(plaintext string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(plaintext))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	return digest[:PrefixLen], digest[PrefixLen:]
}

// containsSuffix scans SUFFIX:COUNT lines. Padding entries carry a zero
// count and never match.
func containsSuffix(body, suffix string) bool {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		cand, count, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(cand, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		return err == nil && n > 0
	}
	return false
}
