package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache caches parsed robots.txt per host. Fetch failures are treated
// as allow-all so an unreachable robots.txt never stalls the pipeline.
type robotsCache struct {
	mu        sync.Mutex
	groups    map[string]*robotstxt.Group
	client    *http.Client
	userAgent string
}

func newRobotsCache(userAgent string, timeout time.Duration) *robotsCache {
	return &robotsCache{
		groups:    make(map[string]*robotstxt.Group),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// allowed reports whether the user agent may fetch the URL.
func (c *robotsCache) allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	group, err := c.group(u)
	if err != nil || group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (c *robotsCache) group(u *url.URL) (*robotstxt.Group, error) {
	key := u.Scheme + "://" + u.Host
	c.mu.Lock()
	group, ok := c.groups[key]
	c.mu.Unlock()
	if ok {
		return group, nil
	}

	group, err := c.fetchGroup(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.groups[key] = group
	c.mu.Unlock()
	return group, nil
}

func (c *robotsCache) fetchGroup(origin string) (*robotstxt.Group, error) {
	req, err := http.NewRequest(http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return robots.FindGroup(c.userAgent), nil
}
