// Package download fetches media over plain HTTP for providers that hand
// back a direct URL. Providers that shell out to an external downloader
// (yt-dlp) bypass this service entirely.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type ProgressFunc func(written, total int64)

// Request describes one HTTP media fetch.
type Request struct {
	URL     string
	Headers map[string]string

	// Size is the expected byte count when known; zero skips the check.
	Size int64
}

type Service struct {
	client  *http.Client
	timeout time.Duration
	retries int
}

type ServiceOptions struct {
	Timeout time.Duration

	// Retries is the number of attempts per download (default 3).
	Retries int
}

func NewService(opts ServiceOptions) *Service {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   minDuration(opts.Timeout, 10*time.Second),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   minDuration(opts.Timeout, 10*time.Second),
		ResponseHeaderTimeout: minDuration(opts.Timeout, 10*time.Second),
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Service{
		client: &http.Client{
			Transport: transport,
		},
		timeout: opts.Timeout,
		retries: opts.Retries,
	}
}

// Download fetches req.URL into destPath, retrying with exponential
// backoff. A partial file is removed before each retry so callers never
// see a truncated artifact.
func (s *Service) Download(ctx context.Context, req *Request, destPath string, progress ProgressFunc) (int64, error) {
	if req == nil || req.URL == "" {
		return 0, errors.New("download request missing URL")
	}
	if destPath == "" {
		return 0, errors.New("dest path missing")
	}

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		written, err := s.downloadOnce(ctx, req, destPath, progress)
		if err == nil {
			if req.Size > 0 && written != req.Size {
				_ = os.Remove(destPath)
				return 0, fmt.Errorf("incomplete download: got %d bytes, expected %d", written, req.Size)
			}
			return written, nil
		}
		lastErr = err
		_ = os.Remove(destPath)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if attempt < s.retries-1 {
			time.Sleep(time.Duration(1<<attempt) * time.Second)
		}
	}
	return 0, lastErr
}

func (s *Service) downloadOnce(ctx context.Context, req *Request, destPath string, progress ProgressFunc) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	total := req.Size
	if total == 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return copyWithProgress(file, resp.Body, total, progress)
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastUpdate := time.Now()

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil && time.Since(lastUpdate) >= 2*time.Second {
				progress(written, total)
				lastUpdate = time.Now()
			}
		}
		if err != nil {
			if err == io.EOF {
				return written, nil
			}
			return written, err
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 || a > b {
		return b
	}
	return a
}
