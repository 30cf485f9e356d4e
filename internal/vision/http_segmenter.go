package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"time"
)

// HTTPSegmenter implements Segmenter against a remote matting service:
// it POSTs the frame as PNG and expects a grayscale alpha matte back.
type HTTPSegmenter struct {
	client   *http.Client
	endpoint string
}

// NewHTTPSegmenter creates a segmenter client for the given endpoint URL
func NewHTTPSegmenter(endpoint string) *HTTPSegmenter {
	// Transport tuned for repeated posts to a single local matting service
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPSegmenter{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		endpoint: endpoint,
	}
}

func (s *HTTPSegmenter) Segment(ctx context.Context, frame image.Image) (*image.Gray, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, frame); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	payload := body.Bytes()

	// Retry logic (3 attempts) - only retry on transient errors
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("invalid segmenter endpoint: %w", err)
		}
		req.Header.Set("Content-Type", "image/png")
		req.Header.Set("Accept", "image/png")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			mask, done, err := s.readMask(resp)
			if done {
				return mask, err
			}
			lastErr = err
		}

		if attempt < 2 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("segmentation failed after 3 attempts: %w", lastErr)
}

// readMask consumes the response; done is false only for retryable failures.
func (s *HTTPSegmenter) readMask(resp *http.Response) (*image.Gray, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("segmenter returned status %d", resp.StatusCode)
		// 4xx client errors are non-retryable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, true, err
		}
		return nil, false, err
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to decode mask: %w", err)
	}
	return toGray(img), true, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
