package whatsapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const maxImageBytes = 10 << 20

// downloadImage fetches the offer image to a temp file so the browser's file
// input can pick it up. Caller removes the file.
func downloadImage(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "zapfinder-offer-*"+imageExt(resp.Header.Get("Content-Type"), url))
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}

	_, err = io.Copy(f, io.LimitReader(resp.Body, maxImageBytes))
	cerr := f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if cerr != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close image: %w", cerr)
	}
	return f.Name(), nil
}

func imageExt(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	if i := strings.LastIndex(url, "."); i >= 0 && len(url)-i <= 5 {
		return url[i:]
	}
	return ".jpg"
}
