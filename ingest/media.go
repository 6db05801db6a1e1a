package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// rehostLimit bounds how many gallery photos are copied into owned
	// storage: the cover photo plus the first 3 gallery images. Everything
	// past it stays a CDN reference.
	rehostLimit = 4

	// averageImageSizeMB feeds the informational storage-saved estimate
	// for CDN-referenced images. Not used for any control decision.
	averageImageSizeMB = 0.4

	maxImageBytes = 20 * 1024 * 1024
)

// Uploader is the owned-storage sink for rehosted media.
// Implemented by storage.MediaStore.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// MediaStrategist decides, per property, which images are rehosted into
// owned storage and which remain provider CDN references, and performs the
// rehost copy.
type MediaStrategist struct {
	uploader   Uploader
	httpClient *http.Client
}

func NewMediaStrategist(uploader Uploader, httpClient *http.Client) *MediaStrategist {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaStrategist{uploader: uploader, httpClient: httpClient}
}

// Distribution is the hybrid split for one property's media.
type Distribution struct {
	Images              []string // owned-storage URLs
	GalleryURLs         []string // untouched CDN references
	FloorPlanURLs       []string // owned-storage URLs
	PhotosRehosted      int
	PhotosCDNReferenced int
	FloorPlansRehosted  int
	Errors              []string
}

// StorageSavedMB estimates bandwidth/storage avoided by keeping long
// galleries as CDN references.
func (d *Distribution) StorageSavedMB() float64 {
	return float64(d.PhotosCDNReferenced) * averageImageSizeMB
}

// DistributeImages rehosts the first rehostLimit photos and every floor
// plan, keeping remaining photos as CDN references. An individual copy
// failure is logged, recorded, and the image omitted; it never aborts the
// property's sync.
func (m *MediaStrategist) DistributeImages(ctx context.Context, externalID string, photos, floorPlans []string) Distribution {
	var d Distribution

	for i, u := range photos {
		if i >= rehostLimit {
			d.GalleryURLs = append(d.GalleryURLs, u)
			d.PhotosCDNReferenced++
			continue
		}
		owned, err := m.rehost(ctx, "properties/"+externalID, u)
		if err != nil {
			log.Printf("Warning: rehost failed for %s: %v", u, err)
			d.Errors = append(d.Errors, fmt.Sprintf("rehost %s: %v", u, err))
			continue
		}
		d.Images = append(d.Images, owned)
		d.PhotosRehosted++
	}

	// Floor plans are small and high-value; never left as bare CDN links.
	for _, u := range floorPlans {
		owned, err := m.rehost(ctx, "floorplans/"+externalID, u)
		if err != nil {
			log.Printf("Warning: floor plan rehost failed for %s: %v", u, err)
			d.Errors = append(d.Errors, fmt.Sprintf("floor plan %s: %v", u, err))
			continue
		}
		d.FloorPlanURLs = append(d.FloorPlanURLs, owned)
		d.FloorPlansRehosted++
	}

	return d
}

// rehost downloads one remote image and copies it into owned storage,
// returning the owned public URL.
func (m *MediaStrategist) rehost(ctx context.Context, keyPrefix, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	sum := hex.EncodeToString(hash[:])
	ext := guessExtension(imageURL, resp.Header.Get("Content-Type"))
	key := fmt.Sprintf("%s/%s%s", keyPrefix, sum, ext)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := m.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return m.uploader.PublicURL(key), nil
}

// guessExtension determines file extension from URL or content-type
func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if idx := strings.IndexAny(ext, "?#"); idx >= 0 {
		ext = ext[:idx]
	}
	if ext != "" && isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// NoOpUploader skips the actual storage copy but still yields stable owned
// keys. Used when no bucket is configured and in tests.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func (u *NoOpUploader) PublicURL(key string) string {
	return "noop://" + key
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
