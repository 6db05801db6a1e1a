package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingUploader struct {
	keys []string
}

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	u.keys = append(u.keys, key)
	return nil
}

func (u *recordingUploader) PublicURL(key string) string {
	return "https://media.test/" + key
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes-" + r.URL.Path))
	}))
}

func TestDistributeImages_HybridSplit(t *testing.T) {
	srv := newImageServer(t)
	defer srv.Close()

	uploader := &recordingUploader{}
	m := NewMediaStrategist(uploader, srv.Client())

	photos := []string{
		srv.URL + "/p1.jpg", srv.URL + "/p2.jpg", srv.URL + "/p3.jpg",
		srv.URL + "/p4.jpg", srv.URL + "/p5.jpg", srv.URL + "/p6.jpg",
	}
	floorPlans := []string{srv.URL + "/fp1.png", srv.URL + "/fp2.png"}

	d := m.DistributeImages(context.Background(), "9001", photos, floorPlans)

	if d.PhotosRehosted != 4 || len(d.Images) != 4 {
		t.Fatalf("expected 4 rehosted photos, got %d (%d urls)", d.PhotosRehosted, len(d.Images))
	}
	if d.PhotosCDNReferenced != 2 || len(d.GalleryURLs) != 2 {
		t.Fatalf("expected 2 CDN references, got %d (%d urls)", d.PhotosCDNReferenced, len(d.GalleryURLs))
	}
	if d.FloorPlansRehosted != 2 || len(d.FloorPlanURLs) != 2 {
		t.Fatalf("expected all floor plans rehosted, got %d (%d urls)", d.FloorPlansRehosted, len(d.FloorPlanURLs))
	}
	if len(d.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", d.Errors)
	}

	if d.GalleryURLs[0] != photos[4] || d.GalleryURLs[1] != photos[5] {
		t.Fatalf("expected overflow photos kept as their CDN URLs, got %v", d.GalleryURLs)
	}
	for _, u := range d.Images {
		if !strings.HasPrefix(u, "https://media.test/properties/9001/") {
			t.Fatalf("expected owned photo URL, got %s", u)
		}
	}
	for _, u := range d.FloorPlanURLs {
		if !strings.HasPrefix(u, "https://media.test/floorplans/9001/") {
			t.Fatalf("expected owned floor plan URL, got %s", u)
		}
	}

	if saved := d.StorageSavedMB(); saved != 0.8 {
		t.Fatalf("expected 0.8 MB saved estimate, got %f", saved)
	}
}

func TestDistributeImages_FewPhotosAllRehosted(t *testing.T) {
	srv := newImageServer(t)
	defer srv.Close()

	m := NewMediaStrategist(&recordingUploader{}, srv.Client())

	d := m.DistributeImages(context.Background(), "9002",
		[]string{srv.URL + "/p1.jpg", srv.URL + "/p2.jpg"}, nil)

	if d.PhotosRehosted != 2 || d.PhotosCDNReferenced != 0 {
		t.Fatalf("expected 2 rehosted / 0 referenced, got %d / %d", d.PhotosRehosted, d.PhotosCDNReferenced)
	}
	if d.StorageSavedMB() != 0 {
		t.Fatalf("expected no saved estimate, got %f", d.StorageSavedMB())
	}
}

func TestDistributeImages_FailedDownloadOmitted(t *testing.T) {
	srv := newImageServer(t)
	defer srv.Close()

	m := NewMediaStrategist(&recordingUploader{}, srv.Client())

	photos := []string{srv.URL + "/p1.jpg", srv.URL + "/fail/p2.jpg", srv.URL + "/p3.jpg"}
	d := m.DistributeImages(context.Background(), "9003", photos, nil)

	if d.PhotosRehosted != 2 || len(d.Images) != 2 {
		t.Fatalf("expected the 2 good photos rehosted, got %d", d.PhotosRehosted)
	}
	if len(d.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d: %v", len(d.Errors), d.Errors)
	}
	if !strings.Contains(d.Errors[0], "download status: 500") {
		t.Fatalf("expected the failure reason recorded, got %s", d.Errors[0])
	}
}

func TestDistributeImages_FailedFloorPlanOmitted(t *testing.T) {
	srv := newImageServer(t)
	defer srv.Close()

	m := NewMediaStrategist(&recordingUploader{}, srv.Client())

	d := m.DistributeImages(context.Background(), "9004", nil,
		[]string{srv.URL + "/fail/fp1.png", srv.URL + "/fp2.png"})

	if d.FloorPlansRehosted != 1 || len(d.FloorPlanURLs) != 1 {
		t.Fatalf("expected 1 floor plan rehosted, got %d", d.FloorPlansRehosted)
	}
	if len(d.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(d.Errors))
	}
}

func TestDistributeImages_KeysAreContentAddressed(t *testing.T) {
	srv := newImageServer(t)
	defer srv.Close()

	uploader := &recordingUploader{}
	m := NewMediaStrategist(uploader, srv.Client())

	m.DistributeImages(context.Background(), "9005", []string{srv.URL + "/p1.jpg"}, nil)
	m.DistributeImages(context.Background(), "9005", []string{srv.URL + "/p1.jpg"}, nil)

	if len(uploader.keys) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploader.keys))
	}
	if uploader.keys[0] != uploader.keys[1] {
		t.Fatalf("expected identical bytes to yield the same key, got %s vs %s", uploader.keys[0], uploader.keys[1])
	}
	if !strings.HasSuffix(uploader.keys[0], ".jpg") {
		t.Fatalf("expected .jpg key, got %s", uploader.keys[0])
	}
}

func TestGuessExtension(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://cdn.example/a.webp", "", ".webp"},
		{"https://cdn.example/a.PNG", "", ".png"},
		{"https://cdn.example/a", "image/png", ".png"},
		{"https://cdn.example/a.php", "image/webp", ".webp"},
		{"https://cdn.example/a", "", ".jpg"},
	}
	for _, tc := range cases {
		if got := guessExtension(tc.url, tc.contentType); got != tc.want {
			t.Fatalf("guessExtension(%s, %s): expected %s, got %s", tc.url, tc.contentType, tc.want, got)
		}
	}
}
