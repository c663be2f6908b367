package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// pattern draws a 64x64 picture whose quadrants depend on seed.
func pattern(t *testing.T, seed int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(20)
			if ((x/8)+(y/8)+seed)%2 == 0 || (seed%3 == 1 && x < 32) {
				v = 230
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func blank(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAccept(t *testing.T) {
	m := &Match{ExternalID: "st1", Similarity: 80.5}
	if !Accept(m, "st1", 80) {
		t.Error("80.5 > 80 for the right student rejected")
	}
	if Accept(&Match{ExternalID: "st1", Similarity: 80}, "st1", 80) {
		t.Error("similarity equal to threshold accepted")
	}
	if Accept(m, "st2", 80) {
		t.Error("match for another student accepted")
	}
	if Accept(nil, "st1", 80) {
		t.Error("nil match accepted")
	}
}

func TestLocalSameImageMatches(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	photo := pattern(t, 0)

	id, err := l.Index(ctx, "st1", photo)
	if err != nil || id == "" {
		t.Fatalf("Index = %q, %v", id, err)
	}
	m, err := l.Search(ctx, photo)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m == nil || m.ExternalID != "st1" || m.Similarity != 100 || m.FaceID != id {
		t.Fatalf("Search = %+v", m)
	}
}

func TestLocalDifferentImageScoresLow(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	if _, err := l.Index(ctx, "st1", pattern(t, 0)); err != nil {
		t.Fatal(err)
	}
	m, err := l.Search(ctx, pattern(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if Accept(m, "st1", 80) {
		t.Errorf("inverted pattern accepted: %+v", m)
	}
}

func TestLocalEmptyGallery(t *testing.T) {
	m, err := NewLocal().Search(context.Background(), pattern(t, 0))
	if err != nil || m != nil {
		t.Errorf("Search on empty gallery = %+v, %v", m, err)
	}
}

func TestLocalNoFace(t *testing.T) {
	l := NewLocal()
	if _, err := l.Index(context.Background(), "st1", blank(t)); !errors.Is(err, ErrNoFace) {
		t.Errorf("Index(blank) error = %v, want ErrNoFace", err)
	}
	if _, err := l.Search(context.Background(), []byte("not an image")); !errors.Is(err, ErrNoFace) {
		t.Errorf("Search(garbage) error = %v, want ErrNoFace", err)
	}
}

func TestLocalRemove(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	id, err := l.Index(ctx, "st1", pattern(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m, err := l.Search(ctx, pattern(t, 0)); err != nil || m != nil {
		t.Errorf("Search after Remove = %+v, %v, want no match", m, err)
	}
	if err := l.Remove(ctx, "unknown"); err != nil {
		t.Errorf("Remove(unknown) = %v", err)
	}
}

func TestServiceSearchScalesSimilarity(t *testing.T) {
	cases := []struct {
		reported float64
		want     float64
	}{
		{0.9, 90},
		{0.005, 0.5},
		{1, 100},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"faces_detected": 1,
				"matches":        []map[string]any{{"user_id": "st1", "face_id": "f1", "similarity": c.reported}},
			})
		}))
		m, err := NewService(srv.URL).Search(context.Background(), []byte("img"))
		srv.Close()
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if math.Abs(m.Similarity-c.want) > 1e-9 || m.ExternalID != "st1" {
			t.Errorf("reported %v: match = %+v, want similarity %v", c.reported, m, c.want)
		}
	}
}

func TestServiceRemove(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/delete" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	if err := NewService(srv.URL).Remove(context.Background(), "f1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got["face_id"] != "f1" {
		t.Errorf("request = %v", got)
	}
}
