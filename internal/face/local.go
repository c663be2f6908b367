package face

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math/bits"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// minContrast is the grey-level spread below which a photo is treated as blank.
const minContrast = 8

// Local is an in-process gallery that compares 64-bit average hashes. It stands in for a real
// recognizer in development and tests: the same photo matches itself at 100, unrelated photos
// score low.
type Local struct {
	mu      sync.RWMutex
	gallery map[string]localFace // by face id
}

type localFace struct {
	externalID string
	hash       uint64
}

// NewLocal creates an empty gallery.
func NewLocal() *Local {
	return &Local{gallery: make(map[string]localFace)}
}

func (l *Local) Index(_ context.Context, externalID string, img []byte) (string, error) {
	h, err := averageHash(img)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	l.mu.Lock()
	l.gallery[id] = localFace{externalID: externalID, hash: h}
	l.mu.Unlock()
	return id, nil
}

func (l *Local) Search(_ context.Context, img []byte) (*Match, error) {
	h, err := averageHash(img)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best *Match
	for id, f := range l.gallery {
		sim := 100 * (1 - float64(bits.OnesCount64(h^f.hash))/64)
		if best == nil || sim > best.Similarity {
			best = &Match{FaceID: id, ExternalID: f.externalID, Similarity: sim}
		}
	}
	return best, nil
}

func (l *Local) Remove(_ context.Context, faceID string) error {
	l.mu.Lock()
	delete(l.gallery, faceID)
	l.mu.Unlock()
	return nil
}

func (l *Local) Health(context.Context) error { return nil }

// averageHash shrinks the photo to 8x8 grey and sets one bit per pixel brighter than the mean.
func averageHash(data []byte) (uint64, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoFace, err)
	}
	small := imaging.Grayscale(imaging.Resize(img, 8, 8, imaging.Box))

	var px [64]uint8
	var sum int
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := grey(small, x, y)
			px[y*8+x] = v
			sum += int(v)
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if hi-lo < minContrast {
		return 0, ErrNoFace
	}
	mean := sum / 64
	var h uint64
	for i, v := range px {
		if int(v) > mean {
			h |= 1 << uint(i)
		}
	}
	return h, nil
}

func grey(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)]
}
