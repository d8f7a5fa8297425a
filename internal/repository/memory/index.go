package memory

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"dispatch/internal/domain"
)

const kmPerDegreeLat = 111.32

// pickupEntry is a trip's pickup point in (lng, lat) space.
type pickupEntry struct {
	tripID string
	point  domain.Point
}

func (e *pickupEntry) Bounds() rtreego.Rect {
	return rtreego.Point{e.point.Lng, e.point.Lat}.ToRect(1e-9)
}

// pickupIndex is an R-tree over pickup points of open trips. It only
// prefilters by bounding box; callers apply the exact geodesic check.
type pickupIndex struct {
	tree    *rtreego.Rtree
	entries map[string]*pickupEntry
}

func newPickupIndex() *pickupIndex {
	return &pickupIndex{
		tree:    rtreego.NewTree(2, 25, 50),
		entries: make(map[string]*pickupEntry),
	}
}

// upsert indexes t if it is open with a pickup point and drops it otherwise.
func (ix *pickupIndex) upsert(t *domain.Trip) {
	ix.remove(t.ID)
	if !t.IsOpen() || t.PickupPoint == nil {
		return
	}
	e := &pickupEntry{tripID: t.ID, point: *t.PickupPoint}
	ix.entries[t.ID] = e
	ix.tree.Insert(e)
}

func (ix *pickupIndex) remove(tripID string) {
	if e, ok := ix.entries[tripID]; ok {
		ix.tree.Delete(e)
		delete(ix.entries, tripID)
	}
}

// candidates returns the IDs of trips inside the box enclosing the circle.
func (ix *pickupIndex) candidates(center domain.Point, radiusKm float64) []string {
	dLat := radiusKm / kmPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-6 {
		dLng = math.Min(180, radiusKm/(kmPerDegreeLat*cosLat))
	}
	// Pad by one percent so points on the circle's edge stay inside the box.
	dLat *= 1.01
	dLng *= 1.01

	box, err := rtreego.NewRect(
		rtreego.Point{center.Lng - dLng, center.Lat - dLat},
		[]float64{2 * dLng, 2 * dLat},
	)
	if err != nil {
		return nil
	}

	hits := ix.tree.SearchIntersect(box)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.(*pickupEntry).tripID)
	}
	return ids
}
