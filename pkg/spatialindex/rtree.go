package spatialindex

import (
	"math"

	"github.com/lintang-b-s/accessx/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Site is one supply location indexed by coordinate, e.g. a clinic or a
// hospital with its point geometry.
type Site struct {
	ID  string
	Lat float64
	Lon float64
}

func NewSite(id string, lat, lon float64) Site {
	return Site{ID: id, Lat: lat, Lon: lon}
}

type SiteIndex struct {
	tr   *rtree.RTreeG[Site]
	size int
}

func NewSiteIndex() *SiteIndex {
	var tr rtree.RTreeG[Site]
	return &SiteIndex{
		tr: &tr,
	}
}

// Build. build r-tree over the supply sites, with each leaf having bounding
// box with radius boundingBoxRadius (in km)
func (si *SiteIndex) Build(sites []Site, boundingBoxRadius float64, log *zap.Logger) {
	log.Info("Building R-tree site index...", zap.Int("sites", len(sites)))

	for _, site := range sites {
		lowerLat, lowerLon := geo.GetDestinationPoint(site.Lat, site.Lon, 225, boundingBoxRadius)
		upperLat, upperLon := geo.GetDestinationPoint(site.Lat, site.Lon, 45, boundingBoxRadius)

		minLat := math.Min(lowerLat, upperLat)
		minLon := math.Min(lowerLon, upperLon)
		maxLat := math.Max(lowerLat, upperLat)
		maxLon := math.Max(lowerLon, upperLon)

		si.tr.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, site)
	}
	si.size = len(sites)

	log.Info("R-tree site index built.")
}

func (si *SiteIndex) Len() int {
	return si.size
}

// SearchWithinRadius returns the sites whose bounding box intersects the
// radius (in km) query box around (qLat, qLon). The box circumscribes the
// radius circle, so it never misses a site within radius but overshoots near
// the corners. Callers wanting an exact cutoff re-measure the candidates.
func (si *SiteIndex) SearchWithinRadius(qLat, qLon, radius float64) []Site {
	// corners sit radius*sqrt(2) away diagonally so each box side clears
	// the full radius.
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius*math.Sqrt2)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius*math.Sqrt2)

	results := make([]Site, 0, 10)
	si.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data Site) bool {
			results = append(results, data)
			return true
		})
	return results
}
