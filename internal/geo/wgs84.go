package geo

import (
	"github.com/wroge/wgs84"
)

// LonLat converts a network-plane point to WGS84 longitude/latitude, given
// the EPSG code of the projection the road network was exported in
// (typically a UTM zone). The network's own offset has to be removed by the
// caller beforehand if the export carried one.
func LonLat(epsg int, p NetPoint) (lon, lat float64) {
	f := wgs84.EPSG().Transform(epsg, 4326)
	lon, lat, _ = f(p.X, p.Y, 0)
	return lon, lat
}
