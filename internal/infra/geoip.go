package infra

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves ISO country codes for request logging. A nil GeoIP is valid
// and resolves everything to "".
type GeoIP struct {
	reader *geoip2.Reader
}

// NewGeoIP opens the MaxMind database at path; an empty path yields nil.
func NewGeoIP(path string) (*GeoIP, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{reader: reader}, nil
}

// CountryCode returns the ISO country code for ip, or "" when unknown.
func (g *GeoIP) CountryCode(ip string) string {
	if g == nil || g.reader == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := g.reader.Country(parsed)
	if err != nil || record == nil {
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the underlying database reader.
func (g *GeoIP) Close() error {
	if g == nil || g.reader == nil {
		return nil
	}
	return g.reader.Close()
}
