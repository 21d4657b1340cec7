// Package geolite annotates IPs with the ISO country code from a MaxMind
// GeoLite2-Country database. It is optional: a nil *Lookup answers "".
package geolite

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"golang.org/x/sync/singleflight"
)

type Lookup struct {
	reader *geoip2.Reader
	cache  sync.Map
	group  singleflight.Group
}

// Open loads the country database at path.
func Open(path string) (*Lookup, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	return &Lookup{reader: reader}, nil
}

// FromBytes loads a country database already held in memory.
func FromBytes(data []byte) (*Lookup, error) {
	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("geolite: load database: %w", err)
	}
	return &Lookup{reader: reader}, nil
}

// Country returns the ISO code for ip, or "" when unknown.
func (l *Lookup) Country(ip string) string {
	if l == nil || l.reader == nil {
		return ""
	}
	if cached, ok := l.cache.Load(ip); ok {
		return cached.(string)
	}

	result, _, _ := l.group.Do(ip, func() (interface{}, error) {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return "", nil
		}
		record, err := l.reader.Country(parsed)
		if err != nil {
			return "", nil
		}
		return record.Country.IsoCode, nil
	})

	code, _ := result.(string)
	l.cache.Store(ip, code)
	return code
}

func (l *Lookup) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
