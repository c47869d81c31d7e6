// Package types contains shared type definitions used across multiple packages
package types

// Upstream identifies one of the external APIs the dashboard backend depends on
type Upstream string

// Known upstreams
const (
	UpstreamDataStore Upstream = "datastore"
	UpstreamIndexer   Upstream = "indexer"
	UpstreamPrices    Upstream = "prices"
)

// AllUpstreams lists every upstream in a stable order
var AllUpstreams = []Upstream{UpstreamDataStore, UpstreamIndexer, UpstreamPrices}

func (u Upstream) String() string {
	return string(u)
}
