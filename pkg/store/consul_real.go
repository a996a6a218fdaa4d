//go:build consul

package store

import (
	"medavatar/pkg/consulkv"
)

// NewConsulStore creates a Consul-backed store (requires build tag consul).
func NewConsulStore(addr string) MonitorStore {
	return consulkv.NewStore(addr)
}
