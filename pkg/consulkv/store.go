//go:build consul

package consulkv

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	"medavatar/pkg/model"
)

// Store mirrors monitor state into Consul KV so several instances can be
// inspected from one dashboard.
type Store struct {
	cli *consulapi.Client
}

const (
	healthKey     = "medavatar/monitor/health"
	servicesKey   = "medavatar/monitor/services"
	issuePrefix   = "medavatar/monitor/issues/"
	issueRetained = time.Hour
)

func NewStore(addr string) *Store {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, _ := consulapi.NewClient(cfg)
	return &Store{cli: cli}
}

func (s *Store) SaveHealth(h model.SystemHealth) error {
	return s.putJSON(healthKey, h)
}

func (s *Store) LatestHealth() (model.SystemHealth, bool, error) {
	var h model.SystemHealth
	if s.cli == nil {
		return h, false, fmt.Errorf("consul client not configured")
	}
	kv, _, err := s.cli.KV().Get(healthKey, nil)
	if err != nil || kv == nil {
		return h, false, err
	}
	if err := json.Unmarshal(kv.Value, &h); err != nil {
		return h, false, err
	}
	return h, true, nil
}

func (s *Store) SaveServiceHealth(services map[string]model.ServiceHealth) error {
	return s.putJSON(servicesKey, services)
}

func (s *Store) GetServiceHealth() (map[string]model.ServiceHealth, error) {
	out := map[string]model.ServiceHealth{}
	if s.cli == nil {
		return nil, fmt.Errorf("consul client not configured")
	}
	kv, _, err := s.cli.KV().Get(servicesKey, nil)
	if err != nil {
		return nil, err
	}
	if kv == nil {
		return out, nil
	}
	if err := json.Unmarshal(kv.Value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendIssue writes one issue keyed by its timestamp; old keys are pruned
// opportunistically on each append.
func (s *Store) AppendIssue(is model.Issue) error {
	if s.cli == nil {
		return fmt.Errorf("consul client not configured")
	}
	key := fmt.Sprintf("%s%d-%s", issuePrefix, is.Timestamp.UnixNano(), is.Type)
	if err := s.putJSON(key, is); err != nil {
		return err
	}
	s.pruneIssues()
	return nil
}

func (s *Store) ListIssues(limit int) ([]model.Issue, error) {
	if s.cli == nil {
		return nil, fmt.Errorf("consul client not configured")
	}
	pairs, _, err := s.cli.KV().List(issuePrefix, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Issue
	for _, p := range pairs {
		var is model.Issue
		if err := json.Unmarshal(p.Value, &is); err == nil {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) Ping() error {
	if s.cli == nil {
		return fmt.Errorf("consul client not configured")
	}
	_, err := s.cli.Status().Leader()
	return err
}

func (s *Store) putJSON(key string, v interface{}) error {
	if s.cli == nil {
		return fmt.Errorf("consul client not configured")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.cli.KV().Put(&consulapi.KVPair{Key: key, Value: b}, nil)
	return err
}

func (s *Store) pruneIssues() {
	pairs, _, err := s.cli.KV().List(issuePrefix, nil)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-issueRetained)
	for _, p := range pairs {
		var is model.Issue
		if err := json.Unmarshal(p.Value, &is); err != nil {
			continue
		}
		if is.Timestamp.Before(cutoff) {
			_, _ = s.cli.KV().Delete(p.Key, nil)
		}
	}
}
