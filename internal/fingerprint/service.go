package fingerprint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/blake2b"

	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
)

// Service maintains the origin fingerprint index. The fingerprint is a
// low-fidelity heuristic derived from the caller's own claimed fields, not a
// network address; it is surfaced to moderators as an advisory signal and is
// never an eligibility gate on its own.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Derive computes the origin fingerprint for an interaction from the claimed
// username and a normalized client hint, digested with BLAKE2b and truncated
// to 32 hex chars. The stable identity key is deliberately excluded: the
// point is that multiple identities run by one actor hash to the same value.
func Derive(username, clientHint string) string {
	input := fmt.Sprintf("%s|%s", strings.ToLower(username), normalizeClientHint(clientHint))
	sum := blake2b.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:32]
}

// normalizeClientHint collapses a raw user-agent string to browser and OS
// family so version churn does not split clusters.
func normalizeClientHint(hint string) string {
	if hint == "" {
		return "unknown"
	}
	ua := useragent.New(hint)
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" && os == "" {
		return strings.ToLower(hint)
	}
	return strings.ToLower(strings.TrimSpace(name + "/" + os))
}

// Record associates the identity with a fingerprint. Memberships are
// additive: an identity that changes fingerprint stays listed under the old
// one too.
func (s *Service) Record(ctx context.Context, identityID, fp string) error {
	if identityID == "" || fp == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identity id and fingerprint are required")
	}
	if err := s.store.Record(ctx, identityID, fp, time.Now()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record fingerprint")
	}
	return nil
}

// SiblingsOf returns the other identities sharing this identity's current
// fingerprint. An identity with no recorded fingerprint has no siblings.
func (s *Service) SiblingsOf(ctx context.Context, identityID string) ([]string, error) {
	fp, err := s.store.CurrentOf(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "current fingerprint")
	}
	members, err := s.store.Members(ctx, fp)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint members")
	}
	siblings := members[:0]
	for _, id := range members {
		if id != identityID {
			siblings = append(siblings, id)
		}
	}
	return siblings, nil
}

// Suspicious lists fingerprint clusters at or above the member threshold,
// each resolved to its member identities. Purely advisory.
func (s *Service) Suspicious(ctx context.Context, threshold int) ([]SuspiciousCluster, error) {
	if threshold < 2 {
		threshold = 2
	}
	fps, err := s.store.Suspicious(ctx, threshold)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "suspicious fingerprints")
	}
	clusters := make([]SuspiciousCluster, 0, len(fps))
	for _, fp := range fps {
		members, err := s.store.Members(ctx, fp.Value)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fingerprint members")
		}
		clusters = append(clusters, SuspiciousCluster{Fingerprint: fp, Members: members})
	}
	return clusters, nil
}
