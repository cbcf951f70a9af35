package app

import (
	"context"
	"fmt"

	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/pii"
	"gauntlet-service/internal/textutil"
)

const (
	maxArchetypeLen = 120
	recentPeerRows  = 8
	maxPeers        = 4
)

// seededPeers give a believable floor of peers before real traffic accumulates.
var seededPeers = []domain.Peer{
	{Name: "Alex K.", Company: "Stripe", Archetype: "The Scale Realist"},
	{Name: "Sarah M.", Company: "Airbnb", Archetype: "The User Empath"},
	{Name: "Jordan T.", Company: "Notion", Archetype: "The Analytical Pragmatist"},
	{Name: "Chen W.", Company: "DoorDash", Archetype: "The Growth Hacker"},
	{Name: "Elena R.", Company: "Revolut", Archetype: "The Scale Realist"},
	{Name: "Marcus L.", Company: "Linear", Archetype: "The Visionary Architect"},
}

// NormalizeArchetype cleans an archetype query value. Empty means missing.
func NormalizeArchetype(raw string) string {
	return textutil.Clean(raw, maxArchetypeLen)
}

// Peers returns up to four anonymized participants sharing archetype: recent
// real submissions first, then seeded peers. Rows that fail to decrypt fall
// back to default names instead of failing the call.
func (s *SubmissionService) Peers(ctx context.Context, archetype string) ([]domain.Peer, error) {
	archetype = NormalizeArchetype(archetype)
	if archetype == "" {
		return nil, domain.Invalid("Missing archetype query param.")
	}

	rows, err := s.store.RecentByArchetype(ctx, archetype, recentPeerRows)
	if err != nil {
		return nil, fmt.Errorf("recent by archetype: %w", err)
	}

	peers := make([]domain.Peer, 0, len(rows)+len(seededPeers))
	for _, row := range rows {
		company := textutil.Clean(s.cipher.Decrypt(row.Company), maxCompanyLen)
		if company == "" {
			company = DefaultCompany
		}
		peers = append(peers, domain.Peer{
			Name:      pii.AnonymizeName(s.cipher.Decrypt(row.Name)),
			Company:   company,
			Archetype: textutil.Clean(row.Archetype, maxArchetypeLen),
		})
	}
	for _, peer := range seededPeers {
		if peer.Archetype == archetype {
			peers = append(peers, peer)
		}
	}
	if len(peers) > maxPeers {
		peers = peers[:maxPeers]
	}
	return peers, nil
}
