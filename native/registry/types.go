package registry

import "math/big"

// Profile stores the public record for a registered creator. A profile is
// created exactly once per address and is never deleted.
type Profile struct {
	Addr         [20]byte `json:"addr"`
	Name         string   `json:"name"`
	ContentURI   string   `json:"contentUri"`
	TotalEarned  *big.Int `json:"totalEarned"`
	RegisteredAt int64    `json:"registeredAt"`
}

// HasContent reports whether the creator has published a content reference.
func (p *Profile) HasContent() bool {
	return p != nil && p.ContentURI != ""
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.TotalEarned != nil {
		clone.TotalEarned = new(big.Int).Set(p.TotalEarned)
	}
	return &clone
}
