package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"fanvault/native/registry"
)

func profileKey(addr [20]byte) []byte {
	buf := make([]byte, len(profilePrefix)+len(addr))
	copy(buf, profilePrefix)
	copy(buf[len(profilePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

// Timestamps are stored as big integers because RLP has no signed encoding.
type storedProfile struct {
	Addr         [20]byte
	Name         string
	ContentURI   string
	TotalEarned  *big.Int
	RegisteredAt *big.Int
}

func newStoredProfile(p *registry.Profile) *storedProfile {
	if p == nil {
		return nil
	}
	earned := big.NewInt(0)
	if p.TotalEarned != nil {
		earned = new(big.Int).Set(p.TotalEarned)
	}
	return &storedProfile{
		Addr:         p.Addr,
		Name:         p.Name,
		ContentURI:   p.ContentURI,
		TotalEarned:  earned,
		RegisteredAt: big.NewInt(p.RegisteredAt),
	}
}

func (s *storedProfile) toProfile() *registry.Profile {
	if s == nil {
		return nil
	}
	out := &registry.Profile{
		Addr:        s.Addr,
		Name:        s.Name,
		ContentURI:  s.ContentURI,
		TotalEarned: big.NewInt(0),
	}
	if s.TotalEarned != nil {
		out.TotalEarned = new(big.Int).Set(s.TotalEarned)
	}
	if s.RegisteredAt != nil {
		out.RegisteredAt = s.RegisteredAt.Int64()
	}
	return out
}

// RegistryProfileGet loads the creator profile for the address.
func (m *Manager) RegistryProfileGet(addr [20]byte) (*registry.Profile, bool, error) {
	data, err := m.db.Get(profileKey(addr))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedProfile)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode profile: %w", err)
	}
	return stored.toProfile(), true, nil
}

// RegistryProfilePut writes the creator profile.
func (m *Manager) RegistryProfilePut(profile *registry.Profile) error {
	if profile == nil {
		return fmt.Errorf("state: nil profile")
	}
	encoded, err := rlp.EncodeToBytes(newStoredProfile(profile))
	if err != nil {
		return err
	}
	return m.db.Put(profileKey(profile.Addr), encoded)
}

func (m *Manager) loadCreatorIndex() ([][20]byte, error) {
	data, err := m.db.Get(creatorIndexKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][20]byte{}, nil
	}
	var index [][20]byte
	if err := rlp.DecodeBytes(data, &index); err != nil {
		return nil, fmt.Errorf("state: decode creator index: %w", err)
	}
	return index, nil
}

// RegistryIndexAppend records a newly registered address in the ordered index
// and bumps the creator counter. The index exists so enumeration never needs
// to scan the keyspace.
func (m *Manager) RegistryIndexAppend(addr [20]byte) error {
	index, err := m.loadCreatorIndex()
	if err != nil {
		return err
	}
	index = append(index, addr)
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}
	if err := m.db.Put(creatorIndexKey, encoded); err != nil {
		return err
	}
	count, err := m.loadBigInt(creatorCountKey)
	if err != nil {
		return err
	}
	return m.writeBigInt(creatorCountKey, count.Add(count, big.NewInt(1)))
}

// RegistryIndex returns all registered addresses in registration order.
func (m *Manager) RegistryIndex() ([][20]byte, error) {
	return m.loadCreatorIndex()
}

// RegistryCount returns the number of registered creators.
func (m *Manager) RegistryCount() (uint64, error) {
	count, err := m.loadBigInt(creatorCountKey)
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}
