package state

var claimOwnerPrefix = []byte("claims/owner/")

func claimOwnerKey(id [32]byte) []byte {
	return hashedKey(claimOwnerPrefix, id[:])
}

type storedClaim struct {
	Owner  [20]byte
	Active bool
}

// SetClaimOwner records owner as the holder of claim id.
func (m *Manager) SetClaimOwner(id [32]byte, owner [20]byte) error {
	return m.put(claimOwnerKey(id), &storedClaim{Owner: owner, Active: true})
}

// ClearClaimOwner marks claim id as burned. A burned claim reads as absent.
func (m *Manager) ClearClaimOwner(id [32]byte) error {
	return m.put(claimOwnerKey(id), &storedClaim{})
}

// ClaimOwner returns the holder of claim id and whether the claim exists.
func (m *Manager) ClaimOwner(id [32]byte) ([20]byte, bool, error) {
	var stored storedClaim
	ok, err := m.get(claimOwnerKey(id), &stored)
	if err != nil || !ok || !stored.Active {
		return [20]byte{}, false, err
	}
	return stored.Owner, true, nil
}
