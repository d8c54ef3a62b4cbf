package models

import "time"

// Network identifies the chain a wallet lives on.
type Network string

const (
	NetworkBSC      Network = "BSC"
	NetworkEthereum Network = "ETHEREUM"
	NetworkTron     Network = "TRON"
	NetworkTON      Network = "TON"
)

func (n Network) Valid() bool {
	switch n {
	case NetworkBSC, NetworkEthereum, NetworkTron, NetworkTON:
		return true
	}
	return false
}

// User is identified by the (wallet_address, network) pair.
type User struct {
	ID            int64     `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	Network       Network   `db:"network" json:"network"`
	Username      *string   `db:"username" json:"username,omitempty"`
	Avatar        *string   `db:"avatar" json:"avatar,omitempty"`
	TrustScore    int       `db:"trust_score" json:"trust_score"`
	IsOnline      bool      `db:"is_online" json:"is_online"`
	LastSeen      time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"-"`
}

// ProfileUpdate lists the user fields a user may change.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
}
