package model

// FederationStatus 帖子联邦投递状态
//
//	local ──► queued ──► delivered
//	            │ ▲
//	            ▼ │ (人工重新入队)
//	          failed
type FederationStatus string

const (
	FederationLocal     FederationStatus = "local"
	FederationQueued    FederationStatus = "queued"
	FederationDelivered FederationStatus = "delivered"
	FederationFailed    FederationStatus = "failed"
)

var federationTransitions = map[FederationStatus][]FederationStatus{
	FederationLocal:  {FederationQueued},
	FederationQueued: {FederationDelivered, FederationFailed},
	FederationFailed: {FederationQueued},
}

// Valid 是否为已知状态
func (s FederationStatus) Valid() bool {
	switch s {
	case FederationLocal, FederationQueued, FederationDelivered, FederationFailed:
		return true
	}
	return false
}

// CanTransition 状态机允许 s -> to
func (s FederationStatus) CanTransition(to FederationStatus) bool {
	for _, next := range federationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
