package domain

type NetworkState struct {
	IsConnected         bool `json:"is_connected"`
	IsInternetReachable bool `json:"is_internet_reachable"`
}

func (s NetworkState) Online() bool {
	return s.IsConnected && s.IsInternetReachable
}
