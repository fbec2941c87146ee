package dto

// StationExchangeRequest 扫码站用预共享密钥换取 token
type StationExchangeRequest struct {
	StationKey string `json:"station_key"`
	DeviceID   string `json:"device_id"`
}

// RefreshTokenRequest 刷新 token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse token 对
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	DeviceID     string `json:"device_id"`
}
