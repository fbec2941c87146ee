package service

import (
	"context"
	"crypto/subtle"
	"sync"

	"go.uber.org/zap"

	"EventGate/config"
	"EventGate/internal/model/dto"
	errs "EventGate/pkg/errors"
	"EventGate/pkg/logger"
	"EventGate/pkg/token"
	"EventGate/utils"
)

type AuthService struct{}

var (
	authService *AuthService
	authOnce    sync.Once
)

func Auth() *AuthService {
	authOnce.Do(func() {
		authService = &AuthService{}
	})

	return authService
}

// ExchangeStationKey 扫码站用预共享密钥换取 token 对
func (s *AuthService) ExchangeStationKey(ctx context.Context, req dto.StationExchangeRequest) (*dto.TokenPairResponse, error) {
	if !utils.ValidateDeviceID(req.DeviceID) {
		return nil, errs.StationKeyInvalid
	}

	key := config.Cfg.StationKey
	if key == "" || subtle.ConstantTimeCompare([]byte(req.StationKey), []byte(key)) != 1 {
		logger.Logger.Warn("Station key exchange rejected",
			zap.String("device_id", req.DeviceID),
		)
		return nil, errs.StationKeyInvalid
	}

	access, refresh, expiresIn, err := token.GenerateTokenPair(req.DeviceID)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Station authenticated",
		zap.String("device_id", req.DeviceID),
	)

	return &dto.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		DeviceID:     req.DeviceID,
	}, nil
}

// Refresh 用 refresh token 换新 token 对
func (s *AuthService) Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*dto.TokenPairResponse, error) {
	deviceID, err := token.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}

	access, refresh, expiresIn, err := token.GenerateTokenPair(deviceID)
	if err != nil {
		return nil, err
	}

	return &dto.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		DeviceID:     deviceID,
	}, nil
}
