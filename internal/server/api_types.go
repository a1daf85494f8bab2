package server

import "investment-server/internal/investment"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// REQUESTS
// ============================================================================
// tygo:generate
type JoinGameRequest struct {
	PlayerName string `json:"playerName"`
	GameID     string `json:"gameId"`
}

// addCompany and deleteCompany
// tygo:generate
type CompanyRequest struct {
	CompanyName string `json:"companyName"`
	GameID      string `json:"gameId"`
}

// startInvestment, playerReady and resetGame
// tygo:generate
type GameRequest struct {
	GameID string `json:"gameId"`
}

// tygo:generate
type SubmitInvestmentsRequest struct {
	Investments map[string]float64 `json:"investments"`
	GameID      string             `json:"gameId"`
}

// tygo:generate
type KickPlayerRequest struct {
	PlayerID string `json:"playerId"` // Target connection id
	GameID   string `json:"gameId"`
}

// tygo:generate
type ModifyInvestmentRequest struct {
	PlayerID    string  `json:"playerId"`
	CompanyName string  `json:"companyName"`
	NewAmount   float64 `json:"newAmount"`
	GameID      string  `json:"gameId"`
}

// tygo:generate
type ResetAllGamesRequest struct {
	Token string `json:"token"`
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================
// tygo:generate
type PlayerJoinedNotification struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	IsHost     bool   `json:"isHost"`
	Reconnect  bool   `json:"reconnect"`
}

// tygo:generate
type CompanyAddedNotification struct {
	Company investment.Company `json:"company"`
}

// tygo:generate
type CompanyDeletedNotification struct {
	CompanyName string `json:"companyName"`
}

// tygo:generate
type InvestmentStartedNotification struct {
	GameID string `json:"gameId"`
}

// tygo:generate
type PlayerSubmittedNotification struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// tygo:generate
type PlayerLeftNotification struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	NewHostID   string `json:"newHostId,omitempty"`
	NewHostName string `json:"newHostName,omitempty"`
}

// tygo:generate
type PlayerKickedNotification struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// tygo:generate
type KickedFromGameNotification struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// tygo:generate
type GameResetNotification struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// tygo:generate
type GameDeletedNotification struct {
	GameID string `json:"gameId"`
}

// ============================================================================
// HTTP
// ============================================================================
type HealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

type ResetAllResponse struct {
	Rooms int `json:"rooms"`
}

type NewRoomResponse struct {
	GameID string `json:"gameId"`
}
